// Package essink wraps go-elasticsearch with the operations the sync and
// push jobs need: existence checks, overwrite-by-id with synchronous delete
// visibility, title match-score lookups, unpushed-window searches, and the
// is_pushed status flip.
package essink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// SearchDoc is the record shape indexed for the search destination. The
// scalar classification fields are first-match-wins derivations from the
// document's tag list.
type SearchDoc struct {
	Title       string          `json:"title"`
	PublishTime string          `json:"publish_time"`
	CreateTime  string          `json:"create_time"`
	UpdateTime  string          `json:"update_time"`
	URL         string          `json:"url"`
	Content     string          `json:"content"`
	Abstract    string          `json:"abstract"`
	Source      string          `json:"source"`
	ImgURL      []string        `json:"img_url"`
	Logo        string          `json:"logo"`
	Industry    string          `json:"industry"`
	Domain      string          `json:"domain"`
	Subject     string          `json:"subject"`
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name"`
	Tags        []models.Tag    `json:"tags"`
	Entities    []models.Entity `json:"entities"`
	IsPushed    bool            `json:"is_pushed"`
}

// Hit pairs an indexed record with its id.
type Hit struct {
	ID     string
	Source SearchDoc
}

// Client wraps go-elasticsearch for one index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// New instantiates the Elasticsearch client for an index.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Exists reports whether a document with the id is indexed.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	req := esapi.ExistsRequest{Index: c.index, DocumentID: id}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists %s failed: %s", id, res.Status())
	}
}

// Delete removes a document by id. Refresh waits for the delete to be
// visible before returning, which the overwrite path relies on: the insert
// that follows must not race the delete.
func (c *Client) Delete(ctx context.Context, id string, refresh bool) error {
	req := esapi.DeleteRequest{Index: c.index, DocumentID: id}
	if refresh {
		req.Refresh = "true"
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete %s failed: %s", id, strings.TrimSpace(string(body)))
	}
	return nil
}

// Index writes a document under the id.
func (c *Client) Index(ctx context.Context, id string, doc SearchDoc) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Timeout:    30 * time.Second,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index %s failed: %s", id, strings.TrimSpace(string(body)))
	}
	return nil
}

// MaxTitleScore runs a match query on the title field and returns the top
// hit score, 0 when nothing matches. The sync job treats a high score as an
// already-indexed near-duplicate.
func (c *Client) MaxTitleScore(ctx context.Context, title string) (float64, error) {
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"title": title,
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal title query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return 0, fmt.Errorf("title search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("title search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			MaxScore *float64 `json:"max_score"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode title search: %w", err)
	}

	if parsed.Hits.MaxScore == nil {
		return 0, nil
	}
	return *parsed.Hits.MaxScore, nil
}

// SearchUnpushed returns documents published inside [start, end] that have
// not been pushed yet.
func (c *Client) SearchUnpushed(ctx context.Context, start, end string, size int) ([]Hit, error) {
	if size <= 0 {
		size = 100
	}

	body := map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": map[string]any{
					"term": map[string]any{
						"is_pushed": false,
					},
				},
				"must": map[string]any{
					"range": map[string]any{
						"publish_time": map[string]any{
							"gte": start,
							"lte": end,
						},
					},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal unpushed query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("unpushed search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("unpushed search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string    `json:"_id"`
				Source SearchDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode unpushed search: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: hit.ID, Source: hit.Source})
	}
	return hits, nil
}

// MarkPushed flips the is_pushed flag on an indexed document.
func (c *Client) MarkPushed(ctx context.Context, id string) error {
	body := map[string]any{
		"doc": map[string]any{
			"is_pushed": true,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("update %s failed: %s", id, strings.TrimSpace(string(data)))
	}
	return nil
}

// Logo fetches the logo field of a company record; used with a Client scoped
// to the company index.
func (c *Client) Logo(ctx context.Context, companyID string) (string, error) {
	req := esapi.GetRequest{Index: c.index, DocumentID: companyID}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return "", fmt.Errorf("get company %s: %w", companyID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("get company %s failed: %s", companyID, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Source struct {
			Logo string `json:"logo"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode company %s: %w", companyID, err)
	}
	return parsed.Source.Logo, nil
}
