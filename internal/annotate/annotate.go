// Package annotate is the client for the external NLP annotation services.
// Documents are submitted in fixed-size batches; each batch is one HTTP call
// and one failure domain. A failed batch marks its own documents as failed
// and never affects the batches around it.
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// Pipeline component names, in invocation order.
var DefaultComponents = []string{
	"title_filter",
	"deduplicate",
	"company_link",
	"topic_classify",
	"abstract_extract",
	"sentiment_classify",
}

// Filter messages the service reports for dropped documents.
const (
	msgTitleFiltered    = "标题含有过滤词"
	msgServiceDuplicate = "找到相同资讯"
)

// Metadata mirrors the metadata block of a NAF document.
type Metadata struct {
	DocID       string   `json:"doc_id"`
	Source      string   `json:"source"`
	SearchKey   string   `json:"search_key"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	PublishTime string   `json:"publish_time"`
	CrawlTime   string   `json:"crawl_time"`
	Content     string   `json:"content"`
	HTML        string   `json:"html"`
	ImgURL      []string `json:"img_url"`
	Abstract    string   `json:"abstract,omitempty"`
}

// NAF is an annotated document as returned by the service.
type NAF struct {
	Metadata Metadata        `json:"metadata"`
	Tags     []models.Tag    `json:"tags"`
	Entities []models.Entity `json:"entities"`
}

// FilterReason classifies why the service dropped a document.
type FilterReason string

const (
	FilterTitle     FilterReason = "title-filtered"
	FilterDuplicate FilterReason = "service-duplicate"
	FilterOther     FilterReason = "other"
)

// Outcome is the per-document result of an annotation run: exactly one of
// NAF (annotated), Reason (filtered by the service) or Err (batch failed)
// is meaningful. Outcomes preserve submission order.
type Outcome struct {
	Doc     models.RawNews
	NAF     *NAF
	Reason  FilterReason
	Message string
	Err     error
}

// Annotated reports whether the document came back with an annotation.
func (o Outcome) Annotated() bool { return o.NAF != nil && o.Err == nil }

// Failed reports whether the document's batch failed outright.
func (o Outcome) Failed() bool { return o.Err != nil }

// Client calls the annotation service.
type Client struct {
	url        string
	name       string
	components []string
	batchSize  int
	http       *http.Client
	log        *slog.Logger
}

// NewClient builds a Client. batchSize bounds the per-call payload; the final
// batch may be smaller.
func NewClient(url, pipelineName string, components []string, batchSize int, log *slog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 20
	}
	if len(components) == 0 {
		components = DefaultComponents
	}
	return &Client{
		url:        url,
		name:       pipelineName,
		components: components,
		batchSize:  batchSize,
		http:       &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

type annotateRequest struct {
	Documents []nafEnvelope  `json:"documents"`
	Config    pipelineConfig `json:"config"`
}

type nafEnvelope struct {
	Metadata Metadata `json:"metadata"`
}

type pipelineConfig struct {
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

type annotateResponse struct {
	Body []struct {
		NAF      *NAF     `json:"naf"`
		Messages []string `json:"messages"`
	} `json:"body"`
}

// AnnotateAll submits every document in batches and returns one outcome per
// document, in submission order. Batch failures are recorded on the affected
// outcomes; processing always continues with the next batch.
func (c *Client) AnnotateAll(ctx context.Context, docs []models.RawNews) []Outcome {
	outcomes := make([]Outcome, 0, len(docs))

	for start := 0; start < len(docs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		batchStart := time.Now()
		results, err := c.annotateBatch(ctx, batch)
		if err != nil {
			c.log.Error("annotation batch failed",
				slog.Int("from", start),
				slog.Int("to", end),
				slog.Any("err", err),
			)
			for _, doc := range batch {
				outcomes = append(outcomes, Outcome{Doc: doc, Err: err})
			}
			continue
		}

		outcomes = append(outcomes, results...)
		c.log.Info("annotation batch done",
			slog.Int("from", start),
			slog.Int("to", end),
			slog.Duration("took", time.Since(batchStart)),
		)
	}

	return outcomes
}

func (c *Client) annotateBatch(ctx context.Context, batch []models.RawNews) ([]Outcome, error) {
	envelopes := make([]nafEnvelope, len(batch))
	for i, doc := range batch {
		envelopes[i] = nafEnvelope{Metadata: Metadata{
			DocID:       doc.ID,
			Source:      doc.Source,
			SearchKey:   doc.SearchKey,
			URL:         doc.URL,
			Title:       doc.Title,
			PublishTime: doc.PublishTime,
			CrawlTime:   doc.CrawlTime,
			Content:     doc.Content,
			HTML:        doc.HTML,
			ImgURL:      doc.ImgURL,
		}}
	}

	payload, err := json.Marshal(annotateRequest{
		Documents: envelopes,
		Config:    pipelineConfig{Name: c.name, Components: c.components},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call annotation service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotation service returned %s", res.Status)
	}

	var parsed annotateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode annotation response: %w", err)
	}

	// Responses align by position with the submitted batch. A short response
	// leaves the tail documents failed rather than misaligned.
	outcomes := make([]Outcome, len(batch))
	for i, doc := range batch {
		if i >= len(parsed.Body) {
			outcomes[i] = Outcome{Doc: doc, Err: fmt.Errorf("annotation response missing position %d", i)}
			continue
		}

		item := parsed.Body[i]
		if item.NAF == nil {
			message := joinMessages(item.Messages)
			outcomes[i] = Outcome{Doc: doc, Reason: classifyFilter(message), Message: message}
			c.log.Info("document filtered by annotation service",
				slog.String("doc_id", doc.ID),
				slog.String("title", doc.Title),
				slog.String("reason", message),
			)
			continue
		}
		outcomes[i] = Outcome{Doc: doc, NAF: item.NAF}
	}

	return outcomes, nil
}

func joinMessages(messages []string) string {
	kept := make([]string, 0, len(messages))
	for _, m := range messages {
		if m != "" {
			kept = append(kept, m)
		}
	}
	return strings.Join(kept, " ")
}

func classifyFilter(message string) FilterReason {
	switch {
	case strings.Contains(message, msgTitleFiltered):
		return FilterTitle
	case strings.Contains(message, msgServiceDuplicate):
		return FilterDuplicate
	default:
		return FilterOther
	}
}
