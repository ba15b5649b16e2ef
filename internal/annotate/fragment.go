package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// EMF is one extracted event micro-fragment: a key sentence plus the event
// type, entities and action words the extractor found in it. PublishTime is
// the extractor's own timestamp for the fragment; absent, the parent
// document's publish time applies.
type EMF struct {
	Section     string          `json:"section"`
	EventType   string          `json:"event_type"`
	Entities    []models.Entity `json:"entities"`
	ActionWords []string        `json:"action_words"`
	EventDate   string          `json:"event_date"`
	PublishTime string          `json:"publish_time,omitempty"`
}

// FragmentNAF is the extractor's per-document result. EMFs is absent when no
// event sentence was found.
type FragmentNAF struct {
	DocID       string `json:"doc_id"`
	Title       string `json:"title"`
	PublishTime string `json:"publish_time"`
	EMFs        []EMF  `json:"emfs,omitempty"`
}

// FragmentOutcome pairs a submitted document with its extraction result.
type FragmentOutcome struct {
	Doc models.Document
	NAF *FragmentNAF
	Err error
}

// FragmentClient calls the fragment extraction service.
type FragmentClient struct {
	url       string
	batchSize int
	http      *http.Client
	log       *slog.Logger
}

// NewFragmentClient builds a FragmentClient.
func NewFragmentClient(url string, batchSize int, log *slog.Logger) *FragmentClient {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &FragmentClient{
		url:       url,
		batchSize: batchSize,
		http:      &http.Client{Timeout: 5 * time.Minute},
		log:       log,
	}
}

type fragmentRequest struct {
	Documents []models.Document `json:"documents"`
}

type fragmentResponse struct {
	Body []struct {
		NAF *FragmentNAF `json:"naf"`
	} `json:"body"`
}

// ExtractAll submits documents in batches and returns one outcome per
// document in submission order; a failed batch fails only its own documents.
func (c *FragmentClient) ExtractAll(ctx context.Context, docs []models.Document) []FragmentOutcome {
	outcomes := make([]FragmentOutcome, 0, len(docs))

	for start := 0; start < len(docs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		batchStart := time.Now()
		results, err := c.extractBatch(ctx, batch)
		if err != nil {
			c.log.Error("fragment batch failed",
				slog.Int("from", start),
				slog.Int("to", end),
				slog.Any("err", err),
			)
			for _, doc := range batch {
				outcomes = append(outcomes, FragmentOutcome{Doc: doc, Err: err})
			}
			continue
		}

		outcomes = append(outcomes, results...)
		c.log.Info("fragment batch done",
			slog.Int("from", start),
			slog.Int("to", end),
			slog.Duration("took", time.Since(batchStart)),
		)
	}

	return outcomes
}

func (c *FragmentClient) extractBatch(ctx context.Context, batch []models.Document) ([]FragmentOutcome, error) {
	payload, err := json.Marshal(fragmentRequest{Documents: batch})
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
		return nil, fmt.Errorf("call fragment service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fragment service returned %s", res.Status)
	}

	var parsed fragmentResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode fragment response: %w", err)
	}

	outcomes := make([]FragmentOutcome, len(batch))
	for i, doc := range batch {
		if i >= len(parsed.Body) {
			outcomes[i] = FragmentOutcome{Doc: doc, Err: fmt.Errorf("fragment response missing position %d", i)}
			continue
		}
		outcomes[i] = FragmentOutcome{Doc: doc, NAF: parsed.Body[i].NAF}
	}

	return outcomes, nil
}
