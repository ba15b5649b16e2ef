// Package archive ships full document records to the bulk archive topic. The
// downstream consumer loads them into the wide-column archive store; the
// message key is the archive rowkey (conceptID|createDate|docID).
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// Record is the archival shape of a document.
type Record struct {
	ConceptID   string          `json:"concept_id"`
	DocID       string          `json:"doc_id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Abstract    string          `json:"abstract"`
	URL         string          `json:"url"`
	HTML        string          `json:"html"`
	Source      string          `json:"source"`
	ImgURL      []string        `json:"img_url"`
	Tags        []models.Tag    `json:"tags"`
	Entities    []models.Entity `json:"entities"`
	PublishTime string          `json:"publish_time"`
	CreateTime  string          `json:"create_time"`
	InsertTime  string          `json:"insert_time"`
}

// RowKey builds the archive rowkey: concept, create date, document id.
func RowKey(conceptID, createTime, docID string) string {
	date := createTime
	if len(date) > len(models.DateLayout) {
		date = date[:len(models.DateLayout)]
	}
	return conceptID + "|" + date + "|" + docID
}

// BuildRecord converts a stored document into its archival record.
func BuildRecord(doc models.Document, conceptID, insertTime string) Record {
	return Record{
		ConceptID:   conceptID,
		DocID:       doc.Key,
		Title:       doc.Title,
		Content:     doc.Content,
		Abstract:    doc.Abstract,
		URL:         doc.URL,
		HTML:        doc.HTML,
		Source:      doc.Source,
		ImgURL:      doc.ImgURL,
		Tags:        doc.Tags,
		Entities:    doc.Entities,
		PublishTime: doc.PublishTime,
		CreateTime:  doc.CreateTime,
		InsertTime:  insertTime,
	}
}

// Sink writes archive records to Kafka in batches.
type Sink struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewSink builds a Sink for the archive topic.
func NewSink(brokers []string, topic string, log *slog.Logger) *Sink {
	return &Sink{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:     brokers,
			Topic:       topic,
			MaxAttempts: 3,
		}),
		log: log,
	}
}

// Write sends one batch of records; each message is keyed by its rowkey.
func (s *Sink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(records))
	for i, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal archive record %s: %w", record.DocID, err)
		}
		messages[i] = kafka.Message{
			Key:   []byte(RowKey(record.ConceptID, record.CreateTime, record.DocID)),
			Value: payload,
		}
	}

	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write archive batch: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
