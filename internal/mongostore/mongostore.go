// Package mongostore wraps the MongoDB collections the pipeline reads and
// writes: the raw crawl collections, the cleaned monthly partitions, and the
// canonical document and fragment stores with their windowed range queries.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// RawRecord is a crawled article as it sits in the raw and cleaned
// collections. Crawl time is a BSON date; publish time arrives in whatever
// shape the crawler produced and is normalized by the partition job.
type RawRecord struct {
	ID          primitive.ObjectID `bson:"_id"`
	Source      string             `bson:"source"`
	SearchKey   string             `bson:"search_key"`
	URL         string             `bson:"url"`
	Title       string             `bson:"title"`
	PublishTime any                `bson:"publish_time"`
	CrawlTime   time.Time          `bson:"crawl_time"`
	Content     string             `bson:"content"`
	HTML        string             `bson:"html"`
	ImgURL      []string           `bson:"img_url"`
}

// News converts a cleaned record into the pipeline's raw document shape.
func (r RawRecord) News() models.RawNews {
	publish, _ := r.PublishTime.(string)
	return models.RawNews{
		ID:          r.ID.Hex(),
		Source:      r.Source,
		SearchKey:   r.SearchKey,
		URL:         r.URL,
		Title:       r.Title,
		PublishTime: publish,
		CrawlTime:   r.CrawlTime.Format(models.TimeLayout),
		Content:     r.Content,
		HTML:        r.HTML,
		ImgURL:      r.ImgURL,
	}
}

// RawStore accesses the crawl database: the collectors' raw collection and
// the cleaned monthly partitions derived from it.
type RawStore struct {
	db *mongo.Database
}

// NewRawStore scopes a RawStore to one database.
func NewRawStore(client *mongo.Client, database string) *RawStore {
	return &RawStore{db: client.Database(database)}
}

// FetchWindow returns records from the named collection for one source and
// crawl-time window, inclusive on both ends.
func (s *RawStore) FetchWindow(ctx context.Context, collection, source string, start, end time.Time) ([]RawRecord, error) {
	filter := bson.M{
		"source":     source,
		"crawl_time": bson.M{"$gte": start, "$lte": end},
	}
	cursor, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find %s window: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var records []RawRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode %s window: %w", collection, err)
	}
	return records, nil
}

// EnsureCrawlTimeIndex creates the crawl_time index monthly partitions are
// queried by. Creating an existing index is a no-op.
func (s *RawStore) EnsureCrawlTimeIndex(ctx context.Context, collection string) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "crawl_time", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("ensure crawl_time index on %s: %w", collection, err)
	}
	return nil
}

// Overwrite replaces any record with the same id in the target collection,
// delete first, then insert. Returns whether a previous record existed.
func (s *RawStore) Overwrite(ctx context.Context, collection string, record RawRecord) (bool, error) {
	coll := s.db.Collection(collection)

	res, err := coll.DeleteOne(ctx, bson.M{"_id": record.ID})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, record.ID.Hex(), err)
	}
	if _, err := coll.InsertOne(ctx, record); err != nil {
		return res.DeletedCount > 0, fmt.Errorf("insert %s/%s: %w", collection, record.ID.Hex(), err)
	}
	return res.DeletedCount > 0, nil
}

// DocStore is the canonical annotated-document store plus the fragment store.
type DocStore struct {
	docs      *mongo.Collection
	fragments *mongo.Collection
}

// NewDocStore scopes a DocStore to its two collections. Fragment writes use
// majority write concern so that the next candidate's duplicate window sees
// fragments inserted earlier in the same run.
func NewDocStore(client *mongo.Client, database, docCollection, fragmentCollection string) *DocStore {
	db := client.Database(database)
	return &DocStore{
		docs: db.Collection(docCollection),
		fragments: db.Collection(fragmentCollection,
			options.Collection().SetWriteConcern(writeconcern.Majority())),
	}
}

// FetchRange returns documents whose update time falls inside [start, end],
// bounds as YYYY-MM-DD date strings, inclusive on both ends.
func (s *DocStore) FetchRange(ctx context.Context, start, end string) ([]models.Document, error) {
	filter := bson.M{"update_time": bson.M{"$gte": start, "$lte": end}}
	cursor, err := s.docs.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find document window: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode document window: %w", err)
	}
	return docs, nil
}

// DocumentsByCompany returns stored documents whose primary entity is the
// named company, the narrowed window used by the company-scoped duplicate
// search.
func (s *DocStore) DocumentsByCompany(ctx context.Context, company string) ([]models.Document, error) {
	cursor, err := s.docs.Find(ctx, bson.M{"entities.0.name": company})
	if err != nil {
		return nil, fmt.Errorf("find documents by company: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents by company: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document by key, reporting whether it existed.
func (s *DocStore) DeleteDocument(ctx context.Context, key string) (bool, error) {
	res, err := s.docs.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", key, err)
	}
	return res.DeletedCount > 0, nil
}

// InsertDocument writes a new document.
func (s *DocStore) InsertDocument(ctx context.Context, doc models.Document) error {
	if _, err := s.docs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.Key, err)
	}
	return nil
}

// FragmentsSince returns fragments published on or after the date string.
func (s *DocStore) FragmentsSince(ctx context.Context, sinceDate string) ([]models.Fragment, error) {
	cursor, err := s.fragments.Find(ctx, bson.M{"publish_time": bson.M{"$gte": sinceDate}})
	if err != nil {
		return nil, fmt.Errorf("find fragment window: %w", err)
	}
	defer cursor.Close(ctx)

	var fragments []models.Fragment
	if err := cursor.All(ctx, &fragments); err != nil {
		return nil, fmt.Errorf("decode fragment window: %w", err)
	}
	return fragments, nil
}

// InsertFragment writes a new fragment.
func (s *DocStore) InsertFragment(ctx context.Context, fragment models.Fragment) error {
	if _, err := s.fragments.InsertOne(ctx, fragment); err != nil {
		return fmt.Errorf("insert fragment for %s: %w", fragment.DocID, err)
	}
	return nil
}
