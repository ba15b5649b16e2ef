// Package mysqlsink writes industry-classified events into the per-industry
// MySQL destination databases and reads the source→concept mapping table the
// archive job keys its rowkeys by.
package mysqlsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ErrUnknownIndustry is returned for labels with no destination database.
var ErrUnknownIndustry = errors.New("no destination for industry")

// DefaultDestinations maps canonical industry labels to destination database
// names. The relabeling of source tags into canonical labels happens upstream
// in the ingest package; by the time a label reaches the sink it must be one
// of these.
func DefaultDestinations() map[string]string {
	return map[string]string{
		"人工智能":  "kb_event_ai",
		"地理信息":  "kb_event_geo",
		"生物医药":  "kb_event_med",
		"光电产业":  "kb_event_op",
		"新能源汽车": "kb_event_necar",
		"5G产业":  "kb_event_5g",
	}
}

// Event is the record shape of the destination `event` tables.
type Event struct {
	ID        string
	Name      string
	Time      string // publish date, YYYY-MM-DD
	EventType string
	Content   string
}

// Sink fans events out to the per-industry databases. Connections are opened
// lazily per destination and reused for the rest of the run.
type Sink struct {
	dsnBase      string
	destinations map[string]string
	conns        map[string]*sql.DB
}

// NewSink builds a Sink. dsnBase is the DSN up to the database name, e.g.
// "user:pass@tcp(host:3306)".
func NewSink(dsnBase string, destinations map[string]string) *Sink {
	return &Sink{
		dsnBase:      dsnBase,
		destinations: destinations,
		conns:        make(map[string]*sql.DB),
	}
}

// Destination returns the database name serving an industry label.
func (s *Sink) Destination(industry string) (string, bool) {
	name, ok := s.destinations[industry]
	return name, ok
}

// Insert writes one event into the industry's destination, overwriting any
// record with the same id. Delete and insert are two statements so the
// overwrite is observable.
func (s *Sink) Insert(ctx context.Context, industry string, event Event) error {
	database, ok := s.destinations[industry]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIndustry, industry)
	}

	db, err := s.conn(database)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM `event` WHERE `id` = ?", event.ID); err != nil {
		return fmt.Errorf("delete event %s from %s: %w", event.ID, database, err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO `event` (`id`, `name`, `time`, `tags`, `content`) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Name, event.Time, event.EventType, event.Content,
	)
	if err != nil {
		return fmt.Errorf("insert event %s into %s: %w", event.ID, database, err)
	}
	return nil
}

// Close closes every opened destination connection.
func (s *Sink) Close() {
	for _, db := range s.conns {
		db.Close()
	}
}

func (s *Sink) conn(database string) (*sql.DB, error) {
	if db, ok := s.conns[database]; ok {
		return db, nil
	}

	db, err := Open(s.dsnBase, database)
	if err != nil {
		return nil, err
	}
	s.conns[database] = db
	return db, nil
}

// Open dials one MySQL database with the pool settings used across the jobs.
func Open(dsnBase, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s/%s?charset=utf8mb4&parseTime=true", dsnBase, database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql %s: %w", database, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", database, err)
	}
	return db, nil
}

// LoadConceptMap reads the news source→concept mapping used by the archive
// job to build rowkeys. Sources absent from the map cannot be archived.
func LoadConceptMap(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	query := fmt.Sprintf("SELECT `name`, `concept_id` FROM `%s` WHERE `type` = 'news'", table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query concept table: %w", err)
	}
	defer rows.Close()

	concepts := make(map[string]string)
	for rows.Next() {
		var name, conceptID string
		if err := rows.Scan(&name, &conceptID); err != nil {
			return nil, fmt.Errorf("scan concept row: %w", err)
		}
		concepts[name] = conceptID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate concept rows: %w", err)
	}
	return concepts, nil
}
