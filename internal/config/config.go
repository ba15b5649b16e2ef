package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mongo carries the connection shared by every job that touches MongoDB.
type Mongo struct {
	URI string
}

// DocStore locates the canonical document and fragment collections.
type DocStore struct {
	Mongo
	Database  string
	Documents string
	Fragments string
}

// Partition configures raw-collection cleaning and monthly partitioning.
type Partition struct {
	Mongo
	SourceDatabase   string
	SourceCollection string
	TargetDatabase   string
	TargetPrefix     string
	Source           string
}

// Pipeline configures the annotation run.
type Pipeline struct {
	DocStore
	CleanDatabase  string
	CleanPrefix    string
	Source         string
	AnnotationURL  string
	PipelineName   string
	BatchSize      int
	TitleThreshold float64
	DocGapDays     int
}

// Fragment configures the fragment extraction run.
type Fragment struct {
	DocStore
	FragmentURL     string
	BatchSize       int
	TextThreshold   float64
	EntityThreshold float64
	WindowDays      int
}

// MySQLSync configures the per-industry relational fan-out.
type MySQLSync struct {
	DocStore
	MySQLDSN string
}

// SearchSync configures the search-index sync.
type SearchSync struct {
	DocStore
	ElasticsearchAddr  string
	ElasticsearchIndex string
	TitleScoreCeiling  float64
}

// Archive configures the bulk archive export.
type Archive struct {
	DocStore
	MySQLDSN        string
	ConceptDatabase string
	ConceptTable    string
	KafkaBrokers    []string
	KafkaTopic      string
	BatchSize       int
}

// Push configures the daily digest delivery.
type Push struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	CompanyIndex       string
	DetailURL          string
	PushCount          int
	WindowDays         int
	GroupNames         []string
	GroupWebhooks      []string
	GroupSecrets       []string
}

func loadMongo() Mongo {
	return Mongo{URI: getEnv("MONGO_URI", "mongodb://localhost:27017")}
}

func loadDocStore() DocStore {
	return DocStore{
		Mongo:     loadMongo(),
		Database:  getEnv("DOCSTORE_DB", "kb"),
		Documents: getEnv("DOCSTORE_NEWS_COLLECTION", "kb_news"),
		Fragments: getEnv("DOCSTORE_FRAGMENT_COLLECTION", "kb_news_fragment"),
	}
}

// LoadPartition builds a Partition config from environment variables.
func LoadPartition() (*Partition, error) {
	c := &Partition{
		Mongo:            loadMongo(),
		SourceDatabase:   getEnv("RAW_SOURCE_DB", "crawler"),
		SourceCollection: getEnv("RAW_SOURCE_COLLECTION", "news_raw"),
		TargetDatabase:   getEnv("CLEAN_DB", "news_clean"),
		TargetPrefix:     getEnv("CLEAN_PREFIX", "news_"),
		Source:           getEnv("NEWS_SOURCE", "公众号"),
	}

	if c.TargetPrefix == "" {
		return nil, fmt.Errorf("CLEAN_PREFIX must not be empty")
	}
	return c, nil
}

// LoadPipeline builds a Pipeline config from environment variables.
func LoadPipeline() (*Pipeline, error) {
	c := &Pipeline{
		DocStore:       loadDocStore(),
		CleanDatabase:  getEnv("CLEAN_DB", "news_clean"),
		CleanPrefix:    getEnv("CLEAN_PREFIX", "news_"),
		Source:         getEnv("NEWS_SOURCE", "公众号"),
		AnnotationURL:  getEnv("ANNOTATION_URL", "http://localhost:8000/pipeline"),
		PipelineName:   getEnv("ANNOTATION_PIPELINE_NAME", "资讯标注PIPELINE"),
		BatchSize:      getInt("ANNOTATION_BATCH_SIZE", 20),
		TitleThreshold: getFloat("TITLE_SIMILARITY_THRESHOLD", 0.8),
		DocGapDays:     getInt("DOC_GAP_DAYS", 10),
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("ANNOTATION_BATCH_SIZE must be positive")
	}
	if c.TitleThreshold <= 0 || c.TitleThreshold > 1 {
		return nil, fmt.Errorf("TITLE_SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.DocGapDays <= 0 {
		return nil, fmt.Errorf("DOC_GAP_DAYS must be positive")
	}
	return c, nil
}

// LoadFragment builds a Fragment config from environment variables.
func LoadFragment() (*Fragment, error) {
	c := &Fragment{
		DocStore:        loadDocStore(),
		FragmentURL:     getEnv("FRAGMENT_URL", "http://localhost:8001/fragment"),
		BatchSize:       getInt("FRAGMENT_BATCH_SIZE", 20),
		TextThreshold:   getFloat("TEXT_SIMILARITY_THRESHOLD", 0.8),
		EntityThreshold: getFloat("ENTITY_SIMILARITY_THRESHOLD", 0.8),
		WindowDays:      getInt("FRAGMENT_WINDOW_DAYS", 7),
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("FRAGMENT_BATCH_SIZE must be positive")
	}
	if c.WindowDays <= 0 {
		return nil, fmt.Errorf("FRAGMENT_WINDOW_DAYS must be positive")
	}
	return c, nil
}

// LoadMySQLSync builds a MySQLSync config from environment variables.
func LoadMySQLSync() (*MySQLSync, error) {
	c := &MySQLSync{
		DocStore: loadDocStore(),
		MySQLDSN: getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)"),
	}

	if c.MySQLDSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN must not be empty")
	}
	return c, nil
}

// LoadSearchSync builds a SearchSync config from environment variables.
func LoadSearchSync() (*SearchSync, error) {
	c := &SearchSync{
		DocStore:           loadDocStore(),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://localhost:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "industry_news"),
		TitleScoreCeiling:  getFloat("TITLE_SCORE_CEILING", 2.0),
	}

	if c.TitleScoreCeiling <= 0 {
		return nil, fmt.Errorf("TITLE_SCORE_CEILING must be positive")
	}
	return c, nil
}

// LoadArchive builds an Archive config from environment variables.
func LoadArchive() (*Archive, error) {
	c := &Archive{
		DocStore:        loadDocStore(),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)"),
		ConceptDatabase: getEnv("CONCEPT_DB", "kb_concept"),
		ConceptTable:    getEnv("CONCEPT_TABLE", "concept"),
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:      getEnv("ARCHIVE_TOPIC", "news_archive"),
		BatchSize:       getInt("ARCHIVE_BATCH_SIZE", 100),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive")
	}
	return c, nil
}

// LoadPush builds a Push config from environment variables.
func LoadPush() (*Push, error) {
	c := &Push{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://localhost:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "industry_news"),
		CompanyIndex:       getEnv("COMPANY_INDEX", "company"),
		DetailURL:          getEnv("NEWS_DETAIL_URL", "http://localhost:8080/news/%s"),
		PushCount:          getInt("PUSH_COUNT", 8),
		WindowDays:         getInt("PUSH_WINDOW_DAYS", 7),
		GroupNames:         splitAndTrim(os.Getenv("PUSH_GROUPS")),
		GroupWebhooks:      splitAndTrim(os.Getenv("PUSH_WEBHOOKS")),
		GroupSecrets:       splitAndTrim(os.Getenv("PUSH_SECRETS")),
	}

	if c.PushCount <= 0 {
		return nil, fmt.Errorf("PUSH_COUNT must be positive")
	}
	if len(c.GroupNames) == 0 {
		return nil, fmt.Errorf("PUSH_GROUPS must name at least one group")
	}
	if len(c.GroupNames) != len(c.GroupWebhooks) || len(c.GroupNames) != len(c.GroupSecrets) {
		return nil, fmt.Errorf("PUSH_GROUPS, PUSH_WEBHOOKS and PUSH_SECRETS must have equal length")
	}
	if !strings.Contains(c.DetailURL, "%s") {
		return nil, fmt.Errorf("NEWS_DETAIL_URL must contain a %%s placeholder")
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
