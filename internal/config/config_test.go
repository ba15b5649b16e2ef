package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/config"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("DOCSTORE_DB", "")
	t.Setenv("ANNOTATION_URL", "")
	t.Setenv("ANNOTATION_BATCH_SIZE", "")
	t.Setenv("TITLE_SIMILARITY_THRESHOLD", "")
	t.Setenv("DOC_GAP_DAYS", "")

	cfg, err := config.LoadPipeline()
	require.NoError(t, err)

	require.Equal(t, "mongodb://localhost:27017", cfg.URI)
	require.Equal(t, "kb", cfg.Database)
	require.Equal(t, "kb_news", cfg.Documents)
	require.Equal(t, "kb_news_fragment", cfg.Fragments)
	require.Equal(t, "公众号", cfg.Source)
	require.Equal(t, 20, cfg.BatchSize)
	require.Equal(t, 0.8, cfg.TitleThreshold)
	require.Equal(t, 10, cfg.DocGapDays)
}

func TestLoadPipelineOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("ANNOTATION_URL", "http://nlp:8000/pipeline")
	t.Setenv("ANNOTATION_BATCH_SIZE", "50")
	t.Setenv("TITLE_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("DOC_GAP_DAYS", "5")

	cfg, err := config.LoadPipeline()
	require.NoError(t, err)

	require.Equal(t, "mongodb://mongo:27017", cfg.URI)
	require.Equal(t, "http://nlp:8000/pipeline", cfg.AnnotationURL)
	require.Equal(t, 50, cfg.BatchSize)
	require.Equal(t, 0.9, cfg.TitleThreshold)
	require.Equal(t, 5, cfg.DocGapDays)
}

func TestLoadPipelineRejectsBadThreshold(t *testing.T) {
	t.Setenv("TITLE_SIMILARITY_THRESHOLD", "1.5")

	_, err := config.LoadPipeline()
	require.Error(t, err)
}

func TestLoadFragmentDefaults(t *testing.T) {
	t.Setenv("FRAGMENT_URL", "")
	t.Setenv("FRAGMENT_BATCH_SIZE", "")
	t.Setenv("TEXT_SIMILARITY_THRESHOLD", "")
	t.Setenv("ENTITY_SIMILARITY_THRESHOLD", "")
	t.Setenv("FRAGMENT_WINDOW_DAYS", "")

	cfg, err := config.LoadFragment()
	require.NoError(t, err)

	require.Equal(t, 20, cfg.BatchSize)
	require.Equal(t, 0.8, cfg.TextThreshold)
	require.Equal(t, 0.8, cfg.EntityThreshold)
	require.Equal(t, 7, cfg.WindowDays)
}

func TestLoadSearchSyncDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("TITLE_SCORE_CEILING", "")

	cfg, err := config.LoadSearchSync()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "industry_news", cfg.ElasticsearchIndex)
	require.Equal(t, 2.0, cfg.TitleScoreCeiling)
}

func TestLoadArchive(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("ARCHIVE_TOPIC", "archive_topic")
	t.Setenv("ARCHIVE_BATCH_SIZE", "50")

	cfg, err := config.LoadArchive()
	require.NoError(t, err)

	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "archive_topic", cfg.KafkaTopic)
	require.Equal(t, 50, cfg.BatchSize)
	require.Equal(t, "kb_concept", cfg.ConceptDatabase)
}

func TestLoadPush(t *testing.T) {
	t.Setenv("PUSH_GROUPS", "研发群,运营群")
	t.Setenv("PUSH_WEBHOOKS", "https://hook/a,https://hook/b")
	t.Setenv("PUSH_SECRETS", "sec-a,sec-b")
	t.Setenv("PUSH_COUNT", "")
	t.Setenv("NEWS_DETAIL_URL", "")

	cfg, err := config.LoadPush()
	require.NoError(t, err)

	require.Equal(t, []string{"研发群", "运营群"}, cfg.GroupNames)
	require.Equal(t, []string{"https://hook/a", "https://hook/b"}, cfg.GroupWebhooks)
	require.Equal(t, 8, cfg.PushCount)
	require.Equal(t, 7, cfg.WindowDays)
}

func TestLoadPushGroupLengthMismatch(t *testing.T) {
	t.Setenv("PUSH_GROUPS", "研发群,运营群")
	t.Setenv("PUSH_WEBHOOKS", "https://hook/a")
	t.Setenv("PUSH_SECRETS", "sec-a,sec-b")

	_, err := config.LoadPush()
	require.Error(t, err)
}

func TestLoadPushRequiresPlaceholder(t *testing.T) {
	t.Setenv("PUSH_GROUPS", "研发群")
	t.Setenv("PUSH_WEBHOOKS", "https://hook/a")
	t.Setenv("PUSH_SECRETS", "sec-a")
	t.Setenv("NEWS_DETAIL_URL", "https://news.example.com/detail")

	_, err := config.LoadPush()
	require.Error(t, err)
}
