package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/ingest"
	"github.com/liangzhi-data/newspipe/internal/models"
)

func industryTag(name string) models.Tag {
	return models.Tag{Name: name, ConceptName: models.ConceptIndustry}
}

func TestCanonicalIndustry(t *testing.T) {
	require.Equal(t, "生物医药", ingest.CanonicalIndustry("生物制药"))
	require.Equal(t, "生物医药", ingest.CanonicalIndustry("医疗器械"))
	require.Equal(t, "人工智能", ingest.CanonicalIndustry("人工智能"))
}

func TestResolveIndustriesRelabelsAndDeduplicates(t *testing.T) {
	tags := []models.Tag{
		industryTag("生物制药"),
		{Name: "投融资", ConceptName: models.ConceptEvent},
		industryTag("医疗器械"),
		industryTag("人工智能"),
	}

	// Both relabeled tags collapse into one destination.
	require.Equal(t, []string{"生物医药", "人工智能"}, ingest.ResolveIndustries(tags))
}

func TestResolveIndustriesNoIndustryTags(t *testing.T) {
	tags := []models.Tag{{Name: "投融资", ConceptName: models.ConceptEvent}}
	require.Empty(t, ingest.ResolveIndustries(tags))
}

func TestResolveIndustryFirstMatchWins(t *testing.T) {
	tags := []models.Tag{
		{Name: "自动驾驶", ConceptName: models.ConceptDomain},
		industryTag("医疗器械"),
		industryTag("人工智能"),
	}
	require.Equal(t, "生物医药", ingest.ResolveIndustry(tags))
	require.Equal(t, "自动驾驶", ingest.ResolveDomain(tags))
}

func TestResolveIndustryEmpty(t *testing.T) {
	require.Empty(t, ingest.ResolveIndustry(nil))
	require.Empty(t, ingest.ResolveDomain(nil))
}
