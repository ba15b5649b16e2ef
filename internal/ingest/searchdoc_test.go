package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/ingest"
	"github.com/liangzhi-data/newspipe/internal/models"
)

func wechatDoc() models.Document {
	return models.Document{
		Key:         "d1",
		Title:       "甲公司完成融资",
		Content:     "正文",
		Abstract:    "摘要",
		URL:         "https://example.com/d1",
		ImgURL:      []string{"https://img.example.com/1.png", "https://img.example.com/2.png"},
		Source:      ingest.SourceWeChat,
		PublishTime: "2020-06-23 16:55:01",
		CreateTime:  "2020-06-23 18:00:00",
		UpdateTime:  "2020-06-23 18:00:00",
		Tags: []models.Tag{
			{Name: "生物制药", ConceptName: models.ConceptIndustry},
			{Name: "创新药", ConceptName: models.ConceptDomain},
			{Name: "投融资", ConceptName: models.ConceptEvent},
		},
		Entities: []models.Entity{{
			Name: "甲公司",
			ExternalReference: models.ExternalReference{
				ID:   "company/123456",
				Name: "甲公司股份有限公司",
			},
		}},
	}
}

func TestBuildSearchDoc(t *testing.T) {
	out, skip := ingest.BuildSearchDoc(wechatDoc())
	require.Empty(t, skip)

	require.Equal(t, "甲公司完成融资", out.Title)
	// Day precision for the search index; full precision stays in the store.
	require.Equal(t, "2020-06-23", out.PublishTime)
	require.Equal(t, "生物医药", out.Industry)
	require.Equal(t, "创新药", out.Domain)
	require.Equal(t, "投融资", out.Subject)
	require.Equal(t, "https://img.example.com/1.png", out.Logo)
	require.Equal(t, "123456", out.CompanyID)
	require.Equal(t, "甲公司股份有限公司", out.CompanyName)
	require.False(t, out.IsPushed)
}

func TestBuildSearchDocSourceGate(t *testing.T) {
	doc := wechatDoc()
	doc.Source = "其他来源"

	_, skip := ingest.BuildSearchDoc(doc)
	require.Equal(t, ingest.SkipSource, skip)
}

func TestBuildSearchDocRequiresIndustry(t *testing.T) {
	doc := wechatDoc()
	doc.Tags = []models.Tag{{Name: "投融资", ConceptName: models.ConceptEvent}}

	_, skip := ingest.BuildSearchDoc(doc)
	require.Equal(t, ingest.SkipNoIndustry, skip)
}

func TestBuildSearchDocNoEntities(t *testing.T) {
	doc := wechatDoc()
	doc.Entities = nil
	doc.ImgURL = nil

	out, skip := ingest.BuildSearchDoc(doc)
	require.Empty(t, skip)
	require.Empty(t, out.CompanyID)
	require.Empty(t, out.CompanyName)
	require.Empty(t, out.Logo)
}
