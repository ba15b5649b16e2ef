package ingest

import (
	"strings"

	"github.com/liangzhi-data/newspipe/internal/essink"
	"github.com/liangzhi-data/newspipe/internal/models"
)

// SourceWeChat is the only source currently synced to the search index.
const SourceWeChat = "公众号"

// Skip reasons returned by BuildSearchDoc.
const (
	SkipSource     = "source-not-supported"
	SkipNoIndustry = "no-industry"
)

// BuildSearchDoc derives the search-index record for a stored document. The
// second return value names the business-rule filter that rejected the
// document, or "" when the record should be indexed.
func BuildSearchDoc(doc models.Document) (essink.SearchDoc, string) {
	if doc.Source != SourceWeChat {
		return essink.SearchDoc{}, SkipSource
	}

	industry := ResolveIndustry(doc.Tags)
	if industry == "" {
		return essink.SearchDoc{}, SkipNoIndustry
	}

	out := essink.SearchDoc{
		Title:       doc.Title,
		PublishTime: models.DatePart(doc.PublishTime),
		CreateTime:  doc.CreateTime,
		UpdateTime:  doc.UpdateTime,
		URL:         doc.URL,
		Content:     doc.Content,
		Abstract:    doc.Abstract,
		Source:      doc.Source,
		ImgURL:      doc.ImgURL,
		Industry:    industry,
		Domain:      ResolveDomain(doc.Tags),
		Subject:     doc.EventType(),
		Tags:        doc.Tags,
		Entities:    doc.Entities,
		IsPushed:    false,
	}

	if len(doc.ImgURL) > 0 {
		out.Logo = doc.ImgURL[0]
	}

	if len(doc.Entities) > 0 {
		ref := doc.Entities[0].ExternalReference
		out.CompanyID = companyIDFromRef(ref.ID)
		out.CompanyName = ref.Name
	}

	return out, ""
}

// companyIDFromRef strips the collection prefix from a knowledge-base
// reference like "company/123456".
func companyIDFromRef(ref string) string {
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
