package ingest

import "github.com/liangzhi-data/newspipe/internal/models"

// relabeled industries: two source labels collapse into one canonical
// destination. The biotech and medical-device feeds share a store.
var canonicalIndustry = map[string]string{
	"生物制药": "生物医药",
	"医疗器械": "生物医药",
}

// CanonicalIndustry maps a tag label to its destination label.
func CanonicalIndustry(label string) string {
	if canonical, ok := canonicalIndustry[label]; ok {
		return canonical
	}
	return label
}

// ResolveIndustries collects every industry label on the document, relabels,
// and deduplicates while preserving first-occurrence order. A document may
// legitimately fan out to several industry destinations.
func ResolveIndustries(tags []models.Tag) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tag := range tags {
		if tag.ConceptName != models.ConceptIndustry {
			continue
		}
		label := CanonicalIndustry(tag.Name)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// ResolveIndustry derives the single-valued industry field: the first tag
// with the industry concept, relabeled. Empty when the document has none;
// such documents are filtered from industry-scoped destinations.
func ResolveIndustry(tags []models.Tag) string {
	for _, tag := range tags {
		if tag.ConceptName == models.ConceptIndustry {
			return CanonicalIndustry(tag.Name)
		}
	}
	return ""
}

// ResolveDomain derives the single-valued domain field, first match wins.
func ResolveDomain(tags []models.Tag) string {
	for _, tag := range tags {
		if tag.ConceptName == models.ConceptDomain {
			return tag.Name
		}
	}
	return ""
}
