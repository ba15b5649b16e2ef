// Package similarity implements the overlap-over-min-size scores used by the
// duplicate search: |A∩B| / min(|A|,|B|). This is deliberately not Jaccard;
// dividing by the smaller set is more permissive and matches the production
// thresholds tuned against it.
package similarity

import (
	"fmt"

	"github.com/go-ego/gse"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// Scorer computes text similarity scores. The word-level score needs a loaded
// segmenter, so a Scorer is constructed once per run and shared.
type Scorer struct {
	seg gse.Segmenter
}

// NewScorer loads the default segmentation dictionary.
func NewScorer() (*Scorer, error) {
	s := &Scorer{}
	if err := s.seg.LoadDict(); err != nil {
		return nil, fmt.Errorf("load segmenter dict: %w", err)
	}
	return s, nil
}

// Title scores two document titles by character-set overlap. Titles are short,
// so single-character overlap tolerates minor rewording; this is intentionally
// different from the word-level Text score used for fragment sentences.
func Title(a, b string) float64 {
	return overlapOverMin(runeSet(a), runeSet(b))
}

// Text scores two sentences by word-token overlap.
func (s *Scorer) Text(a, b string) float64 {
	return overlapOverMin(tokenSet(s.seg.Cut(a, true)), tokenSet(s.seg.Cut(b, true)))
}

// Entities scores two entity lists by name overlap. Either list empty means
// no basis for comparison: score 0, short-circuited before the ratio.
func Entities(a, b []models.Entity) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return overlapOverMin(nameSet(a), nameSet(b))
}

func overlapOverMin(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for k := range a {
		if _, ok := b[k]; ok {
			common++
		}
	}
	denom := len(a)
	if len(b) < denom {
		denom = len(b)
	}
	return float64(common) / float64(denom)
}

func runeSet(s string) map[string]struct{} {
	set := make(map[string]struct{}, len(s))
	for _, r := range s {
		set[string(r)] = struct{}{}
	}
	return set
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" || t == " " {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func nameSet(entities []models.Entity) map[string]struct{} {
	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		set[e.Name] = struct{}{}
	}
	return set
}
