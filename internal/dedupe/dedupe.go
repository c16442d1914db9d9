// Package dedupe collapses near-duplicate keyword candidates into canonical
// records. Candidates are normalized (lowercase, diacritics stripped,
// stopwords dropped) and compared pairwise with a sequence-similarity ratio;
// anything at or above the threshold merges into the first-seen record,
// keeping provenance from every merged source.
package dedupe

import (
	"strings"

	"go.uber.org/zap"

	"github.com/aqxion/keyword-cli/internal/model"
)

// DefaultThreshold is the similarity ratio at or above which two
// normalized candidates are treated as the same keyword.
const DefaultThreshold = 0.85

// Deduper merges near-duplicate candidates into canonical keyword records.
type Deduper struct {
	threshold float64
	geo       string
	language  string
}

// Option configures a Deduper.
type Option func(*Deduper)

// WithThreshold overrides the similarity threshold.
func WithThreshold(t float64) Option {
	return func(d *Deduper) { d.threshold = t }
}

// New returns a Deduper that stamps records with the given geo and
// language codes.
func New(geo, language string, opts ...Option) *Deduper {
	d := &Deduper{
		threshold: DefaultThreshold,
		geo:       geo,
		language:  language,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dedupe collapses candidates into unique keyword records, preserving
// first-seen order. At this stage no scores exist yet, so ties resolve to
// the earliest occurrence; later duplicates only contribute their source
// to the surviving record. Returns the records and the number of
// candidates merged away.
func (d *Deduper) Dedupe(candidates []model.Candidate) ([]model.KeywordRecord, int) {
	records := make([]model.KeywordRecord, 0, len(candidates))
	duplicates := 0

	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		norm := Normalize(text)
		if norm == "" {
			duplicates++
			continue
		}

		idx := d.match(records, norm)
		if idx >= 0 {
			records[idx].AddSource(c.Source)
			duplicates++
			zap.L().Debug("dedupe: merged candidate",
				zap.String("candidate", text),
				zap.String("canonical", records[idx].Text))
			continue
		}

		records = append(records, model.KeywordRecord{
			Text:       text,
			Normalized: norm,
			Geo:        d.geo,
			Language:   d.language,
			Sources:    []string{c.Source},
		})
	}

	return records, duplicates
}

// match returns the index of the first record whose normalized form is
// similar enough to norm, or -1.
func (d *Deduper) match(records []model.KeywordRecord, norm string) int {
	for i := range records {
		if records[i].Normalized == norm {
			return i
		}
		if Ratio(records[i].Normalized, norm) >= d.threshold {
			return i
		}
	}
	return -1
}
