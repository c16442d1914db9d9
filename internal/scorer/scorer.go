// Package scorer computes composite keyword scores from a frozen formula
// version. Signals are normalized by percentile rank within the batch, so
// ranking is relative to the run rather than to absolute magnitudes; a
// layered set of intent, geo, and guardrail adjustments follows. Scoring is
// fully deterministic for a given batch and formula version.
package scorer

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aqxion/keyword-cli/internal/formula"
	"github.com/aqxion/keyword-cli/internal/intent"
	"github.com/aqxion/keyword-cli/internal/model"
)

// Config freezes the scoring inputs for one run.
type Config struct {
	// Geo is the target market country code (e.g. "pe").
	Geo string
	// Version is the frozen formula revision applied to every record.
	Version formula.Version
}

// Scorer scores batches of keyword records.
type Scorer struct {
	cfg Config
}

// New returns a Scorer for the given configuration.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// signals are the raw per-record values fed into percentile normalization.
type signals struct {
	relevance   float64
	volume      float64
	competition float64
	trend       float64
}

// ScoreBatch scores every record in place: intent classification, the base
// percentile formula, then the layered adjustments. Records with an empty
// normalized text score zero.
func (s *Scorer) ScoreBatch(records []model.KeywordRecord) {
	if len(records) == 0 {
		return
	}

	raw := make([]signals, len(records))
	for i := range records {
		rec := &records[i]
		rec.Intent = intent.Classify(rec.Text)
		rec.IntentProb = intent.Probability(rec.Text)
		raw[i] = signals{
			relevance:   rec.IntentProb,
			volume:      float64(rec.Volume),
			competition: rec.Competition,
			trend:       rec.TrendScore,
		}
	}

	relSorted := sortedSignal(raw, func(sg signals) float64 { return sg.relevance })
	volSorted := sortedSignal(raw, func(sg signals) float64 { return sg.volume })
	compSorted := sortedSignal(raw, func(sg signals) float64 { return sg.competition })
	trendSorted := sortedSignal(raw, func(sg signals) float64 { return sg.trend })

	for i := range records {
		rec := &records[i]

		relPct := percentileRank(raw[i].relevance, relSorted)
		volPct := percentileRank(raw[i].volume, volSorted)
		compPct := percentileRank(raw[i].competition, compSorted)
		trendPct := percentileRank(raw[i].trend, trendSorted)

		w := s.cfg.Version.Weights
		base := (relPct*w.Relevance +
			volPct*w.Volume +
			(1-compPct)*w.Competition +
			trendPct*w.Trend) * 100

		score, parts := s.adjust(rec, base)
		parts["relevance_pct"] = relPct
		parts["volume_pct"] = volPct
		parts["competition_pct"] = compPct
		parts["trend_pct"] = trendPct
		parts["base"] = base

		rec.Score = clamp(score)
		rec.ScoreParts = parts
		rec.FormulaVersion = s.cfg.Version.Name
	}

	zap.L().Debug("scorer: batch scored",
		zap.Int("records", len(records)),
		zap.String("formula", s.cfg.Version.Name),
		zap.String("geo", s.cfg.Geo))
}

// adjust applies the layered adjustments in their fixed order: intent
// multiplier, geo boost, guardrail penalties, guardrail bonuses.
func (s *Scorer) adjust(rec *model.KeywordRecord, base float64) (float64, map[string]float64) {
	v := s.cfg.Version
	parts := make(map[string]float64, 12)
	score := base

	mult, ok := v.IntentMultipliers[string(rec.Intent)]
	if !ok {
		mult = v.IntentMultipliers[string(model.IntentInformational)]
	}
	score *= mult
	parts["intent_multiplier"] = mult

	geo := detectGeo(rec.Text, s.cfg.Geo)
	if geo == GeoTarget {
		score *= v.GeoBoost
		parts["geo_boost"] = v.GeoBoost
	}

	g := v.Guardrails
	if rec.Intent == model.IntentInformational && geo != GeoTarget {
		score -= score * g.InformationalNoGeoPenalty
		parts["penalty_informational_no_geo"] = g.InformationalNoGeoPenalty
	}
	if geo == GeoForeign {
		score -= score * g.ForeignGeoPenalty
		parts["penalty_foreign_geo"] = g.ForeignGeoPenalty
	}
	if rec.TokenCount() == 1 {
		score -= score * g.GenericSingleWordPenalty
		parts["penalty_generic_single_word"] = g.GenericSingleWordPenalty
	}

	if tc := rec.TokenCount(); tc >= 3 && tc <= 4 {
		score += score * g.OptimalLengthBonus
		parts["bonus_optimal_length"] = g.OptimalLengthBonus
	}
	if hasCommercialIndicator(rec.Text) {
		score += score * g.CommercialIndicatorBonus
		parts["bonus_commercial_indicator"] = g.CommercialIndicatorBonus
	}

	return score, parts
}

func sortedSignal(raw []signals, pick func(signals) float64) []float64 {
	out := make([]float64, len(raw))
	for i, sg := range raw {
		out[i] = pick(sg)
	}
	sort.Float64s(out)
	return out
}

// percentileRank returns the fraction of batch values strictly below v.
// The batch minimum ranks 0.0 and the maximum 1.0.
func percentileRank(v float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if v <= sorted[0] {
		return 0
	}
	if v >= sorted[n-1] {
		return 1
	}
	i := sort.SearchFloat64s(sorted, v)
	return float64(i) / float64(n)
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// TargetGeoTerms returns the geo-indicative terms for a market code. Used
// by the rule-based clustering fallback to build its geo bucket.
func TargetGeoTerms(geo string) []string {
	return geoTerms[strings.ToLower(geo)]
}
