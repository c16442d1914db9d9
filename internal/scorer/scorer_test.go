package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqxion/keyword-cli/internal/formula"
	"github.com/aqxion/keyword-cli/internal/model"
)

func testVersion(t *testing.T) formula.Version {
	t.Helper()
	reg, err := formula.Load()
	require.NoError(t, err)
	return reg.Default()
}

func record(text string) model.KeywordRecord {
	return model.KeywordRecord{
		Text:       text,
		Normalized: text,
		Geo:        "pe",
		Language:   "es",
		Volume:     1000,
		Competition: 0.5,
		TrendScore: 0.5,
	}
}

func TestScoreBatchBounds(t *testing.T) {
	s := New(Config{Geo: "pe", Version: testVersion(t)})

	records := []model.KeywordRecord{
		record("contratar agencia seo lima"),
		record("curso marketing digital"),
		record("que es seo"),
		record("seo"),
		record("mejor software email marketing precio"),
	}
	records[0].Volume = 50000
	records[1].Volume = 8000
	records[2].Volume = 300
	records[4].Competition = 0.9

	s.ScoreBatch(records)

	for _, r := range records {
		assert.GreaterOrEqual(t, r.Score, 0.0, "%s", r.Text)
		assert.LessOrEqual(t, r.Score, 100.0, "%s", r.Text)
		assert.NotEmpty(t, r.Intent)
		assert.Equal(t, "v1", r.FormulaVersion)
		assert.NotEmpty(t, r.ScoreParts)
	}
}

func TestScoreBatchDeterministic(t *testing.T) {
	v := testVersion(t)
	build := func() []model.KeywordRecord {
		recs := []model.KeywordRecord{
			record("agencia seo lima"),
			record("curso python gratis"),
			record("herramientas marketing"),
		}
		recs[0].Volume = 2800
		recs[1].Volume = 4400
		recs[2].Volume = 8000
		return recs
	}

	a := build()
	b := build()
	New(Config{Geo: "pe", Version: v}).ScoreBatch(a)
	New(Config{Geo: "pe", Version: v}).ScoreBatch(b)

	for i := range a {
		assert.Equal(t, a[i].Score, b[i].Score, "scores must be bit-identical across runs")
		assert.Equal(t, a[i].ScoreParts, b[i].ScoreParts)
	}
}

func TestTargetGeoTermStrictlyOutscoresPlainVariant(t *testing.T) {
	s := New(Config{Geo: "pe", Version: testVersion(t)})

	records := []model.KeywordRecord{
		record("contratar agencia seo lima"),
		record("contratar agencia seo"),
	}
	s.ScoreBatch(records)

	require.Equal(t, model.IntentTransactional, records[0].Intent)
	require.Equal(t, model.IntentTransactional, records[1].Intent)
	assert.Greater(t, records[0].Score, records[1].Score,
		"local-intent variant must rank strictly above the plain one")
	assert.Equal(t, 2.0, records[0].ScoreParts["geo_boost"])
	assert.NotContains(t, records[1].ScoreParts, "geo_boost")
}

func TestGuardrailPenalties(t *testing.T) {
	s := New(Config{Geo: "pe", Version: testVersion(t)})

	records := []model.KeywordRecord{
		record("seo"),                      // generic single word, informational, no geo
		record("marketing en madrid"),      // foreign geo for a PE run
		record("contratar consultor lima"), // clean transactional local
	}
	s.ScoreBatch(records)

	assert.Contains(t, records[0].ScoreParts, "penalty_generic_single_word")
	assert.Contains(t, records[0].ScoreParts, "penalty_informational_no_geo")

	assert.Contains(t, records[1].ScoreParts, "penalty_foreign_geo")

	assert.NotContains(t, records[2].ScoreParts, "penalty_foreign_geo")
	assert.NotContains(t, records[2].ScoreParts, "penalty_informational_no_geo")
}

func TestGuardrailBonuses(t *testing.T) {
	s := New(Config{Geo: "pe", Version: testVersion(t)})

	records := []model.KeywordRecord{
		record("comprar hosting web peru"), // 4 tokens + commercial indicator
		record("que significa serp"),
	}
	s.ScoreBatch(records)

	assert.Equal(t, 0.05, records[0].ScoreParts["bonus_optimal_length"])
	assert.Equal(t, 0.10, records[0].ScoreParts["bonus_commercial_indicator"])
	assert.NotContains(t, records[1].ScoreParts, "bonus_commercial_indicator")
}

func TestPercentileRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.0, percentileRank(1, sorted))
	assert.Equal(t, 1.0, percentileRank(5, sorted))
	assert.Equal(t, 0.4, percentileRank(3, sorted))
	assert.Equal(t, 0.0, percentileRank(0.5, sorted))
	assert.Equal(t, 1.0, percentileRank(9, sorted))
	assert.Equal(t, 0.0, percentileRank(3, nil))
}

func TestDetectGeo(t *testing.T) {
	tests := []struct {
		keyword string
		geo     string
		want    GeoMatch
	}{
		{"agencia seo lima", "pe", GeoTarget},
		{"agencia seo madrid", "pe", GeoForeign},
		{"agencia seo", "pe", GeoNone},
		{"marketing cdmx", "mx", GeoTarget},
		{"marketing perú", "PE", GeoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, detectGeo(tt.keyword, tt.geo))
		})
	}
}

func TestWeightsSumToOne(t *testing.T) {
	v := testVersion(t)
	assert.InDelta(t, 1.0, v.Weights.Sum(), 1e-9)
}
