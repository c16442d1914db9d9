package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqxion/keyword-cli/internal/model"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "seo tools", "seo tools", 1.0},
		{"both empty", "", "", 1.0},
		{"disjoint", "abc", "xyz", 0.0},
		{"near duplicate", "seo tools", "seo tool", 16.0 / 17.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"curso de marketing digital", "cursos marketing digital"},
		{"herramientas seo", "herramienta seo gratis"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Ratio(p[0], p[1]), Ratio(p[1], p[0]), 1e-9)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  SEO Tools  ", "seo tools"},
		{"diacritics stripped", "marketing en Perú", "marketing peru"},
		{"stopwords dropped", "curso de marketing", "curso marketing"},
		{"punctuation to spaces", "seo-tools, 2024!", "seo tools 2024"},
		{"all stopwords kept", "de la", "de la"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestDedupeMergesNearDuplicates(t *testing.T) {
	d := New("pe", "es")
	candidates := []model.Candidate{
		{Text: "seo tools", Seed: "seo", Source: "suggest"},
		{Text: "seo tool", Seed: "seo", Source: "planner"},
		{Text: "curso de marketing digital", Seed: "marketing", Source: "suggest"},
	}

	records, dups := d.Dedupe(candidates)
	require.Len(t, records, 2)
	assert.Equal(t, 1, dups)

	// First-seen wins; the merged duplicate contributes its source.
	assert.Equal(t, "seo tools", records[0].Text)
	assert.Equal(t, []string{"suggest", "planner"}, records[0].Sources)
	assert.Equal(t, "pe", records[0].Geo)
	assert.Equal(t, "es", records[0].Language)

	assert.Equal(t, "curso de marketing digital", records[1].Text)
}

func TestDedupeExactNormalizedMatch(t *testing.T) {
	d := New("pe", "es")
	records, dups := d.Dedupe([]model.Candidate{
		{Text: "Marketing en Perú", Source: "suggest"},
		{Text: "marketing peru", Source: "suggest"},
	})
	require.Len(t, records, 1)
	assert.Equal(t, 1, dups)
	assert.Equal(t, "Marketing en Perú", records[0].Text)
}

func TestDedupeDistinctBelowThreshold(t *testing.T) {
	d := New("pe", "es")
	records, dups := d.Dedupe([]model.Candidate{
		{Text: "agencia seo lima", Source: "suggest"},
		{Text: "curso python gratis", Source: "suggest"},
	})
	assert.Len(t, records, 2)
	assert.Zero(t, dups)
}

func TestDedupeSkipsEmpty(t *testing.T) {
	d := New("pe", "es")
	records, dups := d.Dedupe([]model.Candidate{
		{Text: "   ", Source: "suggest"},
		{Text: "seo", Source: "suggest"},
	})
	require.Len(t, records, 1)
	assert.Equal(t, 1, dups)
}

func TestDedupeCustomThreshold(t *testing.T) {
	// At a looser threshold these two merge; at the default they do not.
	a, b := "curso marketing", "curso marketing digital"
	ratio := Ratio(Normalize(a), Normalize(b))
	require.Less(t, ratio, DefaultThreshold)

	loose := New("pe", "es", WithThreshold(ratio-0.01))
	records, dups := loose.Dedupe([]model.Candidate{
		{Text: a, Source: "suggest"},
		{Text: b, Source: "suggest"},
	})
	assert.Len(t, records, 1)
	assert.Equal(t, 1, dups)
}
