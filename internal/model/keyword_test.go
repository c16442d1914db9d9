package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddSource(t *testing.T) {
	k := KeywordRecord{}
	k.AddSource("suggest:seo")
	k.AddSource("trends:seo")
	k.AddSource("suggest:seo")
	assert.Equal(t, []string{"suggest:seo", "trends:seo"}, k.Sources)
}

func TestInCluster(t *testing.T) {
	var k KeywordRecord
	assert.False(t, k.InCluster())

	noise := ClusterNoise
	k.ClusterID = &noise
	assert.False(t, k.InCluster())

	id := 3
	k.ClusterID = &id
	assert.True(t, k.InCluster())
}

func TestTokenCount(t *testing.T) {
	tests := []struct {
		normalized string
		want       int
	}{
		{"", 0},
		{"seo", 1},
		{"agencia seo lima", 3},
		{"  doble  espacio ", 2},
	}
	for _, tt := range tests {
		k := KeywordRecord{Normalized: tt.normalized}
		assert.Equal(t, tt.want, k.TokenCount(), tt.normalized)
	}
}

func TestSortByScoreStable(t *testing.T) {
	records := []KeywordRecord{
		{Normalized: "b", Score: 50},
		{Normalized: "a", Score: 50},
		{Normalized: "c", Score: 90},
	}
	SortByScore(records)
	assert.Equal(t, "c", records[0].Normalized)
	assert.Equal(t, "a", records[1].Normalized)
	assert.Equal(t, "b", records[2].Normalized)
}

func TestSummarize(t *testing.T) {
	members := []KeywordRecord{
		{Text: "agencia seo lima", Score: 80, Intent: IntentTransactional},
		{Text: "mejor agencia seo", Score: 60, Intent: IntentCommercial},
		{Text: "contratar seo", Score: 70, Intent: IntentTransactional},
	}
	c := Summarize(2, "agencia seo", members)

	assert.Equal(t, 2, c.ID)
	assert.Equal(t, 3, c.Size)
	assert.Equal(t, "agencia seo lima", c.Representative)
	assert.InDelta(t, 70.0, c.MeanScore, 0.001)
	assert.Equal(t, IntentTransactional, c.DominantIntent)
}

func TestSummarizeEmpty(t *testing.T) {
	c := Summarize(0, "x", nil)
	assert.Equal(t, 0, c.Size)
	assert.Zero(t, c.MeanScore)
}

func TestRunStatusTerminal(t *testing.T) {
	assert.True(t, RunStatusDone.Terminal())
	assert.True(t, RunStatusDegraded.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
	assert.False(t, RunStatusScoring.Terminal())
}
