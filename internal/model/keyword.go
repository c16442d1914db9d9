package model

import "sort"

// Intent classifies the likely purpose behind a search query.
type Intent string

const (
	IntentTransactional Intent = "transactional"
	IntentCommercial    Intent = "commercial"
	IntentInformational Intent = "informational"
)

// Candidate is a raw keyword string collected from a single source for a
// single seed. Candidates are ephemeral: they exist between collection and
// deduplication and never reach the store.
type Candidate struct {
	Text   string `json:"text"`
	Seed   string `json:"seed"`
	Source string `json:"source"`
}

// ClusterNoise marks a record the density strategy could not confidently
// assign to any group.
const ClusterNoise = -1

// KeywordRecord is the canonical, scored representation of a keyword within
// a run. (Normalized, Geo, Language) is unique per run.
type KeywordRecord struct {
	Text       string `json:"text"`
	Normalized string `json:"normalized"`
	Geo        string `json:"geo"`
	Language   string `json:"language"`

	Volume          int     `json:"volume"`
	VolumeEstimated bool    `json:"volume_estimated"`
	Competition     float64 `json:"competition"`
	TrendScore      float64 `json:"trend_score"`

	Intent     Intent  `json:"intent"`
	IntentProb float64 `json:"intent_prob"`

	Score          float64            `json:"score"`
	ScoreParts     map[string]float64 `json:"score_parts,omitempty"`
	FormulaVersion string             `json:"formula_version,omitempty"`

	// Sources records every collection source that produced this keyword or
	// a near-duplicate merged into it.
	Sources []string `json:"sources"`

	// ClusterID is nil until clustering assigns one. ClusterNoise marks an
	// outlier left outside every cluster.
	ClusterID    *int   `json:"cluster_id,omitempty"`
	ClusterLabel string `json:"cluster_label,omitempty"`
}

// AddSource appends src to the provenance list unless already present.
func (k *KeywordRecord) AddSource(src string) {
	for _, s := range k.Sources {
		if s == src {
			return
		}
	}
	k.Sources = append(k.Sources, src)
}

// InCluster reports whether the record was assigned to a real cluster
// (not noise, not unassigned).
func (k *KeywordRecord) InCluster() bool {
	return k.ClusterID != nil && *k.ClusterID != ClusterNoise
}

// TokenCount returns the number of whitespace-separated tokens in the
// normalized text.
func (k *KeywordRecord) TokenCount() int {
	n := 0
	inTok := false
	for _, r := range k.Normalized {
		if r == ' ' {
			inTok = false
			continue
		}
		if !inTok {
			n++
			inTok = true
		}
	}
	return n
}

// SortByScore orders records by score descending, breaking ties by
// normalized text so output order is stable across runs.
func SortByScore(records []KeywordRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].Normalized < records[j].Normalized
	})
}

// Cluster is a topical group of scored keywords.
type Cluster struct {
	ID             int     `json:"id"`
	Label          string  `json:"label"`
	Representative string  `json:"representative"`
	Size           int     `json:"size"`
	MeanScore      float64 `json:"mean_score"`
	DominantIntent Intent  `json:"dominant_intent"`
}

// Summarize builds a Cluster summary from its member records. The
// representative is the highest-scoring member.
func Summarize(id int, label string, members []KeywordRecord) Cluster {
	c := Cluster{ID: id, Label: label, Size: len(members)}
	if len(members) == 0 {
		return c
	}

	var total float64
	counts := map[Intent]int{}
	best := members[0]
	for _, m := range members {
		total += m.Score
		counts[m.Intent]++
		if m.Score > best.Score {
			best = m
		}
	}
	c.MeanScore = total / float64(len(members))
	c.Representative = best.Text

	// Dominant intent: highest count, transactional > commercial >
	// informational on ties.
	order := []Intent{IntentTransactional, IntentCommercial, IntentInformational}
	bestCount := -1
	for _, in := range order {
		if counts[in] > bestCount {
			bestCount = counts[in]
			c.DominantIntent = in
		}
	}
	return c
}
