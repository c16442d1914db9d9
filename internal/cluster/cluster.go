package cluster

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aqxion/keyword-cli/internal/model"
)

// Result is the outcome of clustering one run's records.
type Result struct {
	Clusters []model.Cluster
	Noise    int
	Strategy string
	// Degraded is set when embeddings were unavailable and the partition
	// came from a non-semantic fallback.
	Degraded bool
}

// Clusterer assigns every record a cluster through the strategy chain and
// labels the resulting groups.
type Clusterer struct {
	embedder Embedder
	labeler  Labeler
	chain    *Chain
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithChain overrides the default strategy chain.
func WithChain(chain *Chain) Option {
	return func(c *Clusterer) { c.chain = chain }
}

// WithLabeler overrides the default bigram labeler.
func WithLabeler(l Labeler) Option {
	return func(c *Clusterer) { c.labeler = l }
}

// New returns a Clusterer. embedder may be nil; the chain then falls back
// to lexical grouping and the result is marked degraded.
func New(embedder Embedder, geoTerms []string, maxClusters int, opts ...Option) *Clusterer {
	c := &Clusterer{
		embedder: embedder,
		labeler:  BigramLabeler{},
		chain: NewChain(
			NewDensityStrategy(),
			NewCentroidStrategy(maxClusters),
			NewLexicalStrategy(geoTerms),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster partitions records in place: every record gets a cluster ID or
// the noise marker, and a label. Returns cluster summaries ordered by mean
// score descending.
func (c *Clusterer) Cluster(ctx context.Context, records []model.KeywordRecord) (*Result, error) {
	if len(records) == 0 {
		return &Result{}, nil
	}

	result := &Result{}
	vectors := c.embed(ctx, records, result)

	assignment, err := c.chain.Run(records, vectors)
	if err != nil {
		return nil, eris.Wrap(err, "cluster: strategy chain")
	}
	result.Strategy = assignment.Strategy
	result.Noise = assignment.NoiseCount()

	groups := assignment.Clusters()
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		memberIdx := groups[id]
		members := make([]model.KeywordRecord, len(memberIdx))
		texts := make([]string, len(memberIdx))
		for j, i := range memberIdx {
			members[j] = records[i]
			texts[j] = records[i].Text
		}

		label, err := c.labeler.Label(ctx, texts)
		if err != nil {
			zap.L().Warn("cluster: labeling failed", zap.Int("cluster", id), zap.Error(err))
			label = bigramLabel(texts)
		}

		for _, i := range memberIdx {
			cid := id
			records[i].ClusterID = &cid
			records[i].ClusterLabel = label
		}
		result.Clusters = append(result.Clusters, model.Summarize(id, label, members))
	}

	for i := range records {
		if records[i].ClusterID == nil {
			noise := model.ClusterNoise
			records[i].ClusterID = &noise
		}
	}

	sort.SliceStable(result.Clusters, func(i, j int) bool {
		if result.Clusters[i].MeanScore != result.Clusters[j].MeanScore {
			return result.Clusters[i].MeanScore > result.Clusters[j].MeanScore
		}
		return result.Clusters[i].ID < result.Clusters[j].ID
	})

	zap.L().Info("cluster: partition complete",
		zap.String("strategy", result.Strategy),
		zap.Int("clusters", len(result.Clusters)),
		zap.Int("noise", result.Noise),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}

// embed fetches vectors for every record, or returns nil and marks the
// result degraded when no embedder is available or the batch fails.
func (c *Clusterer) embed(ctx context.Context, records []model.KeywordRecord, result *Result) [][]float64 {
	if c.embedder == nil {
		result.Degraded = true
		return nil
	}

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		zap.L().Warn("cluster: embedding provider unavailable, degrading", zap.Error(err))
		result.Degraded = true
		return nil
	}
	return vectors
}
