package cluster

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Embedder produces fixed-dimension vectors for keyword texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// EmbedCache persists embeddings keyed by (text, model) so repeated runs
// never recompute a vector.
type EmbedCache interface {
	GetEmbedding(ctx context.Context, text, model string) ([]float64, bool, error)
	PutEmbedding(ctx context.Context, text, model string, vec []float64) error
}

// CachedEmbedder wraps an Embedder with a persistent cache. Only texts
// missing from the cache are sent upstream, in one batched call.
type CachedEmbedder struct {
	client Embedder
	cache  EmbedCache
}

// NewCachedEmbedder returns an embedder that consults cache before client.
func NewCachedEmbedder(client Embedder, cache EmbedCache) *CachedEmbedder {
	return &CachedEmbedder{client: client, cache: cache}
}

// Model returns the underlying model identifier.
func (e *CachedEmbedder) Model() string {
	return e.client.Model()
}

// Embed resolves a vector per text, serving cached entries and fetching the
// rest in a single upstream call.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	var missing []int

	model := e.client.Model()
	for i, text := range texts {
		if e.cache == nil {
			missing = append(missing, i)
			continue
		}
		vec, ok, err := e.cache.GetEmbedding(ctx, text, model)
		if err != nil {
			zap.L().Warn("cluster: embedding cache read failed", zap.Error(err))
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	fetched, err := e.client.Embed(ctx, batch)
	if err != nil {
		return nil, eris.Wrap(err, "cluster: embed batch")
	}
	if len(fetched) != len(missing) {
		return nil, eris.Errorf("cluster: got %d vectors for %d texts", len(fetched), len(missing))
	}

	for j, i := range missing {
		vectors[i] = fetched[j]
		if e.cache != nil {
			if err := e.cache.PutEmbedding(ctx, texts[i], model, fetched[j]); err != nil {
				zap.L().Warn("cluster: embedding cache write failed", zap.Error(err))
			}
		}
	}
	return vectors, nil
}

// cosineDistance returns 1 - cosine similarity. Zero vectors are maximally
// distant from everything.
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func meanVector(vectors [][]float64, members []int) []float64 {
	if len(members) == 0 || len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[members[0]])
	mean := make([]float64, dim)
	for _, i := range members {
		for d := 0; d < dim; d++ {
			mean[d] += vectors[i][d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(members))
	}
	return mean
}
