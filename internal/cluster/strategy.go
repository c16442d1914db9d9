// Package cluster assigns every scored keyword to a semantic group. An
// ordered strategy chain degrades gracefully: density grouping over
// embeddings, then centroid partitioning, then lexical buckets that can
// never fail. A degeneracy check between attempts rejects trivial
// partitions instead of surfacing them.
package cluster

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aqxion/keyword-cli/internal/model"
)

// ErrDegenerate signals that a strategy produced a trivial partition and
// the chain should fall through to the next one.
var ErrDegenerate = eris.New("cluster: degenerate partition")

// ErrNoVectors signals that a strategy requires embeddings it did not get.
var ErrNoVectors = eris.New("cluster: embeddings unavailable")

// Assignment maps each record index to a cluster id (or model.ClusterNoise).
type Assignment struct {
	Labels   []int
	Strategy string
}

// Clusters groups record indices by cluster id, noise excluded.
func (a *Assignment) Clusters() map[int][]int {
	groups := make(map[int][]int)
	for i, lb := range a.Labels {
		if lb == model.ClusterNoise {
			continue
		}
		groups[lb] = append(groups[lb], i)
	}
	return groups
}

// NoiseCount returns how many records were left unassigned.
func (a *Assignment) NoiseCount() int {
	n := 0
	for _, lb := range a.Labels {
		if lb == model.ClusterNoise {
			n++
		}
	}
	return n
}

// Strategy is one interchangeable grouping algorithm. vectors may be nil
// when no embedding provider was available.
type Strategy interface {
	Name() string
	Assign(records []model.KeywordRecord, vectors [][]float64) (*Assignment, error)
}

// degenerate reports whether a partition is too trivial to keep: fewer than
// two clusters with at least two members, a majority of records in noise,
// or a single cluster swallowing nearly everything.
func degenerate(a *Assignment) bool {
	n := len(a.Labels)
	if n == 0 {
		return false
	}

	sizes := make(map[int]int)
	for _, lb := range a.Labels {
		if lb != model.ClusterNoise {
			sizes[lb]++
		}
	}

	nonTrivial := 0
	largest := 0
	for _, sz := range sizes {
		if sz >= 2 {
			nonTrivial++
		}
		if sz > largest {
			largest = sz
		}
	}

	if nonTrivial < 2 {
		return true
	}
	if a.NoiseCount()*2 > n {
		return true
	}
	if float64(largest) > 0.9*float64(n) {
		return true
	}
	return false
}

// Chain tries strategies in order, accepting the first non-degenerate
// assignment. The last strategy's result is accepted unconditionally, so a
// chain ending in the lexical strategy always produces a full partition.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain from the given strategies, tried in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Run executes the chain and returns the winning assignment.
func (c *Chain) Run(records []model.KeywordRecord, vectors [][]float64) (*Assignment, error) {
	if len(c.strategies) == 0 {
		return nil, eris.New("cluster: empty strategy chain")
	}

	for i, s := range c.strategies {
		last := i == len(c.strategies)-1

		a, err := s.Assign(records, vectors)
		if err != nil {
			if last {
				return nil, eris.Wrapf(err, "cluster: final strategy %s failed", s.Name())
			}
			zap.L().Info("cluster: strategy unusable, falling through",
				zap.String("strategy", s.Name()),
				zap.Error(err))
			continue
		}

		if !last && degenerate(a) {
			zap.L().Info("cluster: strategy degenerate, falling through",
				zap.String("strategy", s.Name()))
			continue
		}

		zap.L().Debug("cluster: strategy accepted",
			zap.String("strategy", s.Name()),
			zap.Int("clusters", len(a.Clusters())),
			zap.Int("noise", a.NoiseCount()))
		return a, nil
	}

	// Unreachable with a lexical terminal strategy.
	return nil, eris.New("cluster: no strategy produced a partition")
}
