// Package collect fans keyword collection out over (seed, source) pairs
// with bounded concurrency and adaptive rate limiting. A run-level deadline
// cuts collection short; whatever was gathered proceeds downstream as a
// partial candidate set.
package collect

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aqxion/keyword-cli/internal/model"
)

// DefaultConcurrency bounds simultaneous in-flight source fetches.
const DefaultConcurrency = 4

// Collector gathers candidates from every configured source.
type Collector struct {
	sources     []Source
	concurrency int
}

// Option configures a Collector.
type Option func(*Collector)

// WithConcurrency bounds parallel fetches.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New returns a Collector over the given sources.
func New(sources []Source, opts ...Option) *Collector {
	c := &Collector{sources: sources, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches candidates for every (seed, source) pair concurrently.
// Source failures are logged and skipped; a context deadline stops
// collection early and returns the partial set. Results preserve
// (seed, source) launch order so downstream dedupe sees a stable
// first-seen order.
func (c *Collector) Collect(ctx context.Context, seeds []string) []model.Candidate {
	type slot struct {
		candidates []model.Candidate
	}
	slots := make([]slot, len(seeds)*len(c.sources))

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for si, seed := range seeds {
		for pi, src := range c.sources {
			idx := si*len(c.sources) + pi
			g.Go(func() error {
				candidates, err := src.Fetch(gctx, seed)
				if err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					zap.L().Warn("collect: source fetch failed",
						zap.String("source", src.Name()),
						zap.String("seed", seed),
						zap.Error(err))
				}
				slots[idx].candidates = candidates
				// Never abort the group: partial collection is fine.
				return nil
			})
		}
	}
	_ = g.Wait()

	var out []model.Candidate
	for _, s := range slots {
		out = append(out, s.candidates...)
	}

	zap.L().Info("collect: collection finished",
		zap.Int("seeds", len(seeds)),
		zap.Int("sources", len(c.sources)),
		zap.Int("candidates", len(out)),
		zap.Int("failed_fetches", failed),
		zap.Bool("deadline_hit", ctx.Err() != nil))
	return out
}
