package collect

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/pkg/suggest"
)

// Source produces raw candidates for one seed keyword.
type Source interface {
	Name() string
	Fetch(ctx context.Context, seed string) ([]model.Candidate, error)
}

// seedVariations widens a seed into the query variants fed to autocomplete.
func seedVariations(seed string) []string {
	return []string{
		seed,
		fmt.Sprintf("curso %s", seed),
		fmt.Sprintf("%s curso", seed),
		fmt.Sprintf("%s online", seed),
		fmt.Sprintf("%s gratis", seed),
		fmt.Sprintf("herramientas %s", seed),
		fmt.Sprintf("%s para pymes", seed),
		fmt.Sprintf("como hacer %s", seed),
		fmt.Sprintf("que es %s", seed),
	}
}

// SuggestSource collects candidates from an autocomplete endpoint, querying
// every seed variation.
type SuggestSource struct {
	name       string
	client     suggest.Client
	limiter    *AdaptiveLimiter
	variations func(seed string) []string
}

// NewSuggestSource returns a source named name over the given client. The
// limiter may be nil.
func NewSuggestSource(name string, client suggest.Client, limiter *AdaptiveLimiter) *SuggestSource {
	return &SuggestSource{
		name:       name,
		client:     client,
		limiter:    limiter,
		variations: seedVariations,
	}
}

func (s *SuggestSource) Name() string { return s.name }

// Fetch queries autocomplete for each seed variation. A variation that
// fails after a successful one does not discard what was already gathered.
func (s *SuggestSource) Fetch(ctx context.Context, seed string) ([]model.Candidate, error) {
	var candidates []model.Candidate
	var lastErr error

	for _, q := range s.variations(seed) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return candidates, eris.Wrap(err, "collect: limiter wait")
			}
		}

		suggestions, err := s.client.Suggest(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			if s.limiter != nil {
				s.limiter.OnRateLimit()
			}
			lastErr = err
			continue
		}
		if s.limiter != nil {
			s.limiter.OnSuccess()
		}

		for _, kw := range filterKeywords(suggestions) {
			candidates = append(candidates, model.Candidate{
				Text:   kw,
				Seed:   seed,
				Source: s.name,
			})
		}
	}

	if len(candidates) == 0 && lastErr != nil {
		return nil, eris.Wrapf(lastErr, "collect: %s yielded nothing for %q", s.name, seed)
	}
	return candidates, nil
}

// StaticSource serves a fixed candidate list; used for seed passthrough and
// in tests.
type StaticSource struct {
	SourceName string
	Candidates map[string][]string
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) Fetch(_ context.Context, seed string) ([]model.Candidate, error) {
	var out []model.Candidate
	for _, kw := range filterKeywords(s.Candidates[seed]) {
		out = append(out, model.Candidate{Text: kw, Seed: seed, Source: s.SourceName})
	}
	return out, nil
}
