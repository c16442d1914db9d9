// Package volume resolves monthly search volume and competition for
// keywords. Lookups go through a persistent TTL cache and a daily quota
// tracker; concurrent requests for the same key are collapsed into one
// upstream call. When the planner API is unreachable, misconfigured, or out
// of quota, heuristic estimates stand in and the record is flagged as
// estimated.
package volume

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
)

// ErrQuotaExceeded is returned when the daily quota budget is spent.
var ErrQuotaExceeded = eris.New("volume: daily quota exceeded")

// neutralTrend is used when no trend source contributed a signal.
const neutralTrend = 0.5

// PlannerMetrics is what the external keyword planner reports for one
// keyword.
type PlannerMetrics struct {
	Volume      int
	Competition float64
}

// PlannerClient fetches keyword metrics from the external planner API.
type PlannerClient interface {
	KeywordMetrics(ctx context.Context, keyword, geo, language string) (PlannerMetrics, error)
}

// CacheEntry is a cached planner result.
type CacheEntry struct {
	Volume      int       `json:"volume"`
	Competition float64   `json:"competition"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Cache persists planner results keyed by keyword|geo|language.
type Cache interface {
	GetVolume(ctx context.Context, key string) (CacheEntry, bool, error)
	PutVolume(ctx context.Context, key string, entry CacheEntry) error
}

// Metrics is the resolved signal set for one keyword.
type Metrics struct {
	Volume      int
	Competition float64
	Trend       float64
	Estimated   bool
	FromCache   bool
}

// Stats summarizes an Enrich pass over a batch of records.
type Stats struct {
	Total         int
	CacheHits     int
	Fetched       int
	Estimated     int
	QuotaExceeded bool
	DLQ           []resilience.DLQEntry
}

// Provider resolves keyword metrics with caching, quota enforcement, and
// heuristic fallback.
type Provider struct {
	client      PlannerClient
	cache       Cache
	quota       *QuotaTracker
	ttl         time.Duration
	retry       resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	concurrency int
	customerID  string
	now         func() time.Time

	sf singleflight.Group
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithTTL sets how long cached planner results stay fresh. Zero disables
// expiry.
func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.ttl = ttl }
}

// WithRetry overrides the retry policy for planner calls.
func WithRetry(cfg resilience.RetryConfig) ProviderOption {
	return func(p *Provider) { p.retry = cfg }
}

// WithBreaker overrides the circuit breaker guarding planner calls.
func WithBreaker(cb *resilience.CircuitBreaker) ProviderOption {
	return func(p *Provider) { p.breaker = cb }
}

// WithConcurrency bounds parallel lookups during Enrich.
func WithConcurrency(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithCustomerID sets the planner account ID. An ID that is not all digits
// (dashes allowed) short-circuits every lookup to heuristics.
func WithCustomerID(id string) ProviderOption {
	return func(p *Provider) { p.customerID = id }
}

// WithNow overrides the provider's time source.
func WithNow(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// NewProvider returns a Provider. client may be nil, in which case every
// lookup falls back to heuristics.
func NewProvider(client PlannerClient, cache Cache, quota *QuotaTracker, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:      client,
		cache:       cache,
		quota:       quota,
		retry:       resilience.DefaultRetryConfig(),
		breaker:     resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CacheKey builds the canonical cache key for a keyword in a market.
func CacheKey(keyword, geo, language string) string {
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(keyword), strings.ToLower(geo), strings.ToLower(language))
}

// validCustomerID reports whether the configured account ID looks usable:
// at least eight digits once dashes are stripped.
func (p *Provider) validCustomerID() bool {
	id := strings.ReplaceAll(p.customerID, "-", "")
	if len(id) < 8 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Lookup resolves metrics for one keyword. Concurrent calls for the same
// key share a single cache check and upstream fetch.
func (p *Provider) Lookup(ctx context.Context, keyword, geo, language string) (Metrics, error) {
	key := CacheKey(keyword, geo, language)
	v, err, _ := p.sf.Do(key, func() (interface{}, error) {
		return p.resolve(ctx, key, keyword, geo, language)
	})
	if err != nil {
		return Metrics{}, err
	}
	return v.(Metrics), nil
}

func (p *Provider) resolve(ctx context.Context, key, keyword, geo, language string) (Metrics, error) {
	if p.cache != nil {
		entry, ok, err := p.cache.GetVolume(ctx, key)
		if err != nil {
			zap.L().Warn("volume: cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok && p.fresh(entry) {
			return Metrics{
				Volume:      entry.Volume,
				Competition: entry.Competition,
				Trend:       neutralTrend,
				FromCache:   true,
			}, nil
		}
	}

	if p.client == nil || !p.validCustomerID() {
		return p.estimate(keyword), nil
	}

	if p.quota != nil && !p.quota.AllowReads(1) {
		return Metrics{}, eris.Wrap(ErrQuotaExceeded, "volume: lookup rejected")
	}

	pm, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (PlannerMetrics, error) {
		return resilience.DoVal(ctx, p.retry, func(ctx context.Context) (PlannerMetrics, error) {
			// Record before the call: the remote side counts failed requests
			// against the quota too.
			if p.quota != nil {
				p.quota.RecordRead()
			}
			return p.client.KeywordMetrics(ctx, keyword, geo, language)
		})
	})
	if err != nil {
		return Metrics{}, eris.Wrapf(err, "volume: planner lookup for %q", keyword)
	}

	if p.cache != nil && pm.Volume > 0 {
		entry := CacheEntry{Volume: pm.Volume, Competition: pm.Competition, FetchedAt: p.now()}
		if err := p.cache.PutVolume(ctx, key, entry); err != nil {
			zap.L().Warn("volume: cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return Metrics{
		Volume:      pm.Volume,
		Competition: pm.Competition,
		Trend:       neutralTrend,
	}, nil
}

func (p *Provider) fresh(entry CacheEntry) bool {
	if p.ttl <= 0 {
		return true
	}
	return p.now().Sub(entry.FetchedAt) <= p.ttl
}

func (p *Provider) estimate(keyword string) Metrics {
	return Metrics{
		Volume:      EstimateVolume(keyword),
		Competition: EstimateCompetition(keyword),
		Trend:       neutralTrend,
		Estimated:   true,
	}
}

// Enrich resolves metrics for every record in place. Lookup failures fall
// back to heuristic estimates and are reported in the returned stats; once
// the quota is exhausted all remaining lookups use estimates without
// touching the planner again.
func (p *Provider) Enrich(ctx context.Context, records []model.KeywordRecord) (Stats, error) {
	stats := Stats{Total: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	type outcome struct {
		m    Metrics
		err  error
		dlq  *resilience.DLQEntry
		done bool
	}
	outcomes := make([]outcome, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range records {
		g.Go(func() error {
			rec := &records[i]
			m, err := p.Lookup(ctx, rec.Text, rec.Geo, rec.Language)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				now := p.now()
				outcomes[i] = outcome{
					m:    p.estimate(rec.Text),
					err:  err,
					done: true,
					dlq: &resilience.DLQEntry{
						Keyword:      rec.Text,
						Geo:          rec.Geo,
						Language:     rec.Language,
						Error:        err.Error(),
						ErrorType:    resilience.ClassifyError(err),
						FailedPhase:  "volume",
						CreatedAt:    now,
						LastFailedAt: now,
					},
				}
				return nil
			}
			outcomes[i] = outcome{m: m, done: true}
			return nil
		})
	}
	waitErr := g.Wait()

	// Slots the interrupted workers never reached still need honest metrics,
	// so they take estimates instead of zero volumes.
	for i, o := range outcomes {
		if !o.done {
			outcomes[i] = outcome{m: p.estimate(records[i].Text), done: true}
		}
		o = outcomes[i]
		rec := &records[i]
		rec.Volume = o.m.Volume
		rec.Competition = o.m.Competition
		rec.TrendScore = o.m.Trend
		rec.VolumeEstimated = o.m.Estimated

		if o.m.Estimated {
			stats.Estimated++
		} else if o.m.FromCache {
			stats.CacheHits++
		} else {
			stats.Fetched++
		}
		if o.dlq != nil {
			stats.DLQ = append(stats.DLQ, *o.dlq)
		}
		if eris.Is(o.err, ErrQuotaExceeded) {
			stats.QuotaExceeded = true
		}
	}

	if waitErr != nil {
		return stats, eris.Wrap(waitErr, "volume: enrich interrupted")
	}
	return stats, nil
}
