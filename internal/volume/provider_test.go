package volume

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
)

type fakePlanner struct {
	mu      sync.Mutex
	calls   int
	metrics PlannerMetrics
	err     error
	block   chan struct{}
}

func (f *fakePlanner) KeywordMetrics(_ context.Context, _, _, _ string) (PlannerMetrics, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return PlannerMetrics{}, f.err
	}
	return f.metrics, nil
}

func (f *fakePlanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]CacheEntry{}}
}

func (c *memCache) GetVolume(_ context.Context, key string) (CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *memCache) PutVolume(_ context.Context, key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func noRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 1
	return cfg
}

func TestLookupCachesPlannerResult(t *testing.T) {
	planner := &fakePlanner{metrics: PlannerMetrics{Volume: 1200, Competition: 0.6}}
	cache := newMemCache()
	quota := NewQuotaTracker(DefaultQuotaLimits())
	p := NewProvider(planner, cache, quota,
		WithCustomerID("123-456-7890"),
		WithRetry(noRetry()),
	)

	ctx := context.Background()
	first, err := p.Lookup(ctx, "agencia seo lima", "pe", "es")
	require.NoError(t, err)
	assert.Equal(t, 1200, first.Volume)
	assert.False(t, first.Estimated)
	assert.False(t, first.FromCache)

	second, err := p.Lookup(ctx, "agencia seo lima", "pe", "es")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1200, second.Volume)
	assert.Equal(t, 1, planner.callCount(), "second lookup must be served from cache")
}

func TestLookupRefetchesAfterTTL(t *testing.T) {
	planner := &fakePlanner{metrics: PlannerMetrics{Volume: 900, Competition: 0.5}}
	cache := newMemCache()
	quota := NewQuotaTracker(DefaultQuotaLimits())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewProvider(planner, cache, quota,
		WithCustomerID("1234567890"),
		WithRetry(noRetry()),
		WithTTL(24*time.Hour),
		WithNow(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, err := p.Lookup(ctx, "curso python", "pe", "es")
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	m, err := p.Lookup(ctx, "curso python", "pe", "es")
	require.NoError(t, err)
	assert.False(t, m.FromCache, "expired entry must not be served")
	assert.Equal(t, 2, planner.callCount())
}

func TestLookupSingleFlightCollapsesConcurrentCalls(t *testing.T) {
	planner := &fakePlanner{
		metrics: PlannerMetrics{Volume: 500, Competition: 0.4},
		block:   make(chan struct{}),
	}
	p := NewProvider(planner, newMemCache(), NewQuotaTracker(DefaultQuotaLimits()),
		WithCustomerID("1234567890"),
		WithRetry(noRetry()),
	)

	ctx := context.Background()
	var wg sync.WaitGroup
	var served atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := p.Lookup(ctx, "seo tools", "pe", "es")
			if err == nil && m.Volume == 500 {
				served.Add(1)
			}
		}()
	}

	// Give the goroutines a moment to pile onto the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(planner.block)
	wg.Wait()

	assert.Equal(t, int32(5), served.Load())
	assert.Equal(t, 1, planner.callCount(), "concurrent lookups for one key share a single fetch")
}

func TestLookupInvalidCustomerIDFallsBackToEstimates(t *testing.T) {
	planner := &fakePlanner{metrics: PlannerMetrics{Volume: 999}}
	quota := NewQuotaTracker(DefaultQuotaLimits())
	p := NewProvider(planner, newMemCache(), quota,
		WithCustomerID("not-a-customer"),
		WithRetry(noRetry()),
	)

	m, err := p.Lookup(context.Background(), "marketing digital", "pe", "es")
	require.NoError(t, err)
	assert.True(t, m.Estimated)
	assert.Equal(t, EstimateVolume("marketing digital"), m.Volume)
	assert.Zero(t, planner.callCount(), "misconfigured account must not reach the planner")
	assert.Zero(t, quota.Status().Reads)
}

func TestLookupRecordsQuotaOnFailedAttempts(t *testing.T) {
	planner := &fakePlanner{err: resilience.NewTransientError(errors.New("503"), 503)}
	quota := NewQuotaTracker(DefaultQuotaLimits())
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = time.Millisecond
	p := NewProvider(planner, newMemCache(), quota,
		WithCustomerID("1234567890"),
		WithRetry(cfg),
	)

	_, err := p.Lookup(context.Background(), "seo", "pe", "es")
	require.Error(t, err)
	assert.Equal(t, 3, planner.callCount())
	assert.Equal(t, 3, quota.Status().Reads, "every attempt consumes quota, failures included")
}

func TestEnrichFallsBackWhenQuotaExhausted(t *testing.T) {
	planner := &fakePlanner{metrics: PlannerMetrics{Volume: 2000, Competition: 0.6}}
	quota := NewQuotaTracker(QuotaLimits{DailyOperations: 100, DailyReads: 2, Margin: 1.0})
	p := NewProvider(planner, newMemCache(), quota,
		WithCustomerID("1234567890"),
		WithRetry(noRetry()),
		WithConcurrency(1),
	)

	records := []model.KeywordRecord{
		{Text: "agencia seo", Geo: "pe", Language: "es"},
		{Text: "curso marketing", Geo: "pe", Language: "es"},
		{Text: "herramientas seo", Geo: "pe", Language: "es"},
		{Text: "consultor seo lima", Geo: "pe", Language: "es"},
	}

	stats, err := p.Enrich(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Estimated)
	assert.True(t, stats.QuotaExceeded)
	assert.Equal(t, 2, planner.callCount(), "exhausted quota must stop planner traffic")

	for i, rec := range records {
		assert.Positivef(t, rec.Volume, "record %d has a volume", i)
		assert.InDelta(t, 0.5, rec.TrendScore, 1e-9)
	}
	assert.False(t, records[0].VolumeEstimated)
	assert.False(t, records[1].VolumeEstimated)
	assert.True(t, records[2].VolumeEstimated)
	assert.True(t, records[3].VolumeEstimated)
}

func TestEnrichRecordsFailedLookupsInDLQ(t *testing.T) {
	planner := &fakePlanner{err: errors.New("invalid request")}
	p := NewProvider(planner, newMemCache(), NewQuotaTracker(DefaultQuotaLimits()),
		WithCustomerID("1234567890"),
		WithRetry(noRetry()),
	)

	records := []model.KeywordRecord{{Text: "seo", Geo: "pe", Language: "es"}}
	stats, err := p.Enrich(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, stats.DLQ, 1)
	assert.Equal(t, "seo", stats.DLQ[0].Keyword)
	assert.Equal(t, "permanent", stats.DLQ[0].ErrorType)
	assert.Equal(t, "volume", stats.DLQ[0].FailedPhase)
	assert.True(t, records[0].VolumeEstimated)
	assert.Equal(t, 1, stats.Estimated)
}

func TestEstimateVolumeBands(t *testing.T) {
	tests := []struct {
		keyword string
		want    int
	}{
		{"seo", 20000},
		{"curso marketing", 6800},      // two words, course modifier
		{"agencia seo lima", 2800},     // three words, local modifier
		{"como aprender seo online gratis", 1320}, // long tail, free modifier
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateVolume(tt.keyword))
		})
	}
}

func TestEstimateCompetitionBounds(t *testing.T) {
	assert.InDelta(t, 0.95, EstimateCompetition("comprar"), 1e-9)
	assert.InDelta(t, 0.5, EstimateCompetition(""), 1e-9)

	longTail := EstimateCompetition("como hacer seo para tiendas online lima")
	assert.GreaterOrEqual(t, longTail, 0.1)
	assert.Less(t, longTail, 0.5)
}

func TestLookupBreakerOpensAfterRepeatedFailures(t *testing.T) {
	planner := &fakePlanner{err: resilience.NewTransientError(errors.New("503"), 503)}
	cache := newMemCache()
	quota := NewQuotaTracker(DefaultQuotaLimits())
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	p := NewProvider(planner, cache, quota,
		WithCustomerID("123-456-7890"),
		WithRetry(noRetry()),
		WithBreaker(cb),
	)

	ctx := context.Background()
	_, err := p.Lookup(ctx, "kw one", "pe", "es")
	require.Error(t, err)
	_, err = p.Lookup(ctx, "kw two", "pe", "es")
	require.Error(t, err)

	// The circuit is now open; further lookups never reach the planner.
	_, err = p.Lookup(ctx, "kw three", "pe", "es")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, planner.callCount())
	assert.Equal(t, resilience.CircuitOpen, cb.State())
}

func TestEnrichInterruptedStillMarksEstimates(t *testing.T) {
	planner := &fakePlanner{err: resilience.NewTransientError(errors.New("503"), 503)}
	p := NewProvider(planner, newMemCache(), NewQuotaTracker(DefaultQuotaLimits()),
		WithCustomerID("1234567890"),
		WithRetry(noRetry()),
		WithConcurrency(1),
	)

	records := []model.KeywordRecord{
		{Text: "agencia seo", Geo: "pe", Language: "es"},
		{Text: "curso marketing", Geo: "pe", Language: "es"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Enrich(ctx, records)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Skipped lookups must not pass off zero volumes as real data.
	assert.Equal(t, len(records), stats.Estimated)
	for i, rec := range records {
		assert.Truef(t, rec.VolumeEstimated, "record %d is flagged estimated", i)
		assert.Positivef(t, rec.Volume, "record %d has a volume", i)
	}
}
