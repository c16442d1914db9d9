package volume

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// QuotaLimits describes the external planner API's daily limits. A safety
// margin keeps usage below the hard ceiling so unrelated consumers of the
// same account are never starved.
type QuotaLimits struct {
	DailyOperations int     `json:"daily_operations"`
	DailyReads      int     `json:"daily_reads"`
	Margin          float64 `json:"margin"`
}

// DefaultQuotaLimits returns the planner API defaults: 15,000 operations
// and 1,000 read requests per day, consumed up to 80%.
func DefaultQuotaLimits() QuotaLimits {
	return QuotaLimits{
		DailyOperations: 15000,
		DailyReads:      1000,
		Margin:          0.8,
	}
}

// SafeOperations returns the margin-adjusted operations ceiling.
func (l QuotaLimits) SafeOperations() int {
	return int(float64(l.DailyOperations) * l.Margin)
}

// SafeReads returns the margin-adjusted read-request ceiling.
func (l QuotaLimits) SafeReads() int {
	return int(float64(l.DailyReads) * l.Margin)
}

// QuotaUsage is one calendar day's recorded consumption.
type QuotaUsage struct {
	Date       string `json:"date"`
	Operations int    `json:"operations"`
	Reads      int    `json:"reads"`
}

// QuotaStatus is a point-in-time view of quota consumption for reporting.
type QuotaStatus struct {
	Date                string  `json:"date"`
	Operations          int     `json:"operations"`
	OperationsLimit     int     `json:"operations_limit"`
	OperationsRemaining int     `json:"operations_remaining"`
	OperationsPercent   float64 `json:"operations_percent"`
	Reads               int     `json:"reads"`
	ReadsLimit          int     `json:"reads_limit"`
	ReadsRemaining      int     `json:"reads_remaining"`
	ReadsPercent        float64 `json:"reads_percent"`
}

// QuotaStore persists daily usage so consumption survives process restarts.
type QuotaStore interface {
	LoadQuotaUsage(date string) (QuotaUsage, bool, error)
	SaveQuotaUsage(usage QuotaUsage) error
}

// QuotaTracker enforces daily quota against a calendar day that resets at
// midnight. Every external attempt is recorded, including failed ones; the
// remote side counts them either way.
type QuotaTracker struct {
	mu     sync.Mutex
	limits QuotaLimits
	store  QuotaStore
	now    func() time.Time
	usage  QuotaUsage
}

// QuotaOption configures a QuotaTracker.
type QuotaOption func(*QuotaTracker)

// WithQuotaStore persists usage through the given store.
func WithQuotaStore(s QuotaStore) QuotaOption {
	return func(t *QuotaTracker) { t.store = s }
}

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) QuotaOption {
	return func(t *QuotaTracker) { t.now = now }
}

// NewQuotaTracker returns a tracker for the given limits.
func NewQuotaTracker(limits QuotaLimits, opts ...QuotaOption) *QuotaTracker {
	t := &QuotaTracker{
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// today rolls the usage record over when the calendar day changes, loading
// any persisted usage for the new day. Callers must hold mu.
func (t *QuotaTracker) today() *QuotaUsage {
	date := t.now().Format("2006-01-02")
	if t.usage.Date == date {
		return &t.usage
	}

	t.usage = QuotaUsage{Date: date}
	if t.store != nil {
		if saved, ok, err := t.store.LoadQuotaUsage(date); err != nil {
			zap.L().Warn("quota: failed to load persisted usage", zap.Error(err))
		} else if ok {
			t.usage = saved
		}
	}
	return &t.usage
}

// AllowReads reports whether n more read requests fit under the safe limit.
func (t *QuotaTracker) AllowReads(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.today().Reads+n <= t.limits.SafeReads()
}

// AllowOperations reports whether n more operations fit under the safe limit.
func (t *QuotaTracker) AllowOperations(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.today().Operations+n <= t.limits.SafeOperations()
}

// RecordRead counts one read request and one operation against today.
func (t *QuotaTracker) RecordRead() {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.today()
	u.Reads++
	u.Operations++
	t.persist(*u)
}

// RecordOperations counts n operations against today.
func (t *QuotaTracker) RecordOperations(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.today()
	u.Operations += n
	t.persist(*u)
}

func (t *QuotaTracker) persist(u QuotaUsage) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveQuotaUsage(u); err != nil {
		zap.L().Warn("quota: failed to persist usage", zap.Error(err))
	}
}

// Status returns today's consumption against the safe limits.
func (t *QuotaTracker) Status() QuotaStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.today()

	opsLimit := t.limits.SafeOperations()
	readsLimit := t.limits.SafeReads()
	st := QuotaStatus{
		Date:                u.Date,
		Operations:          u.Operations,
		OperationsLimit:     opsLimit,
		OperationsRemaining: opsLimit - u.Operations,
		Reads:               u.Reads,
		ReadsLimit:          readsLimit,
		ReadsRemaining:      readsLimit - u.Reads,
	}
	if opsLimit > 0 {
		st.OperationsPercent = float64(u.Operations) / float64(opsLimit) * 100
	}
	if readsLimit > 0 {
		st.ReadsPercent = float64(u.Reads) / float64(readsLimit) * 100
	}
	return st
}
