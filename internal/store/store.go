package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
	"github.com/aqxion/keyword-cli/internal/volume"
)

// ErrNotFound marks lookups for rows that do not exist.
var ErrNotFound = eris.New("not found")

// IsNotFound reports whether err stems from a missing row.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Geo    string          `json:"geo,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the discovery pipeline. It
// also satisfies volume.Cache, volume.QuotaStore, and cluster.EmbedCache so
// one backend serves every caching concern.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	MarkRunDegraded(ctx context.Context, runID string, reasons []string) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Keywords and clusters
	SaveKeywords(ctx context.Context, runID string, records []model.KeywordRecord) error
	ListKeywords(ctx context.Context, runID string) ([]model.KeywordRecord, error)
	SaveClusters(ctx context.Context, runID string, clusters []model.Cluster) error
	ListClusters(ctx context.Context, runID string) ([]model.Cluster, error)

	// Volume cache
	GetVolume(ctx context.Context, key string) (volume.CacheEntry, bool, error)
	PutVolume(ctx context.Context, key string, entry volume.CacheEntry) error
	DeleteExpiredVolumes(ctx context.Context, ttl time.Duration) (int, error)

	// Embedding cache
	GetEmbedding(ctx context.Context, text, model string) ([]float64, bool, error)
	PutEmbedding(ctx context.Context, text, model string, vec []float64) error

	// Quota usage
	LoadQuotaUsage(date string) (volume.QuotaUsage, bool, error)
	SaveQuotaUsage(usage volume.QuotaUsage) error

	// Dead letter queue
	SaveDeadLetter(ctx context.Context, entry *resilience.DLQEntry) error
	ListDeadLetters(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	DeleteDeadLetter(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
