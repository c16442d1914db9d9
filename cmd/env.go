package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aqxion/keyword-cli/internal/cluster"
	"github.com/aqxion/keyword-cli/internal/collect"
	"github.com/aqxion/keyword-cli/internal/pipeline"
	"github.com/aqxion/keyword-cli/internal/scorer"
	"github.com/aqxion/keyword-cli/internal/store"
	"github.com/aqxion/keyword-cli/internal/volume"
	anthropicpkg "github.com/aqxion/keyword-cli/pkg/anthropic"
	"github.com/aqxion/keyword-cli/pkg/embedjina"
	"github.com/aqxion/keyword-cli/pkg/planner"
	"github.com/aqxion/keyword-cli/pkg/suggest"
)

// pipelineEnv holds the store, quota tracker, and assembled pipeline needed
// by the discover/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Quota    *volume.QuotaTracker
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "keywords.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newQuotaTracker builds the daily quota tracker backed by the store.
func newQuotaTracker(st store.Store) *volume.QuotaTracker {
	limits := volume.QuotaLimits{
		DailyOperations: cfg.Volume.DailyOperations,
		DailyReads:      cfg.Volume.DailyReads,
		Margin:          cfg.Volume.SafetyMargin,
	}
	return volume.NewQuotaTracker(limits, volume.WithQuotaStore(st))
}

// initPipeline sets up the store, source clients, and phase collaborators,
// and assembles the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Collector: autocomplete suggestions behind an adaptive limiter.
	suggestClient := suggest.NewClient(
		suggest.WithBaseURL(cfg.Suggest.BaseURL),
		suggest.WithLanguage(cfg.Suggest.Language),
	)
	limiter := collect.NewAdaptiveLimiter(rate.Limit(2), 4)
	collector := collect.New(
		[]collect.Source{collect.NewSuggestSource("suggest", suggestClient, limiter)},
		collect.WithConcurrency(cfg.Discovery.Concurrency),
	)

	// Enricher: metrics API behind cache and quota; estimates fill the gaps.
	quota := newQuotaTracker(st)
	var plannerClient volume.PlannerClient
	if cfg.Planner.Key != "" && cfg.Planner.CustomerID != "" {
		plannerClient = volume.NewPlannerClient(planner.NewClient(
			cfg.Planner.Key,
			cfg.Planner.CustomerID,
			planner.WithBaseURL(cfg.Planner.BaseURL),
			planner.WithRateLimit(cfg.Planner.RateLimit),
		))
	} else {
		zap.L().Info("planner credentials not set, volumes will be estimated")
	}
	enricher := volume.NewProvider(plannerClient, st, quota,
		volume.WithTTL(time.Duration(cfg.Volume.CacheTTLDays)*24*time.Hour),
		volume.WithCustomerID(cfg.Planner.CustomerID),
		volume.WithConcurrency(cfg.Discovery.Concurrency),
	)

	// Clusterer: cached embeddings when a key is configured, otherwise the
	// chain degrades to lexical buckets.
	var embedder cluster.Embedder
	if cfg.Embeddings.Key != "" {
		embedder = cluster.NewCachedEmbedder(embedjina.NewClient(
			cfg.Embeddings.Key,
			embedjina.WithBaseURL(cfg.Embeddings.BaseURL),
			embedjina.WithModel(cfg.Embeddings.Model),
		), st)
	} else {
		zap.L().Info("embeddings key not set, clustering will use lexical buckets")
	}

	var opts []cluster.Option
	if cfg.Anthropic.Key != "" {
		opts = append(opts, cluster.WithLabeler(cluster.FallbackLabeler{
			Primary: cluster.NewLLMLabeler(anthropicpkg.NewClient(cfg.Anthropic.Key)),
		}))
	}
	clusterer := cluster.New(embedder, scorer.TargetGeoTerms(cfg.Discovery.Geo), cfg.Cluster.MaxClusters, opts...)

	return &pipelineEnv{
		Store:    st,
		Quota:    quota,
		Pipeline: pipeline.New(cfg, st, collector, enricher, clusterer),
	}, nil
}
