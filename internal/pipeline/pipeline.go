// Package pipeline orchestrates a discovery run through its phases:
// collecting, deduping, scoring, clustering. A run always reaches a terminal
// state; external failures degrade the result instead of aborting it, and
// only invalid configuration fails a run outright.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aqxion/keyword-cli/internal/cluster"
	"github.com/aqxion/keyword-cli/internal/config"
	"github.com/aqxion/keyword-cli/internal/dedupe"
	"github.com/aqxion/keyword-cli/internal/formula"
	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/scorer"
	"github.com/aqxion/keyword-cli/internal/store"
	"github.com/aqxion/keyword-cli/internal/volume"
)

// Collector gathers raw keyword candidates for a set of seeds.
type Collector interface {
	Collect(ctx context.Context, seeds []string) []model.Candidate
}

// Enricher resolves volume/competition/trend signals for a record batch.
type Enricher interface {
	Enrich(ctx context.Context, records []model.KeywordRecord) (volume.Stats, error)
}

// Clusterer partitions scored records into labeled topical groups.
type Clusterer interface {
	Cluster(ctx context.Context, records []model.KeywordRecord) (*cluster.Result, error)
}

// Pipeline runs the discovery state machine against a store.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	collector Collector
	enricher  Enricher
	clusterer Clusterer
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, collector Collector, enricher Enricher, clusterer Clusterer) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		collector: collector,
		enricher:  enricher,
		clusterer: clusterer,
	}
}

// validateRunConfig fails fast on a run the pipeline cannot execute. Every
// error wraps config.ErrInvalid: these are the only failures that take a run
// to the failed state.
func validateRunConfig(runCfg model.RunConfig) (formula.Version, error) {
	if len(runCfg.Seeds) == 0 {
		return formula.Version{}, eris.Wrap(config.ErrInvalid, "run has no seeds")
	}
	if runCfg.Geo == "" || runCfg.Language == "" {
		return formula.Version{}, eris.Wrap(config.ErrInvalid, "run geo and language are required")
	}

	reg, err := formula.Load()
	if err != nil {
		return formula.Version{}, eris.Wrapf(config.ErrInvalid, "formula registry: %v", err)
	}
	if runCfg.FormulaVersion == "" {
		return reg.Default(), nil
	}
	ver, err := reg.Get(runCfg.FormulaVersion)
	if err != nil {
		return formula.Version{}, eris.Wrapf(config.ErrInvalid, "formula version %q not in registry", runCfg.FormulaVersion)
	}
	return ver, nil
}

// Run executes a full discovery run and returns the terminal run record.
func (p *Pipeline) Run(ctx context.Context, runCfg model.RunConfig) (*model.Run, error) {
	log := zap.L().With(zap.String("geo", runCfg.Geo), zap.Strings("seeds", runCfg.Seeds))
	log.Info("pipeline: starting discovery run")

	run, err := p.store.CreateRun(ctx, runCfg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result := &model.RunResult{}

	// Degradation reasons are recorded once each; any reason makes the
	// terminal state degraded instead of done.
	var reasons []string
	degrade := func(reason string) {
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
		log.Warn("pipeline: run degraded", zap.String("reason", reason))
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{Name: name}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		result.Phases = append(result.Phases, *phaseResult)
		return phaseResult
	}

	finish := func(status model.RunStatus) (*model.Run, error) {
		if len(reasons) > 0 && status == model.RunStatusDone {
			status = model.RunStatusDegraded
			if err := p.store.MarkRunDegraded(ctx, run.ID, reasons); err != nil {
				log.Warn("pipeline: failed to mark degraded", zap.Error(err))
			}
		}
		if err := p.store.UpdateRunResult(ctx, run.ID, status, result); err != nil {
			log.Warn("pipeline: failed to store result", zap.Error(err))
		}
		run.Status = status
		run.Degraded = len(reasons) > 0
		run.Reasons = reasons
		run.Result = result
		log.Info("pipeline: run finished",
			zap.String("status", string(status)),
			zap.Int("keywords", result.Keywords),
			zap.Int("clusters", result.Clusters),
		)
		return run, nil
	}

	ver, err := validateRunConfig(runCfg)
	if err != nil {
		result.Error = err.Error()
		if _, finishErr := finish(model.RunStatusFailed); finishErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(finishErr))
		}
		return run, err
	}

	// ===== Collecting =====
	setStatus(model.RunStatusCollecting)

	var candidates []model.Candidate
	trackPhase("collecting", func() (*model.PhaseResult, error) {
		candidates = p.collector.Collect(ctx, runCfg.Seeds)
		return &model.PhaseResult{
			Metadata: map[string]any{"candidates": len(candidates)},
		}, nil
	})
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		degrade("no candidates collected")
	}

	// ===== Deduping =====
	setStatus(model.RunStatusDeduping)

	var records []model.KeywordRecord
	trackPhase("deduping", func() (*model.PhaseResult, error) {
		var dups int
		records, dups = dedupe.New(runCfg.Geo, runCfg.Language).Dedupe(candidates)
		result.Duplicates = dups
		return &model.PhaseResult{
			Metadata: map[string]any{"unique": len(records), "duplicates": dups},
		}, nil
	})

	// ===== Scoring =====
	setStatus(model.RunStatusScoring)

	trackPhase("scoring", func() (*model.PhaseResult, error) {
		stats, enrichErr := p.enricher.Enrich(ctx, records)
		result.Estimated = stats.Estimated
		if stats.QuotaExceeded {
			degrade("volume quota exhausted")
		}
		if stats.Estimated > 0 {
			degrade("estimated volumes in use")
		}
		for i := range stats.DLQ {
			stats.DLQ[i].FailedPhase = "scoring"
			if dlqErr := p.store.SaveDeadLetter(ctx, &stats.DLQ[i]); dlqErr != nil {
				log.Warn("pipeline: failed to save dead letter", zap.Error(dlqErr))
			}
		}
		if enrichErr != nil {
			degrade("volume enrichment failed")
		}

		scorer.New(scorer.Config{Geo: runCfg.Geo, Version: ver}).ScoreBatch(records)
		model.SortByScore(records)
		if runCfg.TargetKeywords > 0 && len(records) > runCfg.TargetKeywords {
			records = records[:runCfg.TargetKeywords]
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"scored":     len(records),
				"estimated":  stats.Estimated,
				"cache_hits": stats.CacheHits,
			},
		}, enrichErr
	})
	result.Keywords = len(records)

	// ===== Clustering =====
	setStatus(model.RunStatusClustering)

	trackPhase("clustering", func() (*model.PhaseResult, error) {
		res, clusterErr := p.clusterer.Cluster(ctx, records)
		if clusterErr != nil {
			degrade("clustering unavailable")
			return nil, clusterErr
		}
		if res.Degraded {
			degrade("semantic clustering unavailable")
		}
		result.Clusters = len(res.Clusters)
		result.Noise = res.Noise
		result.ClusteredBy = res.Strategy

		if err := p.store.SaveClusters(ctx, run.ID, res.Clusters); err != nil {
			return nil, eris.Wrap(err, "save clusters")
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"clusters": len(res.Clusters),
				"noise":    res.Noise,
				"strategy": res.Strategy,
			},
		}, nil
	})

	if err := p.store.SaveKeywords(ctx, run.ID, records); err != nil {
		log.Error("pipeline: failed to save keywords", zap.Error(err))
		degrade("keyword persistence failed")
	}

	return finish(model.RunStatusDone)
}
