package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqxion/keyword-cli/internal/cluster"
	"github.com/aqxion/keyword-cli/internal/config"
	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
	"github.com/aqxion/keyword-cli/internal/store"
	"github.com/aqxion/keyword-cli/internal/volume"
)

type fakeCollector struct {
	candidates []model.Candidate
}

func (f *fakeCollector) Collect(_ context.Context, _ []string) []model.Candidate {
	return f.candidates
}

type fakeEnricher struct {
	stats volume.Stats
	err   error
}

func (f *fakeEnricher) Enrich(_ context.Context, records []model.KeywordRecord) (volume.Stats, error) {
	for i := range records {
		if records[i].Volume == 0 {
			records[i].Volume = 100 * (i + 1)
			records[i].Competition = 0.4
			records[i].TrendScore = 0.5
		}
	}
	f.stats.Total = len(records)
	return f.stats, f.err
}

type fakeClusterer struct {
	result *cluster.Result
	err    error
}

func (f *fakeClusterer) Cluster(_ context.Context, records []model.KeywordRecord) (*cluster.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	for i := range records {
		id := 0
		records[i].ClusterID = &id
		records[i].ClusterLabel = "general"
	}
	return &cluster.Result{
		Clusters: []model.Cluster{model.Summarize(0, "general", records)},
		Strategy: "density",
	}, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCandidates() []model.Candidate {
	return []model.Candidate{
		{Text: "curso de seo lima", Seed: "seo", Source: "suggest"},
		{Text: "agencia seo precios", Seed: "seo", Source: "suggest"},
		{Text: "que es el seo", Seed: "seo", Source: "suggest"},
		{Text: "curso de seo lima", Seed: "curso seo", Source: "suggest"},
	}
}

func testPipeline(t *testing.T, st store.Store, coll Collector, enr Enricher, cl Clusterer) *Pipeline {
	t.Helper()
	cfg := &config.Config{}
	return New(cfg, st, coll, enr, cl)
}

func TestRun_Success(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{},
		&fakeClusterer{},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, run.Status)
	assert.False(t, run.Degraded)

	require.NotNil(t, run.Result)
	assert.Equal(t, 4, run.Result.Candidates)
	assert.Equal(t, 1, run.Result.Duplicates)
	assert.Equal(t, 3, run.Result.Keywords)
	assert.Equal(t, 1, run.Result.Clusters)
	assert.Equal(t, "density", run.Result.ClusteredBy)

	names := make([]string, 0, len(run.Result.Phases))
	for _, ph := range run.Result.Phases {
		names = append(names, ph.Name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status)
	}
	assert.Equal(t, []string{"collecting", "deduping", "scoring", "clustering"}, names)

	// Persisted state matches the returned run.
	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, stored.Status)

	keywords, err := st.ListKeywords(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, keywords, 3)
	for _, k := range keywords {
		assert.NotEmpty(t, k.FormulaVersion)
	}

	clusters, err := st.ListClusters(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, clusters, 1)
}

func TestRun_InvalidConfig_Fails(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st, &fakeCollector{}, &fakeEnricher{}, &fakeClusterer{})

	run, err := p.Run(context.Background(), model.RunConfig{
		Geo: "pe", Language: "es", // no seeds
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, config.ErrInvalid))
	assert.Equal(t, model.RunStatusFailed, run.Status)

	stored, getErr := st.GetRun(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	require.NotNil(t, stored.Result)
	assert.NotEmpty(t, stored.Result.Error)
}

func TestRun_UnknownFormulaVersion_Fails(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st, &fakeCollector{}, &fakeEnricher{}, &fakeClusterer{})

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es", FormulaVersion: "v99",
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, config.ErrInvalid))
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestRun_EstimatedVolumes_Degrades(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{stats: volume.Stats{Estimated: 2}},
		&fakeClusterer{},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.True(t, run.Degraded)
	assert.Contains(t, run.Reasons, "estimated volumes in use")
	assert.Equal(t, 2, run.Result.Estimated)
}

func TestRun_QuotaExceeded_Degrades(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{stats: volume.Stats{QuotaExceeded: true}},
		&fakeClusterer{},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Contains(t, run.Reasons, "volume quota exhausted")
}

func TestRun_ClustererError_DegradesButFinishes(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{},
		&fakeClusterer{err: eris.New("embedder offline")},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Contains(t, run.Reasons, "clustering unavailable")
	assert.Equal(t, 0, run.Result.Clusters)

	// Keywords are still persisted, unclustered.
	keywords, kwErr := st.ListKeywords(context.Background(), run.ID)
	require.NoError(t, kwErr)
	assert.Len(t, keywords, 3)
}

func TestRun_FallbackClustering_Degrades(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{},
		&fakeClusterer{result: &cluster.Result{
			Clusters: []model.Cluster{{ID: 0, Label: "otros", Size: 3}},
			Strategy: "lexical",
			Degraded: true,
		}},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Contains(t, run.Reasons, "semantic clustering unavailable")
	assert.Equal(t, "lexical", run.Result.ClusteredBy)
}

func TestRun_NoCandidates_Degrades(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st, &fakeCollector{}, &fakeEnricher{}, &fakeClusterer{})

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Contains(t, run.Reasons, "no candidates collected")
	assert.Equal(t, 0, run.Result.Keywords)
}

func TestRun_TargetKeywordsTruncates(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{},
		&fakeClusterer{},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es", TargetKeywords: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Result.Keywords)

	keywords, kwErr := st.ListKeywords(context.Background(), run.ID)
	require.NoError(t, kwErr)
	assert.Len(t, keywords, 2)
}

func TestRun_DeadLettersPersisted(t *testing.T) {
	st := newTestStore(t)
	p := testPipeline(t, st,
		&fakeCollector{candidates: testCandidates()},
		&fakeEnricher{stats: volume.Stats{
			DLQ: []resilience.DLQEntry{{
				Keyword: "curso de seo lima", Error: "planner: transient status 503",
				ErrorType: "transient", MaxRetries: 3,
			}},
		}},
		&fakeClusterer{},
	)

	run, err := p.Run(context.Background(), model.RunConfig{
		Seeds: []string{"seo"}, Geo: "pe", Language: "es",
	})
	require.NoError(t, err)
	require.NotNil(t, run.Result)

	entries, dlqErr := st.ListDeadLetters(context.Background(), resilience.DLQFilter{})
	require.NoError(t, dlqErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "curso de seo lima", entries[0].Keyword)
	assert.Equal(t, "scoring", entries[0].FailedPhase)
}
