package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aqxion/keyword-cli/internal/db"
	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
	"github.com/aqxion/keyword-cli/internal/volume"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, config, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, config, status, degraded, reasons, result, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_phase":      `INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_phase":    `UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
	"get_volume":        `SELECT volume, competition, fetched_at FROM volume_cache WHERE cache_key = $1`,
	"get_embedding":     `SELECT vector FROM embedding_cache WHERE content = $1 AND model = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	config     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'collecting',
	degraded   BOOLEAN NOT NULL DEFAULT false,
	reasons    JSONB,
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS keywords (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	normalized TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	cluster_id INTEGER,
	record     JSONB NOT NULL,
	PRIMARY KEY (run_id, normalized)
);

CREATE TABLE IF NOT EXISTS clusters (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	cluster_id INTEGER NOT NULL,
	summary    JSONB NOT NULL,
	PRIMARY KEY (run_id, cluster_id)
);

CREATE TABLE IF NOT EXISTS volume_cache (
	cache_key   TEXT PRIMARY KEY,
	volume      INTEGER NOT NULL,
	competition DOUBLE PRECISION NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS embedding_cache (
	content TEXT NOT NULL,
	model   TEXT NOT NULL,
	vector  JSONB NOT NULL,
	PRIMARY KEY (content, model)
);

CREATE TABLE IF NOT EXISTS quota_usage (
	date       TEXT PRIMARY KEY,
	operations INTEGER NOT NULL DEFAULT 0,
	reads      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	keyword        TEXT NOT NULL,
	geo            TEXT,
	language       TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_phase   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_keywords_run_score ON keywords(run_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_keywords_cluster ON keywords(run_id, cluster_id);
CREATE INDEX IF NOT EXISTS idx_volume_cache_fetched ON volume_cache(fetched_at);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, config, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, cfgJSON, string(model.RunStatusCollecting), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Config:    cfg,
		Status:    model.RunStatusCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) MarkRunDegraded(ctx context.Context, runID string, reasons []string) error {
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal degraded reasons")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET degraded = true, reasons = $1, updated_at = $2 WHERE id = $3`,
		reasonsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark run degraded %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, config, status, degraded, reasons, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, config, status, degraded, reasons, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := 0

	if filter.Status != "" {
		arg++
		query += fmt.Sprintf(` AND status = $%d`, arg)
		args = append(args, string(filter.Status))
	}
	if filter.Geo != "" {
		arg++
		query += fmt.Sprintf(` AND config->>'geo' = $%d`, arg)
		args = append(args, filter.Geo)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	arg++
	query += fmt.Sprintf(` LIMIT $%d`, arg)
	args = append(args, limit)

	if filter.Offset > 0 {
		arg++
		query += fmt.Sprintf(` OFFSET $%d`, arg)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "phase %s", phaseID)
	}
	return nil
}

// SaveKeywords bulk-upserts the full record set for a run in one round trip.
func (s *PostgresStore) SaveKeywords(ctx context.Context, runID string, records []model.KeywordRecord) error {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal keyword %s", rec.Normalized)
		}
		var clusterID any
		if rec.ClusterID != nil {
			clusterID = *rec.ClusterID
		}
		rows = append(rows, []any{runID, rec.Normalized, rec.Score, clusterID, recJSON})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "keywords",
		Columns:      []string{"run_id", "normalized", "score", "cluster_id", "record"},
		ConflictKeys: []string{"run_id", "normalized"},
	}, rows)
	return eris.Wrapf(err, "postgres: save keywords for run %s", runID)
}

func (s *PostgresStore) ListKeywords(ctx context.Context, runID string) ([]model.KeywordRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM keywords WHERE run_id = $1 ORDER BY score DESC, normalized ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list keywords for run %s", runID)
	}
	defer rows.Close()

	var records []model.KeywordRecord
	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan keyword")
		}
		var rec model.KeywordRecord
		if err := json.Unmarshal(recJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keyword")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list keywords iterate")
}

func (s *PostgresStore) SaveClusters(ctx context.Context, runID string, clusters []model.Cluster) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM clusters WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear clusters for run %s", runID)
	}

	rows := make([][]any, 0, len(clusters))
	for _, c := range clusters {
		summaryJSON, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal cluster %d", c.ID)
		}
		rows = append(rows, []any{runID, c.ID, summaryJSON})
	}

	_, err := db.CopyFrom(ctx, s.pool, "clusters", []string{"run_id", "cluster_id", "summary"}, rows)
	return eris.Wrapf(err, "postgres: save clusters for run %s", runID)
}

func (s *PostgresStore) ListClusters(ctx context.Context, runID string) ([]model.Cluster, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT summary FROM clusters WHERE run_id = $1 ORDER BY cluster_id ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list clusters for run %s", runID)
	}
	defer rows.Close()

	var clusters []model.Cluster
	for rows.Next() {
		var summaryJSON []byte
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster")
		}
		var c model.Cluster
		if err := json.Unmarshal(summaryJSON, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal cluster")
		}
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "postgres: list clusters iterate")
}

func (s *PostgresStore) GetVolume(ctx context.Context, key string) (volume.CacheEntry, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT volume, competition, fetched_at FROM volume_cache WHERE cache_key = $1`,
		key,
	)

	var entry volume.CacheEntry
	err := row.Scan(&entry.Volume, &entry.Competition, &entry.FetchedAt)
	if err == pgx.ErrNoRows {
		return volume.CacheEntry{}, false, nil
	}
	if err != nil {
		return volume.CacheEntry{}, false, eris.Wrap(err, "postgres: get volume")
	}
	return entry, true, nil
}

func (s *PostgresStore) PutVolume(ctx context.Context, key string, entry volume.CacheEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO volume_cache (cache_key, volume, competition, fetched_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET volume = EXCLUDED.volume,
		 competition = EXCLUDED.competition, fetched_at = EXCLUDED.fetched_at`,
		key, entry.Volume, entry.Competition, entry.FetchedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: put volume")
}

func (s *PostgresStore) DeleteExpiredVolumes(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM volume_cache WHERE fetched_at <= $1`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired volumes")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetEmbedding(ctx context.Context, text, embModel string) ([]float64, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT vector FROM embedding_cache WHERE content = $1 AND model = $2`,
		text, embModel,
	)

	var vecJSON []byte
	err := row.Scan(&vecJSON)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get embedding")
	}

	var vec []float64
	if err := json.Unmarshal(vecJSON, &vec); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal embedding")
	}
	return vec, true, nil
}

func (s *PostgresStore) PutEmbedding(ctx context.Context, text, embModel string, vec []float64) error {
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal embedding")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO embedding_cache (content, model, vector) VALUES ($1, $2, $3)
		 ON CONFLICT (content, model) DO UPDATE SET vector = EXCLUDED.vector`,
		text, embModel, vecJSON,
	)
	return eris.Wrap(err, "postgres: put embedding")
}

func (s *PostgresStore) LoadQuotaUsage(date string) (volume.QuotaUsage, bool, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT date, operations, reads FROM quota_usage WHERE date = $1`,
		date,
	)

	var u volume.QuotaUsage
	err := row.Scan(&u.Date, &u.Operations, &u.Reads)
	if err == pgx.ErrNoRows {
		return volume.QuotaUsage{}, false, nil
	}
	if err != nil {
		return volume.QuotaUsage{}, false, eris.Wrap(err, "postgres: load quota usage")
	}
	return u, true, nil
}

func (s *PostgresStore) SaveQuotaUsage(usage volume.QuotaUsage) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO quota_usage (date, operations, reads) VALUES ($1, $2, $3)
		 ON CONFLICT (date) DO UPDATE SET operations = EXCLUDED.operations, reads = EXCLUDED.reads`,
		usage.Date, usage.Operations, usage.Reads,
	)
	return eris.Wrap(err, "postgres: save quota usage")
}

func (s *PostgresStore) SaveDeadLetter(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, keyword, geo, language, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET error = EXCLUDED.error, retry_count = EXCLUDED.retry_count,
		 next_retry_at = EXCLUDED.next_retry_at, last_failed_at = EXCLUDED.last_failed_at`,
		entry.ID, entry.Keyword, entry.Geo, entry.Language, entry.Error, entry.ErrorType,
		entry.FailedPhase, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save dead letter")
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, keyword, geo, language, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue WHERE 1=1`
	var args []any
	arg := 0

	if filter.ErrorType != "" {
		arg++
		query += fmt.Sprintf(` AND error_type = $%d`, arg)
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	arg++
	query += fmt.Sprintf(` LIMIT $%d`, arg)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dead letters")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var geo, language, failedPhase *string
		err := rows.Scan(&e.ID, &e.Keyword, &geo, &language, &e.Error, &e.ErrorType,
			&failedPhase, &e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan dead letter")
		}
		if geo != nil {
			e.Geo = *geo
		}
		if language != nil {
			e.Language = *language
		}
		if failedPhase != nil {
			e.FailedPhase = *failedPhase
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list dead letters iterate")
}

func (s *PostgresStore) DeleteDeadLetter(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM dead_letter_queue WHERE id = $1`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dead letter %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "dead letter %s", id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var cfgJSON []byte
	var reasonsJSON, resultJSON []byte

	err := row.Scan(&r.ID, &cfgJSON, &r.Status, &r.Degraded, &reasonsJSON, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run config")
	}
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &r.Reasons); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal degraded reasons")
		}
	}
	if len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
	}
	return &r, nil
}

