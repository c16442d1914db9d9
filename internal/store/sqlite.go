package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aqxion/keyword-cli/internal/model"
	"github.com/aqxion/keyword-cli/internal/resilience"
	"github.com/aqxion/keyword-cli/internal/volume"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'collecting',
	degraded   INTEGER NOT NULL DEFAULT 0,
	reasons    TEXT,
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS keywords (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	normalized TEXT NOT NULL,
	score      REAL NOT NULL DEFAULT 0,
	cluster_id INTEGER,
	record     TEXT NOT NULL,
	PRIMARY KEY (run_id, normalized)
);

CREATE TABLE IF NOT EXISTS clusters (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	cluster_id INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	PRIMARY KEY (run_id, cluster_id)
);

CREATE TABLE IF NOT EXISTS volume_cache (
	cache_key   TEXT PRIMARY KEY,
	volume      INTEGER NOT NULL,
	competition REAL NOT NULL,
	fetched_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS embedding_cache (
	content TEXT NOT NULL,
	model   TEXT NOT NULL,
	vector  TEXT NOT NULL,
	PRIMARY KEY (content, model)
);

CREATE TABLE IF NOT EXISTS quota_usage (
	date       TEXT PRIMARY KEY,
	operations INTEGER NOT NULL DEFAULT 0,
	reads      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	keyword        TEXT NOT NULL,
	geo            TEXT,
	language       TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_phase   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_keywords_run_score ON keywords(run_id, score DESC);
CREATE INDEX IF NOT EXISTS idx_keywords_cluster ON keywords(run_id, cluster_id);
CREATE INDEX IF NOT EXISTS idx_volume_cache_fetched ON volume_cache(fetched_at);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(cfgJSON), string(model.RunStatusCollecting), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Config:    cfg,
		Status:    model.RunStatusCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) MarkRunDegraded(ctx context.Context, runID string, reasons []string) error {
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal degraded reasons")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET degraded = 1, reasons = ?, updated_at = ? WHERE id = ?`,
		string(reasonsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark run degraded %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, config, status, degraded, reasons, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, config, status, degraded, reasons, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Geo != "" {
		query += ` AND json_extract(config, '$.geo') = ?`
		args = append(args, filter.Geo)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) SaveKeywords(ctx context.Context, runID string, records []model.KeywordRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save keywords")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear keywords for run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO keywords (run_id, normalized, score, cluster_id, record) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert keyword")
	}
	defer stmt.Close()

	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal keyword %s", rec.Normalized)
		}
		var clusterID any
		if rec.ClusterID != nil {
			clusterID = *rec.ClusterID
		}
		if _, err := stmt.ExecContext(ctx, runID, rec.Normalized, rec.Score, clusterID, string(recJSON)); err != nil {
			return eris.Wrapf(err, "sqlite: insert keyword %s", rec.Normalized)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save keywords")
}

func (s *SQLiteStore) ListKeywords(ctx context.Context, runID string) ([]model.KeywordRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM keywords WHERE run_id = ? ORDER BY score DESC, normalized ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list keywords for run %s", runID)
	}
	defer rows.Close()

	var records []model.KeywordRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan keyword")
		}
		var rec model.KeywordRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal keyword")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list keywords iterate")
}

func (s *SQLiteStore) SaveClusters(ctx context.Context, runID string, clusters []model.Cluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save clusters")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear clusters for run %s", runID)
	}

	for _, c := range clusters {
		summaryJSON, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal cluster %d", c.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (run_id, cluster_id, summary) VALUES (?, ?, ?)`,
			runID, c.ID, string(summaryJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert cluster %d", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save clusters")
}

func (s *SQLiteStore) ListClusters(ctx context.Context, runID string) ([]model.Cluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM clusters WHERE run_id = ? ORDER BY cluster_id ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list clusters for run %s", runID)
	}
	defer rows.Close()

	var clusters []model.Cluster
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster")
		}
		var c model.Cluster
		if err := json.Unmarshal([]byte(summaryJSON), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal cluster")
		}
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "sqlite: list clusters iterate")
}

func (s *SQLiteStore) GetVolume(ctx context.Context, key string) (volume.CacheEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT volume, competition, fetched_at FROM volume_cache WHERE cache_key = ?`,
		key,
	)

	var entry volume.CacheEntry
	err := row.Scan(&entry.Volume, &entry.Competition, &entry.FetchedAt)
	if err == sql.ErrNoRows {
		return volume.CacheEntry{}, false, nil
	}
	if err != nil {
		return volume.CacheEntry{}, false, eris.Wrap(err, "sqlite: get volume")
	}
	return entry, true, nil
}

func (s *SQLiteStore) PutVolume(ctx context.Context, key string, entry volume.CacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO volume_cache (cache_key, volume, competition, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET volume = excluded.volume,
		 competition = excluded.competition, fetched_at = excluded.fetched_at`,
		key, entry.Volume, entry.Competition, entry.FetchedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: put volume")
}

func (s *SQLiteStore) DeleteExpiredVolumes(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM volume_cache WHERE fetched_at <= ?`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired volumes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, text, embModel string) ([]float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE content = ? AND model = ?`,
		text, embModel,
	)

	var vecJSON string
	err := row.Scan(&vecJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get embedding")
	}

	var vec []float64
	if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal embedding")
	}
	return vec, true, nil
}

func (s *SQLiteStore) PutEmbedding(ctx context.Context, text, embModel string, vec []float64) error {
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (content, model, vector) VALUES (?, ?, ?)
		 ON CONFLICT(content, model) DO UPDATE SET vector = excluded.vector`,
		text, embModel, string(vecJSON),
	)
	return eris.Wrap(err, "sqlite: put embedding")
}

// LoadQuotaUsage takes no context so the store satisfies volume.QuotaStore,
// which is called under the tracker's mutex.
func (s *SQLiteStore) LoadQuotaUsage(date string) (volume.QuotaUsage, bool, error) {
	row := s.db.QueryRow(
		`SELECT date, operations, reads FROM quota_usage WHERE date = ?`,
		date,
	)

	var u volume.QuotaUsage
	err := row.Scan(&u.Date, &u.Operations, &u.Reads)
	if err == sql.ErrNoRows {
		return volume.QuotaUsage{}, false, nil
	}
	if err != nil {
		return volume.QuotaUsage{}, false, eris.Wrap(err, "sqlite: load quota usage")
	}
	return u, true, nil
}

func (s *SQLiteStore) SaveQuotaUsage(usage volume.QuotaUsage) error {
	_, err := s.db.Exec(
		`INSERT INTO quota_usage (date, operations, reads) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET operations = excluded.operations, reads = excluded.reads`,
		usage.Date, usage.Operations, usage.Reads,
	)
	return eris.Wrap(err, "sqlite: save quota usage")
}

func (s *SQLiteStore) SaveDeadLetter(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, keyword, geo, language, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET error = excluded.error, retry_count = excluded.retry_count,
		 next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.Keyword, entry.Geo, entry.Language, entry.Error, entry.ErrorType,
		entry.FailedPhase, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save dead letter")
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, keyword, geo, language, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue WHERE 1=1`
	var args []any

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dead letters")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var geo, language, failedPhase sql.NullString
		err := rows.Scan(&e.ID, &e.Keyword, &geo, &language, &e.Error, &e.ErrorType,
			&failedPhase, &e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dead letter")
		}
		e.Geo = geo.String
		e.Language = language.String
		e.FailedPhase = failedPhase.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list dead letters iterate")
}

func (s *SQLiteStore) DeleteDeadLetter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dead_letter_queue WHERE id = ?`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dead letter %s", id)
	}
	return checkRowsAffected(res, "dead letter", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var cfgJSON string
	var reasonsJSON, resultJSON sql.NullString

	err := row.Scan(&r.ID, &cfgJSON, &r.Status, &r.Degraded, &reasonsJSON, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "unmarshal run config")
	}
	if reasonsJSON.Valid && reasonsJSON.String != "" {
		if err := json.Unmarshal([]byte(reasonsJSON.String), &r.Reasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal degraded reasons")
		}
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal run result")
		}
	}
	return &r, nil
}
