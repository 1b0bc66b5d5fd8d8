package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"supplychain/internal/aggregate"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/quality"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store persists run results in a SQLite database. Metric tables are kept
// in long form, one row per bucket and metric, so daily and weekly tables
// with different columns share one schema.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Run is one entry of the run log.
type Run struct {
	ID         string
	Command    string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	RowsIn     int
	RowsOut    int
	Error      string
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, apperrors.NewStorageError("create database directory", err).WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open sqlite database %q", path), err)
	}
	// A single connection keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError(fmt.Sprintf("verify sqlite connection to %q", path), err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables when absent.
func (s *Store) InitSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("init schema: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRunsQuery := `
	CREATE TABLE IF NOT EXISTS run_log (
		run_id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		rows_in INTEGER NOT NULL DEFAULT 0,
		rows_out INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	`

	createMetricsQuery := `
	CREATE TABLE IF NOT EXISTS bucket_metrics (
		run_id TEXT NOT NULL,
		granularity TEXT NOT NULL,
		bucket TEXT NOT NULL,
		metric TEXT NOT NULL,
		position INTEGER NOT NULL,
		value REAL,
		PRIMARY KEY (run_id, granularity, bucket, metric)
	);
	`

	createCountsQuery := `
	CREATE TABLE IF NOT EXISTS bucket_counts (
		run_id TEXT NOT NULL,
		granularity TEXT NOT NULL,
		bucket TEXT NOT NULL,
		key_column TEXT NOT NULL,
		records INTEGER NOT NULL,
		PRIMARY KEY (run_id, granularity, bucket)
	);
	`

	createQualityQuery := `
	CREATE TABLE IF NOT EXISTS quality_scores (
		run_id TEXT NOT NULL,
		dimension TEXT NOT NULL,
		score REAL,
		PRIMARY KEY (run_id, dimension)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_bucket_metrics_metric
	ON bucket_metrics(granularity, metric);
	`

	statements := []string{
		createRunsQuery,
		createMetricsQuery,
		createCountsQuery,
		createQualityQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("init schema: exec statement #%d", i+1), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("init schema: commit tx", err)
	}
	return nil
}

// StartRun records a run as running.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return apperrors.NewAppValidationError("run id must not be empty")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO run_log (run_id, command, source, started_at, status)
	VALUES (?, ?, ?, ?, ?);
	`, run.ID, run.Command, run.Source, formatTime(run.StartedAt), run.Status)
	if err != nil {
		return apperrors.NewStorageError("start run", err).WithContext("run_id", run.ID)
	}
	return nil
}

// FinishRun stores the outcome of a run. A nil runErr marks it succeeded.
func (s *Store) FinishRun(ctx context.Context, id string, finished time.Time, rowsIn, rowsOut int, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
	UPDATE run_log
	SET finished_at = ?, status = ?, rows_in = ?, rows_out = ?, error = ?
	WHERE run_id = ?;
	`, formatTime(finished), status, rowsIn, rowsOut, msg, id)
	if err != nil {
		return apperrors.NewStorageError("finish run", err).WithContext("run_id", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("run " + id)
	}
	return nil
}

const selectRuns = `
	SELECT run_id, command, source, started_at, finished_at, status, rows_in, rows_out, error
	FROM run_log
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		started, finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Command, &run.Source, &started, &finished, &run.Status, &run.RowsIn, &run.RowsOut, &run.Error); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(started.String)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return run, nil
}

// Run returns one run log entry.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+"WHERE run_id = ?;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, apperrors.NewNotFoundError("run " + id)
	}
	if err != nil {
		return Run{}, apperrors.NewStorageError("read run", err).WithContext("run_id", id)
	}
	return run, nil
}

// Runs returns every run log entry, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+"ORDER BY started_at, run_id;")
	if err != nil {
		return nil, apperrors.NewStorageError("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list runs", err)
	}
	return runs, nil
}

// SaveTable replaces the stored buckets of table's granularity for a run.
func (s *Store) SaveTable(ctx context.Context, runID string, table *aggregate.Table) error {
	granularity := table.Granularity.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("save table: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM bucket_metrics WHERE run_id = ? AND granularity = ?;`,
		`DELETE FROM bucket_counts WHERE run_id = ? AND granularity = ?;`,
	} {
		if _, err := tx.ExecContext(ctx, q, runID, granularity); err != nil {
			return apperrors.NewStorageError("save table: clear previous rows", err)
		}
	}

	metricStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO bucket_metrics (run_id, granularity, bucket, metric, position, value)
	VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return apperrors.NewStorageError("save table: prepare metric insert", err)
	}
	defer metricStmt.Close()

	countStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO bucket_counts (run_id, granularity, bucket, key_column, records)
	VALUES (?, ?, ?, ?, ?);
	`)
	if err != nil {
		return apperrors.NewStorageError("save table: prepare count insert", err)
	}
	defer countStmt.Close()

	for _, b := range table.Buckets {
		key := b.Key.Format(aggregate.KeyLayout)
		if _, err := countStmt.ExecContext(ctx, runID, granularity, key, table.KeyColumn, b.Count); err != nil {
			return apperrors.NewStorageError("save table: insert bucket", err).WithContext("bucket", key)
		}
		for j, v := range b.Values {
			if _, err := metricStmt.ExecContext(ctx, runID, granularity, key, table.Columns[j], j, nullFloat(v)); err != nil {
				return apperrors.NewStorageError("save table: insert metric", err).
					WithContext("bucket", key).WithContext("metric", table.Columns[j])
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("save table: commit tx", err)
	}

	s.logger.InfoContext(ctx, "Stored aggregated table",
		slog.String("run_id", runID),
		slog.String("granularity", granularity),
		slog.Int("buckets", table.Len()))
	return nil
}

// LoadTable rebuilds a stored table. Missing values come back as NaN.
func (s *Store) LoadTable(ctx context.Context, runID string, g aggregate.Granularity) (*aggregate.Table, error) {
	granularity := g.String()
	table := &aggregate.Table{Granularity: g, KeyColumn: g.KeyColumn()}

	rows, err := s.db.QueryContext(ctx, `
	SELECT bucket, key_column, records
	FROM bucket_counts
	WHERE run_id = ? AND granularity = ?
	ORDER BY bucket;
	`, runID, granularity)
	if err != nil {
		return nil, apperrors.NewStorageError("load table: query buckets", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var key string
		var b aggregate.Bucket
		if err := rows.Scan(&key, &table.KeyColumn, &b.Count); err != nil {
			rows.Close()
			return nil, apperrors.NewStorageError("load table: scan bucket", err)
		}
		b.Key, err = time.Parse(aggregate.KeyLayout, key)
		if err != nil {
			rows.Close()
			return nil, apperrors.NewParsingError("load table: bucket key "+key, err)
		}
		index[key] = len(table.Buckets)
		table.Buckets = append(table.Buckets, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("load table: iterate buckets", err)
	}
	if len(table.Buckets) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s table for run %s", granularity, runID))
	}

	metrics, err := s.db.QueryContext(ctx, `
	SELECT bucket, metric, position, value
	FROM bucket_metrics
	WHERE run_id = ? AND granularity = ?
	ORDER BY position, bucket;
	`, runID, granularity)
	if err != nil {
		return nil, apperrors.NewStorageError("load table: query metrics", err)
	}
	defer metrics.Close()

	for metrics.Next() {
		var (
			key, metric string
			position    int
			value       sql.NullFloat64
		)
		if err := metrics.Scan(&key, &metric, &position, &value); err != nil {
			return nil, apperrors.NewStorageError("load table: scan metric", err)
		}
		for len(table.Columns) <= position {
			table.Columns = append(table.Columns, "")
		}
		table.Columns[position] = metric

		i, ok := index[key]
		if !ok {
			continue
		}
		b := &table.Buckets[i]
		for len(b.Values) <= position {
			b.Values = append(b.Values, math.NaN())
		}
		if value.Valid {
			b.Values[position] = value.Float64
		}
	}
	if err := metrics.Err(); err != nil {
		return nil, apperrors.NewStorageError("load table: iterate metrics", err)
	}

	for i := range table.Buckets {
		for len(table.Buckets[i].Values) < len(table.Columns) {
			table.Buckets[i].Values = append(table.Buckets[i].Values, math.NaN())
		}
	}
	return table, nil
}

// SaveQuality stores the dimension scores of a quality report.
func (s *Store) SaveQuality(ctx context.Context, runID string, q *quality.Report) error {
	scores := []struct {
		dimension string
		score     float64
	}{
		{"completeness", q.Completeness},
		{"uniqueness", q.Uniqueness},
		{"validity", q.Validity},
		{"consistency", q.Consistency},
		{"outlier_pct", q.OutlierPct},
		{"composite", q.Composite},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("save quality: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO quality_scores (run_id, dimension, score)
	VALUES (?, ?, ?);
	`)
	if err != nil {
		return apperrors.NewStorageError("save quality: prepare insert", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		if _, err := stmt.ExecContext(ctx, runID, sc.dimension, nullFloat(sc.score)); err != nil {
			return apperrors.NewStorageError("save quality: insert "+sc.dimension, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("save quality: commit tx", err)
	}
	return nil
}

// QualityScores returns the stored scores of a run keyed by dimension.
func (s *Store) QualityScores(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT dimension, score FROM quality_scores WHERE run_id = ?;
	`, runID)
	if err != nil {
		return nil, apperrors.NewStorageError("query quality scores", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var dim string
		var score sql.NullFloat64
		if err := rows.Scan(&dim, &score); err != nil {
			return nil, apperrors.NewStorageError("scan quality score", err)
		}
		out[dim] = math.NaN()
		if score.Valid {
			out[dim] = score.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate quality scores", err)
	}
	return out, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
