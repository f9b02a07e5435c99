// Package postgres persists pipeline run history in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id        UUID PRIMARY KEY,
    package_name  TEXT NOT NULL DEFAULT '',
    top_hash      TEXT NOT NULL DEFAULT '',
    quality_score DOUBLE PRECISION,
    success       BOOLEAN NOT NULL,
    data_file     TEXT NOT NULL DEFAULT '',
    errors        JSONB NOT NULL DEFAULT '[]',
    started_at    TIMESTAMPTZ NOT NULL,
    recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pipeline_runs_started_at_idx ON pipeline_runs (started_at DESC);
`

// HistoryStore records pipeline runs in the pipeline_runs table.
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to dsn, pings it and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*HistoryStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &HistoryStore{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the pipeline_runs table if it does not exist.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Record inserts the digest of r. Re-recording a run id updates it.
func (s *HistoryStore) Record(ctx context.Context, r domain.RunResult) error {
	rec := r.Record()
	errs, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	var score sql.NullFloat64
	if rec.QualityScore != nil {
		score = sql.NullFloat64{Float64: *rec.QualityScore, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO pipeline_runs (run_id, package_name, top_hash, quality_score, success, data_file, errors, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (run_id) DO UPDATE SET
            package_name = EXCLUDED.package_name,
            top_hash = EXCLUDED.top_hash,
            quality_score = EXCLUDED.quality_score,
            success = EXCLUDED.success,
            data_file = EXCLUDED.data_file,
            errors = EXCLUDED.errors,
            recorded_at = now()
    `, rec.RunID, rec.PackageName, rec.TopHash, score, rec.Success, rec.DataFile, errs, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	s.logger.Debug("run recorded", "run_id", rec.RunID, "success", rec.Success)
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, package_name, top_hash, quality_score, success, data_file, errors, started_at
        FROM pipeline_runs
        ORDER BY started_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			rec   domain.RunRecord
			score sql.NullFloat64
			errs  []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.PackageName, &rec.TopHash, &score, &rec.Success,
			&rec.DataFile, &errs, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if score.Valid {
			rec.QualityScore = &score.Float64
		}
		if err := json.Unmarshal(errs, &rec.Errors); err != nil {
			return nil, fmt.Errorf("decode errors of run %s: %w", rec.RunID, err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *HistoryStore) Close() error { return s.db.Close() }
