// Package pgx is the Postgres JobStore backed by a pgx connection pool.
package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"
)

// JobDBStore implements store.JobStore on Postgres.
type JobDBStore struct {
	conn *pgxpool.Pool
}

// NewJobDBStore wraps an open pool. Run Migrate before first use.
func NewJobDBStore(conn *pgxpool.Pool) *JobDBStore {
	return &JobDBStore{conn: conn}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const jobColumns = `id, source, method, options, status, result, entities, relationships,
	communities, mode, error, export_key, duration_ms, created_at, updated_at`

func (s *JobDBStore) CreateJob(ctx context.Context, job store.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.Status == "" {
		job.Status = store.JobPending
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}

	opts, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}
	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO summary_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, util.SanitizePostgresText(job.Source), string(job.Method), opts, string(job.Status), result,
		job.Graph.Entities, job.Graph.Relationships, job.Graph.Communities,
		job.Mode, util.SanitizePostgresText(job.Error), job.ExportKey, job.DurationMs,
		job.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// UpdateJob reads the job row under a lock, applies update and writes it
// back in one transaction.
func (s *JobDBStore) UpdateJob(ctx context.Context, id string, update store.JobUpdate) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	job, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM summary_jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}
	update.Apply(&job, time.Now())

	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE summary_jobs SET
			status = $2, result = $3, entities = $4, relationships = $5, communities = $6,
			mode = $7, error = $8, export_key = $9, duration_ms = $10, updated_at = $11
		WHERE id = $1`,
		id, string(job.Status), result, job.Graph.Entities, job.Graph.Relationships, job.Graph.Communities,
		job.Mode, util.SanitizePostgresText(job.Error), job.ExportKey, job.DurationMs, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *JobDBStore) GetJob(ctx context.Context, id string) (store.Job, error) {
	return scanJob(s.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM summary_jobs WHERE id = $1`, id))
}

// ListJobs returns the newest jobs first. A non-positive limit means 100.
func (s *JobDBStore) ListJobs(ctx context.Context, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(ctx, `SELECT `+jobColumns+` FROM summary_jobs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *JobDBStore) AddProcessingTime(ctx context.Context, amount int, duration time.Duration, statType string) error {
	if amount <= 0 {
		return nil
	}
	_, err := s.conn.Exec(ctx,
		`INSERT INTO processing_stats (stat_type, amount, duration_ms) VALUES ($1, $2, $3)`,
		statType, amount, duration.Milliseconds(),
	)
	return err
}

func (s *JobDBStore) PredictProcessingTime(ctx context.Context, amount int, statType string) (time.Duration, error) {
	var totalAmount, totalMs int64
	err := s.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint, COALESCE(SUM(duration_ms), 0)::bigint
		FROM processing_stats WHERE stat_type = $1`,
		statType,
	).Scan(&totalAmount, &totalMs)
	if err != nil {
		return 0, err
	}
	return store.Predict(totalAmount, time.Duration(totalMs)*time.Millisecond, amount), nil
}

func marshalResult(s *summarizer.Summary) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func scanJob(row pgxv5.Row) (store.Job, error) {
	var (
		job            store.Job
		method, status string
		opts, result   []byte
	)
	err := row.Scan(
		&job.ID, &job.Source, &method, &opts, &status, &result,
		&job.Graph.Entities, &job.Graph.Relationships, &job.Graph.Communities,
		&job.Mode, &job.Error, &job.ExportKey, &job.DurationMs, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.Job{}, store.ErrNotFound
	}
	if err != nil {
		return store.Job{}, err
	}
	job.Method = summarizer.Method(method)
	job.Status = store.JobStatus(status)
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &job.Options); err != nil {
			return store.Job{}, fmt.Errorf("failed to decode job options: %w", err)
		}
	}
	if len(result) > 0 {
		job.Result = &summarizer.Summary{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return store.Job{}, fmt.Errorf("failed to decode job result: %w", err)
		}
	}
	return job, nil
}
