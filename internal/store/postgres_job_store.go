package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/toonforge/internal/domain"
	_ "github.com/lib/pq"
)

const jobSchemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	source_key TEXT NOT NULL,
	style TEXT NOT NULL,
	params JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	output_key TEXT NOT NULL DEFAULT '',
	hd_output_key TEXT NOT NULL DEFAULT '',
	comparison_key TEXT NOT NULL DEFAULT '',
	hd_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
	webhook_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_user_created_idx ON jobs (user_id, created_at DESC);
`

const jobColumns = `id, user_id, source_key, style, params, status, error_message,
	output_key, hd_output_key, comparison_key, hd_unlocked, webhook_url, created_at, processed_at, updated_at`

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(ctx context.Context, dsn string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresJobStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, jobSchemaSQL); err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

func (s *PostgresJobStore) Create(ctx context.Context, job domain.Job) error {
	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal job params: %w", err)
	}
	if job.Params == nil {
		paramsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, user_id, source_key, style, params, status, error_message,
			output_key, hd_output_key, comparison_key, hd_unlocked, webhook_url, created_at, processed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID,
		job.UserID,
		job.SourceKey,
		job.Style,
		paramsJSON,
		job.Status,
		job.ErrorMessage,
		job.OutputKey,
		job.HDOutputKey,
		job.ComparisonKey,
		job.HDUnlocked,
		job.WebhookURL,
		job.CreatedAt,
		job.ProcessedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		id,
	)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("query job: %w", err)
	}
	return job, true, nil
}

func (s *PostgresJobStore) List(ctx context.Context, userID string, filter ListFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1`
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Style != "" {
		args = append(args, filter.Style)
		query += fmt.Sprintf(" AND style = $%d", len(args))
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

func (s *PostgresJobStore) Stats(ctx context.Context, userID string) (JobStats, error) {
	stats := JobStats{
		ByStatus: make(map[string]int),
		ByStyle:  make(map[string]int),
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, style, COUNT(*) FROM jobs WHERE user_id = $1 GROUP BY status, style`,
		userID,
	)
	if err != nil {
		return JobStats{}, fmt.Errorf("query job stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			style  string
			count  int
		)
		if err := rows.Scan(&status, &style, &count); err != nil {
			return JobStats{}, fmt.Errorf("scan stats row: %w", err)
		}
		stats.TotalJobs += count
		stats.ByStatus[status] += count
		stats.ByStyle[style] += count
	}
	if err := rows.Err(); err != nil {
		return JobStats{}, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}

// MarkQueued re-queues a job for another attempt. The conditional UPDATE
// refuses to demote a row that a worker currently has in processing, so an
// in-flight attempt can never be knocked back to queued.
func (s *PostgresJobStore) MarkQueued(ctx context.Context, id string) (domain.Job, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $4`,
		domain.JobStatusQueued,
		time.Now().UTC(),
		id,
		domain.JobStatusProcessing,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("mark job queued: %w", err)
	}
	return s.afterConditionalUpdate(ctx, id, result)
}

// MarkProcessing is the single atomic entry point into processing: the
// conditional UPDATE is the compare-and-swap that rejects a concurrent
// second attempt instead of double-running the pipeline.
func (s *PostgresJobStore) MarkProcessing(ctx context.Context, id string) (domain.Job, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
		 SET status = $1, error_message = '', updated_at = $2
		 WHERE id = $3 AND status <> $1`,
		domain.JobStatusProcessing,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("mark job processing: %w", err)
	}
	return s.afterConditionalUpdate(ctx, id, result)
}

func (s *PostgresJobStore) MarkDone(ctx context.Context, id string, keys ArtifactKeys, processedAt time.Time) (domain.Job, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
		 SET status = $1, output_key = $2, hd_output_key = $3, comparison_key = $4,
		     error_message = '', processed_at = $5, updated_at = $6
		 WHERE id = $7`,
		domain.JobStatusDone,
		keys.Output,
		keys.HDOutput,
		keys.Comparison,
		processedAt,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("mark job done: %w", err)
	}
	return s.afterUpdate(ctx, id, result)
}

func (s *PostgresJobStore) MarkFailed(ctx context.Context, id, message string) (domain.Job, error) {
	// Output keys from a prior successful attempt stay untouched.
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.JobStatusFailed,
		message,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("mark job failed: %w", err)
	}
	return s.afterUpdate(ctx, id, result)
}

func (s *PostgresJobStore) UnlockHD(ctx context.Context, id string) (domain.Job, error) {
	// Monotonic: the flag is only ever set, never cleared here.
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET hd_unlocked = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("unlock hd: %w", err)
	}
	return s.afterUpdate(ctx, id, result)
}

func (s *PostgresJobStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// afterConditionalUpdate distinguishes "row exists but the guard refused the
// transition" (busy) from "row missing" when a CAS touched nothing.
func (s *PostgresJobStore) afterConditionalUpdate(ctx context.Context, id string, result sql.Result) (domain.Job, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Job{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, ok, getErr := s.Get(ctx, id); getErr == nil && ok {
			return domain.Job{}, domain.ErrJobBusy
		}
		return domain.Job{}, ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}

func (s *PostgresJobStore) afterUpdate(ctx context.Context, id string, result sql.Result) (domain.Job, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Job{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Job{}, ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job         domain.Job
		paramsJSON  []byte
		processedAt sql.NullTime
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.SourceKey,
		&job.Style,
		&paramsJSON,
		&job.Status,
		&job.ErrorMessage,
		&job.OutputKey,
		&job.HDOutputKey,
		&job.ComparisonKey,
		&job.HDUnlocked,
		&job.WebhookURL,
		&job.CreatedAt,
		&processedAt,
		&job.UpdatedAt,
	); err != nil {
		return domain.Job{}, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &job.Params); err != nil {
			return domain.Job{}, fmt.Errorf("unmarshal job params: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		job.ProcessedAt = &t
	}
	return job, nil
}
