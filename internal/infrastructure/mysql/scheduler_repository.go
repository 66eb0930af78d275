package mysql

import (
	"context"
	"database/sql"
	"time"

	"reverse-auction/internal/domain"
)

type MySQLSchedulerRepository struct {
	db *sql.DB
}

func NewMySQLSchedulerRepository(db *sql.DB) *MySQLSchedulerRepository {
	return &MySQLSchedulerRepository{db: db}
}

// UpsertJob relies on the unique job_key index: scheduling under an existing
// key atomically replaces the old due time and payload, which is the
// cancel-and-replace the reschedule contract requires.
func (r *MySQLSchedulerRepository) UpsertJob(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (job_key, listing_id, lot_id, action, run_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   listing_id = VALUES(listing_id),
		   lot_id = VALUES(lot_id),
		   action = VALUES(action),
		   run_at = VALUES(run_at),
		   status = VALUES(status)`,
		job.Key, job.ListingID, nullable(job.LotID), string(job.Action),
		job.RunAt, string(job.Status), job.CreatedAt)
	return err
}

func (r *MySQLSchedulerRepository) CancelByKey(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = ? WHERE job_key = ? AND status = ?`,
		string(domain.JobCancelled), key, string(domain.JobPending))
	return err
}

func (r *MySQLSchedulerRepository) GetDueJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_key, listing_id, lot_id, action, run_at, status, created_at
		 FROM scheduled_jobs
		 WHERE status = ? AND run_at <= ?
		 ORDER BY run_at ASC`,
		string(domain.JobPending), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		var job domain.ScheduledJob
		var lotID sql.NullString
		var action, status string

		err := rows.Scan(&job.Key, &job.ListingID, &lotID, &action,
			&job.RunAt, &status, &job.CreatedAt)
		if err != nil {
			return nil, err
		}

		job.LotID = lotID.String
		job.Action = domain.JobAction(action)
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// MarkExecuted matches on run_at as well as key: if a reschedule replaced
// the job between poll and completion, the replacement stays pending.
func (r *MySQLSchedulerRepository) MarkExecuted(ctx context.Context, key string, runAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = ?
		 WHERE job_key = ? AND status = ? AND run_at = ?`,
		string(domain.JobExecuted), key, string(domain.JobPending), runAt)
	return err
}
