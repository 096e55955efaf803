package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const JobSettlement = "settlement"

// Service runs background jobs on a single worker and records each run in
// job_runs. A nil DB skips recording.
type Service struct {
	DB    *pgxpool.Pool
	queue chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool) *Service {
	return &Service{
		DB:    db,
		queue: make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Schedule enqueues run every interval until ctx ends. A non-positive
// interval disables the schedule.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration, run func(context.Context) (any, error)) {
	if interval <= 0 {
		slog.Info("job schedule disabled", "jobType", jobType)
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Enqueue(jobType, run)
			}
		}
	}()
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := s.recordStart(ctx, j.Type)

	started := time.Now()
	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	slog.Info("job run finished", "jobType", j.Type, "status", status, "durationMs", time.Since(started).Milliseconds())

	s.recordFinish(ctx, runID, status, details)
	return details, err
}

func (s *Service) recordStart(ctx context.Context, jobType string) string {
	if s.DB == nil {
		return ""
	}
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}
	return runID
}

func (s *Service) recordFinish(ctx context.Context, runID, status string, details any) {
	if s.DB == nil || runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}
