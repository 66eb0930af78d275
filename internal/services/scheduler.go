package services

import (
	"context"
	"fmt"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CronJobScheduler is the durable timer: jobs live in the scheduler
// repository keyed by job key, and a cron-driven poll fires the due ones.
// Because jobs are rows, pending timers survive restarts and are redelivered
// by the poller itself. Only the elected leader dispatches so multiple
// instances never fire the same job.
type CronJobScheduler struct {
	cron         *cron.Cron
	repo         domain.SchedulerRepository
	auctionMgr   *AuctionManager
	leader       domain.LeaderElection
	instanceID   string
	pollInterval time.Duration
	log          logger.Logger
}

func NewCronJobScheduler(
	repo domain.SchedulerRepository,
	auctionMgr *AuctionManager,
	leader domain.LeaderElection,
	instanceID string,
	pollInterval time.Duration,
	log logger.Logger,
) *CronJobScheduler {
	return &CronJobScheduler{
		cron:         cron.New(cron.WithSeconds()),
		repo:         repo,
		auctionMgr:   auctionMgr,
		leader:       leader,
		instanceID:   instanceID,
		pollInterval: pollInterval,
		log:          log,
	}
}

func (s *CronJobScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting job scheduler", "poll_interval", s.pollInterval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), func() {
		s.processDueJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronJobScheduler) Stop() error {
	s.log.Info("Stopping job scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronJobScheduler) Schedule(ctx context.Context, key string, runAt time.Time, payload domain.JobPayload) error {
	job := &domain.ScheduledJob{
		Key:       key,
		ListingID: payload.ListingID,
		LotID:     payload.LotID,
		Action:    payload.Action,
		RunAt:     runAt,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}
	return s.repo.UpsertJob(ctx, job)
}

// Reschedule is cancel-and-replace in one step: the upsert swaps the due
// time under the existing key, so there is no window with zero or two
// pending jobs.
func (s *CronJobScheduler) Reschedule(ctx context.Context, key string, runAt time.Time, payload domain.JobPayload) error {
	return s.Schedule(ctx, key, runAt, payload)
}

func (s *CronJobScheduler) Cancel(ctx context.Context, key string) error {
	return s.repo.CancelByKey(ctx, key)
}

func (s *CronJobScheduler) processDueJobs(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	jobs, err := s.repo.GetDueJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get due jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Firing job", "key", job.Key, "action", job.Action,
			"listing_id", job.ListingID, "run_at", job.RunAt)

		var err error
		switch job.Action {
		case domain.JobStartAuction:
			err = s.auctionMgr.StartAuction(ctx, job.ListingID)
		case domain.JobTransitionToNextLot:
			err = s.auctionMgr.TransitionToNextLot(ctx, job.ListingID, job.LotID)
		default:
			s.log.Error("Unknown job action, dropping", "key", job.Key, "action", job.Action)
		}

		if err != nil {
			// Leave the row pending; the next poll retries it.
			s.log.Error("Job execution failed, will retry", "key", job.Key, "error", err)
			continue
		}

		if err := s.repo.MarkExecuted(ctx, job.Key, job.RunAt); err != nil {
			s.log.Error("Failed to mark job executed", "key", job.Key, "error", err)
		}
	}
}
