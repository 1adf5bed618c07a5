package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type Config struct {
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	CleanupInterval  time.Duration
	JobRetention     time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		ReminderInterval: envutil.Seconds("REMINDER_SCAN_INTERVAL_SECONDS", 15*time.Minute),
		ReminderWindow:   time.Duration(envutil.Int("REMINDER_WINDOW_HOURS", 24)) * time.Hour,
		CleanupInterval:  envutil.Seconds("CLEANUP_INTERVAL_SECONDS", time.Hour),
		JobRetention:     time.Duration(envutil.Int("JOB_RETENTION_DAYS", 7)) * 24 * time.Hour,
	}
}

// Purger removes finished job runs older than before.
type Purger interface {
	PurgeFinished(dbc dbctx.Context, before time.Time) (int64, error)
}

// Scheduler enqueues periodic system jobs and prunes expired rows.
type Scheduler struct {
	log  *logger.Logger
	cfg  Config
	jobs services.JobService
	auth services.AuthService
	runs Purger
	now  func() time.Time
}

func New(baseLog *logger.Logger, cfg Config, jobs services.JobService, auth services.AuthService, runs Purger) *Scheduler {
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = 15 * time.Minute
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &Scheduler{
		log:  baseLog.With("component", "Scheduler"),
		cfg:  cfg,
		jobs: jobs,
		auth: auth,
		runs: runs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting scheduler",
		"reminder_interval", s.cfg.ReminderInterval.String(),
		"cleanup_interval", s.cfg.CleanupInterval.String(),
	)
	go s.loop(ctx, s.cfg.ReminderInterval, s.ScheduleReminderScan)
	go s.loop(ctx, s.cfg.CleanupInterval, s.Cleanup)
}

func (s *Scheduler) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	fn(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

// ScheduleReminderScan enqueues a scan unless one is already queued or running.
func (s *Scheduler) ScheduleReminderScan(ctx context.Context) {
	payload := map[string]any{"window_hours": int(s.cfg.ReminderWindow / time.Hour)}
	job, created, err := s.jobs.EnqueueIfAbsent(dbctx.Context{Ctx: ctx}, uuid.Nil, domainjobs.TypeAssessmentReminderScan, "system", nil, payload)
	if err != nil {
		s.log.Warn("Failed to schedule reminder scan", "error", err)
		return
	}
	if created {
		s.log.Debug("Scheduled reminder scan", "job_id", job.ID)
	}
}

func (s *Scheduler) Cleanup(ctx context.Context) {
	if s.auth != nil {
		if n, err := s.auth.PurgeExpired(ctx); err != nil {
			s.log.Warn("Failed to purge expired tokens", "error", err)
		} else if n > 0 {
			s.log.Info("Purged expired tokens", "count", n)
		}
	}
	if s.runs != nil && s.cfg.JobRetention > 0 {
		n, err := s.runs.PurgeFinished(dbctx.Context{Ctx: ctx}, s.now().Add(-s.cfg.JobRetention))
		if err != nil {
			s.log.Warn("Failed to purge finished jobs", "error", err)
		} else if n > 0 {
			s.log.Info("Purged finished jobs", "count", n)
		}
	}
}
