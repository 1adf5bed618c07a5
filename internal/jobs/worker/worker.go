package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
	Heartbeat    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Seconds("WORKER_POLL_SECONDS", time.Second),
		MaxAttempts:  envutil.Int("WORKER_MAX_ATTEMPTS", 5),
		RetryDelay:   envutil.Seconds("WORKER_RETRY_DELAY_SECONDS", 30*time.Second),
		StaleRunning: envutil.Seconds("WORKER_STALE_RUNNING_SECONDS", 10*time.Minute),
		Heartbeat:    envutil.Seconds("WORKER_HEARTBEAT_SECONDS", 30*time.Second),
	}
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	if c.Heartbeat <= 0 || c.Heartbeat >= c.StaleRunning {
		c.Heartbeat = c.StaleRunning / 3
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.Notifier
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify runtime.Notifier, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.normalized(),
	}
}

// Start launches the pool and returns immediately. Loops exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"job_types", w.registry.Types(),
	)
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				if !w.RunOnce(ctx, workerID) {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	jobLog := w.log.With("worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	spanCtx, span := observability.StartSpan(ctx, "job."+job.JobType,
		attribute.String("job.id", job.ID.String()),
		attribute.Int("job.attempt", job.Attempts),
	)
	jc := runtime.NewContext(spanCtx, w.db, job, w.repo, w.notify)
	start := time.Now()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		jobLog.Warn("No handler registered for job_type")
		err := &missingHandlerError{JobType: job.JobType}
		jc.Fail("dispatch", err)
		observability.EndSpan(span, err)
		observability.Current().ObserveJob(job.JobType, domainjobs.StatusFailed, time.Since(start))
		return true
	}

	stopBeat := w.heartbeat(spanCtx, jobLog, job.ID.String(), func(c context.Context) error {
		return w.repo.Heartbeat(dbctx.Context{Ctx: c}, job.ID)
	})
	runErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				jobLog.Error("Job handler panic", "panic", r)
				err = errFromRecover(r)
			}
		}()
		return h.Run(jc)
	}()
	stopBeat()

	if runErr != nil {
		jobLog.Warn("Job failed", "error", runErr)
		if job.Status != domainjobs.StatusFailed {
			jc.Fail("run", runErr)
		}
	} else if !job.Terminal() {
		jc.Succeed("done", nil)
	}
	observability.EndSpan(span, runErr)
	observability.Current().ObserveJob(job.JobType, job.Status, time.Since(start))
	jobLog.Debug("Job finished", "status", job.Status, "duration_ms", time.Since(start).Milliseconds())
	return true
}

// heartbeat keeps a long handler from being reclaimed as stale.
func (w *Worker) heartbeat(ctx context.Context, log *logger.Logger, jobID string, beat func(context.Context) error) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := beat(ctx); err != nil && ctx.Err() == nil {
					log.Warn("Job heartbeat failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
