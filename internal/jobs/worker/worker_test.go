package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type funcHandler struct {
	typ string
	run func(*runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.typ }
func (h funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }

func setup(t *testing.T, handlers ...runtime.Handler) (*Worker, repos.JobRunRepo, services.JobService) {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	notifier := services.NewJobNotifier(nil)
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	w := NewWorker(db, log, repo, reg, notifier, Config{MaxAttempts: 2, RetryDelay: time.Hour})
	return w, repo, services.NewJobService(db, log, repo, notifier)
}

func load(t *testing.T, repo repos.JobRunRepo, id uuid.UUID) string {
	t.Helper()
	rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load job: rows=%d err=%v", len(rows), err)
	}
	return rows[0].Status
}

func TestRunOnceSucceeds(t *testing.T) {
	var gotUser string
	w, repo, jobs := setup(t, funcHandler{typ: "echo", run: func(jc *runtime.Context) error {
		gotUser = jc.PayloadString("user")
		jc.Progress("halfway", 50, "")
		return nil
	}})
	ctx := context.Background()

	job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, uuid.New(), "echo", "", nil, map[string]any{"user": "ada"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !w.RunOnce(ctx, 1) {
		t.Fatalf("expected a job to be claimed")
	}
	if gotUser != "ada" {
		t.Fatalf("payload user=%q", gotUser)
	}
	if st := load(t, repo, job.ID); st != domainjobs.StatusSucceeded {
		t.Fatalf("status=%q want succeeded", st)
	}
	if w.RunOnce(ctx, 1) {
		t.Fatalf("queue should be empty")
	}
}

func TestRunOnceRecordsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler runtime.Handler
		jobType string
	}{
		{"error", funcHandler{typ: "boom", run: func(*runtime.Context) error { return errors.New("boom") }}, "boom"},
		{"panic", funcHandler{typ: "panics", run: func(*runtime.Context) error { panic("oops") }}, "panics"},
		{"unregistered", funcHandler{typ: "other", run: func(*runtime.Context) error { return nil }}, "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, repo, jobs := setup(t, tt.handler)
			ctx := context.Background()
			job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, uuid.New(), tt.jobType, "", nil, nil)
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			if !w.RunOnce(ctx, 1) {
				t.Fatalf("expected a job to be claimed")
			}
			if st := load(t, repo, job.ID); st != domainjobs.StatusFailed {
				t.Fatalf("status=%q want failed", st)
			}
			// The retry delay keeps the failed run parked.
			if w.RunOnce(ctx, 1) {
				t.Fatalf("failed job was reclaimed before its retry delay")
			}
		})
	}
}

func TestHandlerMayFinishItself(t *testing.T) {
	w, repo, jobs := setup(t, funcHandler{typ: "skip", run: func(jc *runtime.Context) error {
		jc.Succeed("skipped", map[string]any{"reason": "nothing to do"})
		return nil
	}})
	ctx := context.Background()
	job, err := jobs.Enqueue(dbctx.Context{Ctx: ctx}, uuid.New(), "skip", "", nil, nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w.RunOnce(ctx, 1)

	rows, err := repo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{job.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load: %v", err)
	}
	if rows[0].Status != domainjobs.StatusSucceeded || rows[0].Stage != "skipped" {
		t.Fatalf("status=%q stage=%q", rows[0].Status, rows[0].Stage)
	}
}

func TestConfigNormalized(t *testing.T) {
	c := Config{StaleRunning: 90 * time.Second, Heartbeat: 5 * time.Minute}.normalized()
	if c.Concurrency != 1 || c.MaxAttempts != 1 || c.PollInterval != time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Heartbeat != 30*time.Second {
		t.Fatalf("heartbeat=%v want 30s", c.Heartbeat)
	}
}
