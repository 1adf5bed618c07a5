package academic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

func TestSubjectRepoOwnership(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubjectRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, ctx, tx, "owner@example.com")
	other := testutil.SeedUser(t, ctx, tx, "other@example.com")

	created, err := repo.Create(dbc, []*types.Subject{{
		UserID:   owner.ID,
		Name:     "Calculus",
		Color:    "#112233",
		Schedule: []types.ScheduleSlot{{Weekday: 1, Start: "08:00", End: "10:00"}},
	}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := created[0]

	got, err := repo.GetForUser(dbc, owner.ID, s.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if len(got.Schedule) != 1 || got.Schedule[0].Start != "08:00" {
		t.Fatalf("schedule not round-tripped: %+v", got.Schedule)
	}

	if _, err := repo.GetForUser(dbc, other.ID, s.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetForUser(foreign): expected ErrRecordNotFound, got %v", err)
	}
	if err := repo.UpdateFields(dbc, other.ID, s.ID, map[string]interface{}{"name": "x"}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("UpdateFields(foreign): expected ErrRecordNotFound, got %v", err)
	}
	if err := repo.Delete(dbc, other.ID, s.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Delete(foreign): expected ErrRecordNotFound, got %v", err)
	}

	if err := repo.UpdateFields(dbc, owner.ID, s.ID, map[string]interface{}{"name": "Calculus II"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if n, err := repo.CountForUser(dbc, owner.ID); err != nil || n != 1 {
		t.Fatalf("CountForUser: n=%d err=%v", n, err)
	}
	if err := repo.Delete(dbc, owner.ID, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rows, err := repo.ListForUser(dbc, owner.ID); err != nil || len(rows) != 0 {
		t.Fatalf("ListForUser after delete: err=%v len=%d", err, len(rows))
	}
}

func TestTaskRepoSetCompletedIsEdgeTriggered(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "tasks@example.com")
	task := testutil.SeedTask(t, ctx, tx, u.ID, "read chapter 3")

	now := time.Now().UTC()
	changed, err := repo.SetCompleted(dbc, u.ID, task.ID, true, now)
	if err != nil || !changed {
		t.Fatalf("SetCompleted(first): changed=%v err=%v", changed, err)
	}
	changed, err = repo.SetCompleted(dbc, u.ID, task.ID, true, now)
	if err != nil || changed {
		t.Fatalf("SetCompleted(second): expected no change, changed=%v err=%v", changed, err)
	}
	if n, err := repo.CountCompleted(dbc, u.ID); err != nil || n != 1 {
		t.Fatalf("CountCompleted: n=%d err=%v", n, err)
	}

	done := true
	rows, err := repo.ListForUser(dbc, u.ID, TaskFilter{Completed: &done})
	if err != nil || len(rows) != 1 || rows[0].CompletedAt == nil {
		t.Fatalf("ListForUser(completed): err=%v rows=%+v", err, rows)
	}

	changed, err = repo.SetCompleted(dbc, u.ID, task.ID, false, now)
	if err != nil || !changed {
		t.Fatalf("SetCompleted(reopen): changed=%v err=%v", changed, err)
	}
	got, err := repo.GetForUser(dbc, u.ID, task.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Completed || got.CompletedAt != nil {
		t.Fatalf("reopen did not clear completion: %+v", got)
	}

	if _, err := repo.SetCompleted(dbc, uuid.New(), task.ID, true, now); err != nil {
		t.Fatalf("SetCompleted(foreign) should not error: %v", err)
	}
}

func TestAssessmentRepoReminderWindow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAssessmentRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "assess@example.com")
	subj := testutil.SeedSubject(t, ctx, tx, u.ID, "Physics")

	now := time.Now().UTC()
	soon := &types.Assessment{UserID: u.ID, SubjectID: subj.ID, Type: "exam", Title: "Midterm", DueDate: now.Add(12 * time.Hour)}
	later := &types.Assessment{UserID: u.ID, SubjectID: subj.ID, Type: "assignment", Title: "Lab", DueDate: now.Add(72 * time.Hour)}
	if _, err := repo.Create(dbc, []*types.Assessment{soon, later}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	due, err := repo.ListDueForReminder(dbc, now, now.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListDueForReminder: %v", err)
	}
	if len(due) != 1 || due[0].ID != soon.ID {
		t.Fatalf("ListDueForReminder: unexpected rows %+v", due)
	}
	if due[0].Subject == nil || due[0].Subject.Name != "Physics" {
		t.Fatalf("expected subject preloaded, got %+v", due[0].Subject)
	}

	ok, err := repo.MarkReminderSent(dbc, soon.ID, now)
	if err != nil || !ok {
		t.Fatalf("MarkReminderSent: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkReminderSent(dbc, soon.ID, now)
	if err != nil || ok {
		t.Fatalf("MarkReminderSent(again): ok=%v err=%v", ok, err)
	}

	rows, err := repo.ListForUser(dbc, u.ID, AssessmentFilter{Type: "assignment"})
	if err != nil || len(rows) != 1 || rows[0].ID != later.ID {
		t.Fatalf("ListForUser(type): err=%v rows=%+v", err, rows)
	}
}
