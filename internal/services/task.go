package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/academic"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type TaskInput struct {
	SubjectID   *uuid.UUID `json:"subject_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

type TaskPatch struct {
	SubjectID    *uuid.UUID `json:"subject_id"`
	ClearSubject bool       `json:"clear_subject"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

type TaskQuery struct {
	Completed *bool
	SubjectID *uuid.UUID
	Priority  string
}

// TaskCompletion is the result of completing a task. Award is nil when the task was
// already complete or XP was granted for it before.
type TaskCompletion struct {
	Task  *types.Task  `json:"task"`
	Award *AwardResult `json:"award,omitempty"`
}

type TaskService interface {
	Create(ctx context.Context, in TaskInput) (*types.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Task, error)
	List(ctx context.Context, q TaskQuery) ([]*types.Task, error)
	Update(ctx context.Context, id uuid.UUID, in TaskPatch) (*types.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) (*TaskCompletion, error)
	Reopen(ctx context.Context, id uuid.UUID) (*types.Task, error)
}

type taskService struct {
	db           *gorm.DB
	log          *logger.Logger
	tasks        repos.TaskRepo
	subjects     repos.SubjectRepo
	activities   repos.ActivityRepo
	gamification GamificationService
	calendar     CalendarService
	now          Clock
}

func NewTaskService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tasks repos.TaskRepo,
	subjects repos.SubjectRepo,
	activities repos.ActivityRepo,
	gamification GamificationService,
	calendar CalendarService,
	now Clock,
) TaskService {
	return &taskService{
		db:           db,
		log:          baseLog.With("service", "TaskService"),
		tasks:        tasks,
		subjects:     subjects,
		activities:   activities,
		gamification: gamification,
		calendar:     calendar,
		now:          orClock(now),
	}
}

func validatePriority(p string) error {
	if !academic.IsPriority(p) {
		return apierr.BadRequest("invalid_priority", "priority must be low, medium or high")
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, in TaskInput) (*types.Task, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	t := &types.Task{
		UserID:      userID,
		Title:       clean(in.Title),
		Description: clean(in.Description),
		Priority:    clean(in.Priority),
	}
	if t.Priority == "" {
		t.Priority = academic.PriorityMedium
	}
	if err := requireLength("title", t.Title, 1, 160); err != nil {
		return nil, err
	}
	if err := requireLength("description", t.Description, 0, 2000); err != nil {
		return nil, err
	}
	if err := validatePriority(t.Priority); err != nil {
		return nil, err
	}
	if in.DueDate != nil && !in.DueDate.IsZero() {
		due := in.DueDate.UTC()
		t.DueDate = &due
	}

	dbc := dbctx.Context{Ctx: ctx}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if in.SubjectID != nil && *in.SubjectID != uuid.Nil {
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			t.SubjectID = in.SubjectID
		}
		if _, err := s.tasks.Create(inner, []*types.Task{t}); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if t.DueDate != nil {
		syncCalendar(s.log, s.calendar, dbc, userID)
	}
	return t, nil
}

func (s *taskService) Get(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.tasks.GetForUser(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return nil, notFound(err, "task_not_found", "task not found")
	}
	return t, nil
}

func (s *taskService) List(ctx context.Context, q TaskQuery) ([]*types.Task, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	f := repos.TaskFilter{Completed: q.Completed, SubjectID: q.SubjectID}
	if q.Priority != "" {
		if err := validatePriority(q.Priority); err != nil {
			return nil, err
		}
		f.Priority = q.Priority
	}
	return s.tasks.ListForUser(dbctx.Context{Ctx: ctx}, userID, f)
}

func (s *taskService) Update(ctx context.Context, id uuid.UUID, in TaskPatch) (*types.Task, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		v := clean(*in.Title)
		if err := requireLength("title", v, 1, 160); err != nil {
			return nil, err
		}
		updates["title"] = v
	}
	if in.Description != nil {
		v := clean(*in.Description)
		if err := requireLength("description", v, 0, 2000); err != nil {
			return nil, err
		}
		updates["description"] = v
	}
	if in.Priority != nil {
		v := clean(*in.Priority)
		if err := validatePriority(v); err != nil {
			return nil, err
		}
		updates["priority"] = v
	}
	switch {
	case in.ClearDueDate:
		updates["due_date"] = nil
	case in.DueDate != nil && !in.DueDate.IsZero():
		updates["due_date"] = in.DueDate.UTC()
	}

	dbc := dbctx.Context{Ctx: ctx}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := s.tasks.GetForUser(inner, userID, id); err != nil {
			return notFound(err, "task_not_found", "task not found")
		}
		switch {
		case in.ClearSubject:
			updates["subject_id"] = nil
		case in.SubjectID != nil:
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			updates["subject_id"] = *in.SubjectID
		}
		if len(updates) == 0 {
			return nil
		}
		return notFound(s.tasks.UpdateFields(inner, userID, id, updates), "task_not_found", "task not found")
	})
	if err != nil {
		return nil, err
	}
	t, err := s.tasks.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, notFound(err, "task_not_found", "task not found")
	}
	if len(updates) > 0 && (t.DueDate != nil || in.ClearDueDate) {
		syncCalendar(s.log, s.calendar, dbc, userID)
	}
	return t, nil
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(dbctx.Context{Ctx: ctx}, userID, id); err != nil {
		return notFound(err, "task_not_found", "task not found")
	}
	return nil
}

func (s *taskService) Complete(ctx context.Context, id uuid.UUID) (*TaskCompletion, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	out := &TaskCompletion{}
	dbc := dbctx.Context{Ctx: ctx}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		t, err := s.tasks.GetForUser(inner, userID, id)
		if err != nil {
			return notFound(err, "task_not_found", "task not found")
		}
		now := s.now()
		changed, err := s.tasks.SetCompleted(inner, userID, id, true, now)
		if err != nil {
			return notFound(err, "task_not_found", "task not found")
		}
		t.Completed = true
		if changed {
			t.CompletedAt = &now
		}
		out.Task = t
		if !changed {
			return nil
		}
		// Completing, reopening and completing again only pays out once.
		out.Award, err = s.gamification.AwardOnce(inner, userID, domaingam.ReasonTaskCompleted, t.ID)
		if err != nil || out.Award == nil {
			return err
		}
		activity := &types.Activity{
			UserID:     userID,
			Type:       social.ActivityTaskCompleted,
			Visibility: social.VisibilityPublic,
			Content:    "Completed " + t.Title,
			SubjectID:  t.SubjectID,
			CreatedAt:  now,
		}
		if t.SubjectID != nil {
			if subj, err := s.subjects.GetForUser(inner, userID, *t.SubjectID); err == nil {
				activity.SubjectName = subj.Name
			}
		}
		if _, err := s.activities.Create(inner, []*types.Activity{activity}); err != nil {
			return fmt.Errorf("record task activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.gamification.Publish(ctx, out.Award)
	if out.Task.DueDate != nil {
		syncCalendar(s.log, s.calendar, dbc, userID)
	}
	return out, nil
}

func (s *taskService) Reopen(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.tasks.SetCompleted(dbc, userID, id, false, s.now()); err != nil {
		return nil, notFound(err, "task_not_found", "task not found")
	}
	t, err := s.tasks.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, notFound(err, "task_not_found", "task not found")
	}
	if t.DueDate != nil {
		syncCalendar(s.log, s.calendar, dbc, userID)
	}
	return t, nil
}
