package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/academic"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const defaultSubjectColor = "#4f46e5"

type SubjectInput struct {
	Name      string               `json:"name"`
	Color     string               `json:"color"`
	Professor string               `json:"professor"`
	Room      string               `json:"room"`
	Schedule  []types.ScheduleSlot `json:"schedule"`
}

type SubjectPatch struct {
	Name      *string               `json:"name"`
	Color     *string               `json:"color"`
	Professor *string               `json:"professor"`
	Room      *string               `json:"room"`
	Schedule  *[]types.ScheduleSlot `json:"schedule"`
}

type SubjectService interface {
	Create(ctx context.Context, in SubjectInput) (*types.Subject, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Subject, error)
	List(ctx context.Context) ([]*types.Subject, error)
	Update(ctx context.Context, id uuid.UUID, in SubjectPatch) (*types.Subject, error)
	// Delete removes the subject with its assessments and detaches tasks and notes.
	Delete(ctx context.Context, id uuid.UUID) error
}

type subjectService struct {
	db           *gorm.DB
	log          *logger.Logger
	subjects     repos.SubjectRepo
	assessments  repos.AssessmentRepo
	tasks        repos.TaskRepo
	notes        repos.NoteRepo
	gamification GamificationService
}

func NewSubjectService(
	db *gorm.DB,
	baseLog *logger.Logger,
	subjects repos.SubjectRepo,
	assessments repos.AssessmentRepo,
	tasks repos.TaskRepo,
	notes repos.NoteRepo,
	gamification GamificationService,
) SubjectService {
	return &subjectService{
		db:           db,
		log:          baseLog.With("service", "SubjectService"),
		subjects:     subjects,
		assessments:  assessments,
		tasks:        tasks,
		notes:        notes,
		gamification: gamification,
	}
}

func validateSchedule(slots []types.ScheduleSlot) error {
	if len(slots) > 21 {
		return apierr.BadRequest("invalid_schedule", "at most 21 schedule slots")
	}
	for i, slot := range slots {
		if err := slot.Validate(); err != nil {
			return apierr.BadRequest("invalid_schedule", fmt.Sprintf("schedule[%d]: %v", i, err))
		}
	}
	return nil
}

func validateColor(color string) error {
	if !academic.IsHexColor(color) {
		return apierr.BadRequest("invalid_color", "color must be #RRGGBB")
	}
	return nil
}

func (s *subjectService) Create(ctx context.Context, in SubjectInput) (*types.Subject, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	subj := &types.Subject{
		UserID:    userID,
		Name:      clean(in.Name),
		Color:     clean(in.Color),
		Professor: clean(in.Professor),
		Room:      clean(in.Room),
		Schedule:  datatypes.JSONSlice[types.ScheduleSlot](in.Schedule),
	}
	if subj.Color == "" {
		subj.Color = defaultSubjectColor
	}
	if err := requireLength("name", subj.Name, 1, 120); err != nil {
		return nil, err
	}
	if err := validateColor(subj.Color); err != nil {
		return nil, err
	}
	if err := requireLength("professor", subj.Professor, 0, 120); err != nil {
		return nil, err
	}
	if err := requireLength("room", subj.Room, 0, 60); err != nil {
		return nil, err
	}
	if err := validateSchedule(in.Schedule); err != nil {
		return nil, err
	}
	if subj.Schedule == nil {
		subj.Schedule = datatypes.JSONSlice[types.ScheduleSlot]{}
	}

	var award *AwardResult
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if _, err := s.subjects.Create(inner, []*types.Subject{subj}); err != nil {
			return fmt.Errorf("create subject: %w", err)
		}
		award, err = s.gamification.Evaluate(inner, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.gamification.Publish(ctx, award)
	return subj, nil
}

func (s *subjectService) Get(ctx context.Context, id uuid.UUID) (*types.Subject, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	subj, err := s.subjects.GetForUser(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return nil, notFound(err, "subject_not_found", "subject not found")
	}
	return subj, nil
}

func (s *subjectService) List(ctx context.Context) ([]*types.Subject, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.subjects.ListForUser(dbctx.Context{Ctx: ctx}, userID)
}

func (s *subjectService) Update(ctx context.Context, id uuid.UUID, in SubjectPatch) (*types.Subject, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := clean(*in.Name)
		if err := requireLength("name", name, 1, 120); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Color != nil {
		color := clean(*in.Color)
		if err := validateColor(color); err != nil {
			return nil, err
		}
		updates["color"] = color
	}
	if in.Professor != nil {
		v := clean(*in.Professor)
		if err := requireLength("professor", v, 0, 120); err != nil {
			return nil, err
		}
		updates["professor"] = v
	}
	if in.Room != nil {
		v := clean(*in.Room)
		if err := requireLength("room", v, 0, 60); err != nil {
			return nil, err
		}
		updates["room"] = v
	}
	if in.Schedule != nil {
		if err := validateSchedule(*in.Schedule); err != nil {
			return nil, err
		}
		slots := *in.Schedule
		if slots == nil {
			slots = []types.ScheduleSlot{}
		}
		updates["schedule"] = datatypes.JSONSlice[types.ScheduleSlot](slots)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if len(updates) > 0 {
		if err := s.subjects.UpdateFields(dbc, userID, id, updates); err != nil {
			return nil, notFound(err, "subject_not_found", "subject not found")
		}
	}
	subj, err := s.subjects.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, notFound(err, "subject_not_found", "subject not found")
	}
	return subj, nil
}

func (s *subjectService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	return inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if _, err := s.subjects.GetForUser(inner, userID, id); err != nil {
			return notFound(err, "subject_not_found", "subject not found")
		}
		if err := s.assessments.DeleteBySubject(inner, userID, id); err != nil {
			return fmt.Errorf("delete subject assessments: %w", err)
		}
		if err := s.tasks.DetachSubject(inner, userID, id); err != nil {
			return fmt.Errorf("detach subject tasks: %w", err)
		}
		if err := s.notes.DetachSubject(inner, userID, id); err != nil {
			return fmt.Errorf("detach subject notes: %w", err)
		}
		if err := s.subjects.Delete(inner, userID, id); err != nil {
			return notFound(err, "subject_not_found", "subject not found")
		}
		return nil
	})
}
