package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
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

type AssessmentInput struct {
	SubjectID   uuid.UUID `json:"subject_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Weight      float64   `json:"weight"`
	Grade       *float64  `json:"grade"`
}

type AssessmentPatch struct {
	SubjectID   *uuid.UUID `json:"subject_id"`
	Type        *string    `json:"type"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Weight      *float64   `json:"weight"`
	Grade       *float64   `json:"grade"`
	ClearGrade  bool       `json:"clear_grade"`
}

type AssessmentQuery struct {
	SubjectID *uuid.UUID
	Type      string
	Upcoming  bool
}

type AssessmentService interface {
	Create(ctx context.Context, in AssessmentInput) (*types.Assessment, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Assessment, error)
	List(ctx context.Context, q AssessmentQuery) ([]*types.Assessment, error)
	Update(ctx context.Context, id uuid.UUID, in AssessmentPatch) (*types.Assessment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type assessmentService struct {
	db           *gorm.DB
	log          *logger.Logger
	assessments  repos.AssessmentRepo
	subjects     repos.SubjectRepo
	activities   repos.ActivityRepo
	gamification GamificationService
	calendar     CalendarService
	now          Clock
}

func NewAssessmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assessments repos.AssessmentRepo,
	subjects repos.SubjectRepo,
	activities repos.ActivityRepo,
	gamification GamificationService,
	calendar CalendarService,
	now Clock,
) AssessmentService {
	return &assessmentService{
		db:           db,
		log:          baseLog.With("service", "AssessmentService"),
		assessments:  assessments,
		subjects:     subjects,
		activities:   activities,
		gamification: gamification,
		calendar:     calendar,
		now:          orClock(now),
	}
}

func validateScore(field string, v float64) error {
	if v < 0 || v > 100 {
		return apierr.BadRequest("invalid_"+field, field+" must be between 0 and 100")
	}
	return nil
}

// syncCalendar queues a calendar push for the user when a link exists. Failing to
// queue never fails the write that triggered it.
func syncCalendar(log *logger.Logger, cal CalendarService, dbc dbctx.Context, userID uuid.UUID) {
	if cal == nil {
		return
	}
	if err := cal.SyncLater(dbc, userID); err != nil {
		log.Warn("Failed to queue calendar sync", "user_id", userID, "error", err)
	}
}

func (s *assessmentService) Create(ctx context.Context, in AssessmentInput) (*types.Assessment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	a := &types.Assessment{
		UserID:      userID,
		SubjectID:   in.SubjectID,
		Type:        clean(in.Type),
		Title:       clean(in.Title),
		Description: clean(in.Description),
		DueDate:     in.DueDate.UTC(),
		Weight:      in.Weight,
		Grade:       in.Grade,
	}
	if a.SubjectID == uuid.Nil {
		return nil, apierr.BadRequest("invalid_subject_id", "subject_id is required")
	}
	if !academic.IsAssessmentType(a.Type) {
		return nil, apierr.BadRequest("invalid_type", "type must be exam, assignment or presentation")
	}
	if err := requireLength("title", a.Title, 1, 160); err != nil {
		return nil, err
	}
	if err := requireLength("description", a.Description, 0, 2000); err != nil {
		return nil, err
	}
	if in.DueDate.IsZero() {
		return nil, apierr.BadRequest("invalid_due_date", "due_date is required")
	}
	if err := validateScore("weight", a.Weight); err != nil {
		return nil, err
	}
	if a.Grade != nil {
		if err := validateScore("grade", *a.Grade); err != nil {
			return nil, err
		}
	}

	var award *AwardResult
	dbc := dbctx.Context{Ctx: ctx}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		subj, err := s.subjects.GetForUser(inner, userID, a.SubjectID)
		if err != nil {
			return notFound(err, "subject_not_found", "subject not found")
		}
		if _, err := s.assessments.Create(inner, []*types.Assessment{a}); err != nil {
			return fmt.Errorf("create assessment: %w", err)
		}
		a.Subject = subj
		activity := &types.Activity{
			UserID:       userID,
			Type:         social.ActivityAssessmentCreated,
			Visibility:   social.VisibilityPrivate,
			Content:      fmt.Sprintf("Scheduled %s: %s", a.Type, a.Title),
			SubjectID:    &subj.ID,
			SubjectName:  subj.Name,
			AssessmentID: &a.ID,
			Metadata:     datatypes.JSONMap{"due_date": a.DueDate.Format(time.RFC3339)},
			CreatedAt:    s.now(),
		}
		if _, err := s.activities.Create(inner, []*types.Activity{activity}); err != nil {
			return fmt.Errorf("record assessment activity: %w", err)
		}
		award, err = s.gamification.Award(inner, userID, domaingam.ReasonAssessmentCreated, &a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.gamification.Publish(ctx, award)
	syncCalendar(s.log, s.calendar, dbc, userID)
	return a, nil
}

func (s *assessmentService) Get(ctx context.Context, id uuid.UUID) (*types.Assessment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.assessments.GetForUser(dbctx.Context{Ctx: ctx}, userID, id)
	if err != nil {
		return nil, notFound(err, "assessment_not_found", "assessment not found")
	}
	return a, nil
}

func (s *assessmentService) List(ctx context.Context, q AssessmentQuery) ([]*types.Assessment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	f := repos.AssessmentFilter{SubjectID: q.SubjectID}
	if q.Type != "" {
		if !academic.IsAssessmentType(q.Type) {
			return nil, apierr.BadRequest("invalid_type", "type must be exam, assignment or presentation")
		}
		f.Type = q.Type
	}
	if q.Upcoming {
		now := s.now()
		f.From = &now
	}
	return s.assessments.ListForUser(dbctx.Context{Ctx: ctx}, userID, f)
}

func (s *assessmentService) Update(ctx context.Context, id uuid.UUID, in AssessmentPatch) (*types.Assessment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Type != nil {
		t := clean(*in.Type)
		if !academic.IsAssessmentType(t) {
			return nil, apierr.BadRequest("invalid_type", "type must be exam, assignment or presentation")
		}
		updates["type"] = t
	}
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
	if in.DueDate != nil {
		if in.DueDate.IsZero() {
			return nil, apierr.BadRequest("invalid_due_date", "due_date is required")
		}
		updates["due_date"] = in.DueDate.UTC()
		// A moved deadline gets a fresh reminder.
		updates["reminder_sent_at"] = nil
	}
	if in.Weight != nil {
		if err := validateScore("weight", *in.Weight); err != nil {
			return nil, err
		}
		updates["weight"] = *in.Weight
	}
	switch {
	case in.ClearGrade:
		updates["grade"] = nil
	case in.Grade != nil:
		if err := validateScore("grade", *in.Grade); err != nil {
			return nil, err
		}
		updates["grade"] = *in.Grade
	}

	dbc := dbctx.Context{Ctx: ctx}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		if _, err := s.assessments.GetForUser(inner, userID, id); err != nil {
			return notFound(err, "assessment_not_found", "assessment not found")
		}
		if in.SubjectID != nil {
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			updates["subject_id"] = *in.SubjectID
		}
		if len(updates) == 0 {
			return nil
		}
		return notFound(s.assessments.UpdateFields(inner, userID, id, updates), "assessment_not_found", "assessment not found")
	})
	if err != nil {
		return nil, err
	}
	a, err := s.assessments.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, notFound(err, "assessment_not_found", "assessment not found")
	}
	if len(updates) > 0 {
		syncCalendar(s.log, s.calendar, dbc, userID)
	}
	return a, nil
}

func (s *assessmentService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.assessments.Delete(dbctx.Context{Ctx: ctx}, userID, id); err != nil {
		return notFound(err, "assessment_not_found", "assessment not found")
	}
	return nil
}
