package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type NoteInput struct {
	SubjectID *uuid.UUID `json:"subject_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Shared    bool       `json:"shared"`
}

type NotePatch struct {
	SubjectID    *uuid.UUID `json:"subject_id"`
	ClearSubject bool       `json:"clear_subject"`
	Title        *string    `json:"title"`
	Content      *string    `json:"content"`
	Shared       *bool      `json:"shared"`
}

type NoteService interface {
	Create(ctx context.Context, in NoteInput) (*types.Note, error)
	// Get returns the caller's note, or another user's note when it is shared.
	Get(ctx context.Context, id uuid.UUID) (*types.Note, error)
	List(ctx context.Context, subjectID *uuid.UUID, query string) ([]*types.Note, error)
	Update(ctx context.Context, id uuid.UUID, in NotePatch) (*types.Note, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type noteService struct {
	db           *gorm.DB
	log          *logger.Logger
	notes        repos.NoteRepo
	subjects     repos.SubjectRepo
	activities   repos.ActivityRepo
	gamification GamificationService
	now          Clock
}

func NewNoteService(
	db *gorm.DB,
	baseLog *logger.Logger,
	notes repos.NoteRepo,
	subjects repos.SubjectRepo,
	activities repos.ActivityRepo,
	gamification GamificationService,
	now Clock,
) NoteService {
	return &noteService{
		db:           db,
		log:          baseLog.With("service", "NoteService"),
		notes:        notes,
		subjects:     subjects,
		activities:   activities,
		gamification: gamification,
		now:          orClock(now),
	}
}

// shareActivity announces a note that became shared.
func (s *noteService) shareActivity(dbc dbctx.Context, n *types.Note) error {
	a := &types.Activity{
		UserID:     n.UserID,
		Type:       social.ActivityNoteShared,
		Visibility: social.VisibilityPublic,
		Content:    "Shared the note " + n.Title,
		SubjectID:  n.SubjectID,
		NoteID:     &n.ID,
		CreatedAt:  s.now(),
	}
	if n.SubjectID != nil {
		if subj, err := s.subjects.GetForUser(dbc, n.UserID, *n.SubjectID); err == nil {
			a.SubjectName = subj.Name
		}
	}
	if _, err := s.activities.Create(dbc, []*types.Activity{a}); err != nil {
		return fmt.Errorf("record note activity: %w", err)
	}
	return nil
}

func (s *noteService) Create(ctx context.Context, in NoteInput) (*types.Note, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	n := &types.Note{
		UserID:  userID,
		Title:   clean(in.Title),
		Content: in.Content,
		Shared:  in.Shared,
	}
	if err := requireLength("title", n.Title, 1, 160); err != nil {
		return nil, err
	}
	if err := requireLength("content", n.Content, 0, 20000); err != nil {
		return nil, err
	}

	var award *AwardResult
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if in.SubjectID != nil && *in.SubjectID != uuid.Nil {
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			n.SubjectID = in.SubjectID
		}
		if _, err := s.notes.Create(inner, []*types.Note{n}); err != nil {
			return fmt.Errorf("create note: %w", err)
		}
		if n.Shared {
			if err := s.shareActivity(inner, n); err != nil {
				return err
			}
		}
		award, err = s.gamification.Award(inner, userID, domaingam.ReasonNoteCreated, &n.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.gamification.Publish(ctx, award)
	return n, nil
}

func (s *noteService) Get(ctx context.Context, id uuid.UUID) (*types.Note, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	n, err := s.notes.GetForUser(dbc, userID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		n, err = s.notes.GetShared(dbc, id)
	}
	if err != nil {
		return nil, notFound(err, "note_not_found", "note not found")
	}
	return n, nil
}

func (s *noteService) List(ctx context.Context, subjectID *uuid.UUID, query string) ([]*types.Note, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.notes.ListForUser(dbctx.Context{Ctx: ctx}, userID, repos.NoteFilter{SubjectID: subjectID, Query: query})
}

func (s *noteService) Update(ctx context.Context, id uuid.UUID, in NotePatch) (*types.Note, error) {
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
	if in.Content != nil {
		if err := requireLength("content", *in.Content, 0, 20000); err != nil {
			return nil, err
		}
		updates["content"] = *in.Content
	}
	if in.Shared != nil {
		updates["shared"] = *in.Shared
	}

	var out *types.Note
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		before, err := s.notes.GetForUser(inner, userID, id)
		if err != nil {
			return notFound(err, "note_not_found", "note not found")
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
		if len(updates) > 0 {
			if err := s.notes.UpdateFields(inner, userID, id, updates); err != nil {
				return notFound(err, "note_not_found", "note not found")
			}
		}
		out, err = s.notes.GetForUser(inner, userID, id)
		if err != nil {
			return err
		}
		if !before.Shared && out.Shared {
			return s.shareActivity(inner, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *noteService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(dbctx.Context{Ctx: ctx}, userID, id); err != nil {
		return notFound(err, "note_not_found", "note not found")
	}
	return nil
}
