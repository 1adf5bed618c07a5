package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type CreatePostInput struct {
	Content    string     `json:"content"`
	SubjectID  *uuid.UUID `json:"subject_id"`
	Visibility string     `json:"visibility"`
}

type SocialService interface {
	Follow(ctx context.Context, targetID uuid.UUID) error
	Unfollow(ctx context.Context, targetID uuid.UUID) error
	Followers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.PublicProfile, error)
	Following(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.PublicProfile, error)

	CreatePost(ctx context.Context, in CreatePostInput) (*types.Activity, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
}

type socialService struct {
	db           *gorm.DB
	log          *logger.Logger
	users        repos.UserRepo
	follows      repos.FollowRepo
	activities   repos.ActivityRepo
	subjects     repos.SubjectRepo
	gamification GamificationService
	jobs         JobService
	now          Clock
}

func NewSocialService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	follows repos.FollowRepo,
	activities repos.ActivityRepo,
	subjects repos.SubjectRepo,
	gamification GamificationService,
	jobs JobService,
	now Clock,
) SocialService {
	return &socialService{
		db:           db,
		log:          baseLog.With("service", "SocialService"),
		users:        users,
		follows:      follows,
		activities:   activities,
		subjects:     subjects,
		gamification: gamification,
		jobs:         jobs,
		now:          orClock(now),
	}
}

func (s *socialService) requireUser(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	found, err := s.users.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apierr.NotFound("user_not_found", "user not found")
	}
	return found[0], nil
}

func (s *socialService) Follow(ctx context.Context, targetID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if targetID == userID {
		return apierr.BadRequest("invalid_follow", "you cannot follow yourself")
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.requireUser(dbc, targetID); err != nil {
		return err
	}
	return inTx(s.db, dbc, func(inner dbctx.Context) error {
		created, err := s.follows.Follow(inner, userID, targetID)
		if err != nil {
			return fmt.Errorf("follow: %w", err)
		}
		if !created || s.jobs == nil {
			return nil
		}
		// Follower-count achievements belong to the followee.
		_, _, err = s.jobs.EnqueueIfAbsent(inner, targetID, domainjobs.TypeAchievementEval, "user", &targetID, nil)
		return err
	})
}

func (s *socialService) Unfollow(ctx context.Context, targetID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	removed, err := s.follows.Unfollow(dbctx.Context{Ctx: ctx}, userID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return apierr.NotFound("follow_not_found", "you do not follow this user")
	}
	return nil
}

func (s *socialService) Followers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.PublicProfile, error) {
	if _, err := requestUserID(ctx); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.requireUser(dbc, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowerIDs(dbc, userID, max(offset, 0), clampLimit(limit, 20, 100))
	if err != nil {
		return nil, err
	}
	return profilesInOrder(dbc, s.users, ids)
}

func (s *socialService) Following(ctx context.Context, userID uuid.UUID, offset, limit int) ([]types.PublicProfile, error) {
	if _, err := requestUserID(ctx); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.requireUser(dbc, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FolloweeIDsPage(dbc, userID, max(offset, 0), clampLimit(limit, 20, 100))
	if err != nil {
		return nil, err
	}
	return profilesInOrder(dbc, s.users, ids)
}

func (s *socialService) CreatePost(ctx context.Context, in CreatePostInput) (*types.Activity, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	content := clean(in.Content)
	if err := requireLength("content", content, 1, 2000); err != nil {
		return nil, err
	}
	visibility := in.Visibility
	switch visibility {
	case "":
		visibility = social.VisibilityPublic
	case social.VisibilityPublic, social.VisibilityPrivate:
	default:
		return nil, apierr.BadRequest("invalid_visibility", "visibility must be public or private")
	}

	post := &types.Activity{
		UserID:     userID,
		Type:       social.ActivityPost,
		Visibility: visibility,
		Content:    content,
		CreatedAt:  s.now(),
	}
	var award *AwardResult
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if in.SubjectID != nil {
			subj, err := s.subjects.GetForUser(inner, userID, *in.SubjectID)
			if err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			post.SubjectID = &subj.ID
			post.SubjectName = subj.Name
		}
		if _, err := s.activities.Create(inner, []*types.Activity{post}); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		award, err = s.gamification.Award(inner, userID, domaingam.ReasonPostCreated, &post.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.gamification.Publish(ctx, award)
	return post, nil
}

func (s *socialService) DeletePost(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.activities.Delete(dbctx.Context{Ctx: ctx}, userID, id); err != nil {
		return notFound(err, "activity_not_found", "activity not found")
	}
	return nil
}

// profilesInOrder loads users by id and returns their public profiles in ids order,
// skipping ids that no longer resolve.
func profilesInOrder(dbc dbctx.Context, users repos.UserRepo, ids []uuid.UUID) ([]types.PublicProfile, error) {
	byID, err := usersByID(dbc, users, ids)
	if err != nil {
		return nil, err
	}
	out := make([]types.PublicProfile, 0, len(ids))
	for _, id := range ids {
		if u := byID[id]; u != nil {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func usersByID(dbc dbctx.Context, users repos.UserRepo, ids []uuid.UUID) (map[uuid.UUID]*types.User, error) {
	out := make(map[uuid.UUID]*types.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := users.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		out[u.ID] = u
	}
	return out, nil
}
