package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/modules/gamification"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/gcp"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const maxAvatarBytes = 5 << 20

type UpdateProfileInput struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Bio            *string `json:"bio"`
	Course         *string `json:"course"`
	University     *string `json:"university"`
	PreferredTheme *string `json:"preferred_theme"`
}

type ProfileView struct {
	User           types.PublicProfile `json:"user"`
	Level          int                 `json:"level"`
	XPTotal        int64               `json:"xp_total"`
	Streak         int                 `json:"streak"`
	Followers      int64               `json:"followers"`
	Following      int64               `json:"following"`
	IsFollowing    bool                `json:"is_following"`
	IsSelf         bool                `json:"is_self"`
	RecentActivity []*types.Activity   `json:"recent_activity"`
}

type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	UpdateMe(ctx context.Context, in UpdateProfileInput) (*types.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*ProfileView, error)
	Search(ctx context.Context, query string, limit int) ([]types.PublicProfile, error)
	UploadAvatar(ctx context.Context, in AvatarUpload) (*types.User, error)
}

type userService struct {
	db         *gorm.DB
	log        *logger.Logger
	users      repos.UserRepo
	follows    repos.FollowRepo
	stats      repos.UserStatsRepo
	activities repos.ActivityRepo
	bucket     gcp.BucketService
}

func NewUserService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	follows repos.FollowRepo,
	stats repos.UserStatsRepo,
	activities repos.ActivityRepo,
	bucket gcp.BucketService,
) UserService {
	return &userService{
		db:         db,
		log:        baseLog.With("service", "UserService"),
		users:      users,
		follows:    follows,
		stats:      stats,
		activities: activities,
		bucket:     bucket,
	}
}

func (us *userService) load(ctx context.Context, id uuid.UUID) (*types.User, error) {
	found, err := us.users.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.NotFound("user_not_found", "user not found")
	}
	return found[0], nil
}

func (us *userService) GetMe(ctx context.Context) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	return us.load(ctx, userID)
}

func (us *userService) UpdateMe(ctx context.Context, in UpdateProfileInput) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	set := func(column, field string, v *string, min, max int) error {
		if v == nil {
			return nil
		}
		val := clean(*v)
		if err := requireLength(field, val, min, max); err != nil {
			return err
		}
		updates[column] = val
		return nil
	}
	for _, f := range []struct {
		column string
		value  *string
		min    int
		max    int
	}{
		{"first_name", in.FirstName, 1, 80},
		{"last_name", in.LastName, 0, 80},
		{"bio", in.Bio, 0, 500},
		{"course", in.Course, 0, 120},
		{"university", in.University, 0, 120},
		{"preferred_theme", in.PreferredTheme, 0, 20},
	} {
		if err := set(f.column, f.column, f.value, f.min, f.max); err != nil {
			return nil, err
		}
	}
	if len(updates) > 0 {
		if err := us.users.UpdateFields(dbctx.Context{Ctx: ctx}, userID, updates); err != nil {
			return nil, notFound(err, "user_not_found", "user not found")
		}
	}
	return us.load(ctx, userID)
}

func (us *userService) GetProfile(ctx context.Context, id uuid.UUID) (*ProfileView, error) {
	viewerID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := us.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &ProfileView{User: u.Public(), IsSelf: viewerID == id, Level: 1}
	err = runQueries(dbctx.Context{Ctx: ctx}, []func(dbctx.Context) error{
		func(d dbctx.Context) (err error) { view.Followers, err = us.follows.CountFollowers(d, id); return },
		func(d dbctx.Context) (err error) { view.Following, err = us.follows.CountFollowing(d, id); return },
		func(d dbctx.Context) (err error) {
			if view.IsSelf {
				return nil
			}
			view.IsFollowing, err = us.follows.IsFollowing(d, viewerID, id)
			return
		},
		func(d dbctx.Context) error {
			rows, err := us.stats.GetByUserIDs(d, []uuid.UUID{id})
			if err != nil || len(rows) == 0 {
				return err
			}
			view.XPTotal = rows[0].XPTotal
			view.Level = gamification.LevelFor(rows[0].XPTotal)
			view.Streak = rows[0].CurrentStreak
			return nil
		},
		func(d dbctx.Context) (err error) {
			view.RecentActivity, err = us.activities.ListByUser(d, id, view.IsSelf, 0, 10)
			return
		},
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (us *userService) Search(ctx context.Context, query string, limit int) ([]types.PublicProfile, error) {
	if _, err := requestUserID(ctx); err != nil {
		return nil, err
	}
	query = clean(query)
	if query == "" {
		return []types.PublicProfile{}, nil
	}
	rows, err := us.users.Search(dbctx.Context{Ctx: ctx}, query, clampLimit(limit, 20, 50))
	if err != nil {
		return nil, err
	}
	out := make([]types.PublicProfile, 0, len(rows))
	for _, u := range rows {
		out = append(out, u.Public())
	}
	return out, nil
}

func (us *userService) UploadAvatar(ctx context.Context, in AvatarUpload) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if us.bucket == nil || !us.bucket.Enabled() {
		return nil, apierr.Unavailable("storage_disabled", "file uploads are not configured")
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if contentType == "" {
		contentType = gcp.ContentTypeForKey(in.Filename)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apierr.BadRequest("invalid_avatar", "avatar must be an image")
	}
	if in.Size > maxAvatarBytes {
		return nil, apierr.BadRequest("avatar_too_large", "avatar must be at most 5 MB")
	}
	current, err := us.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := gcp.ObjectKey(userID, in.Filename)
	if _, err := us.bucket.UploadFile(ctx, gcp.BucketCategoryAvatar, key, contentType, io.LimitReader(in.Body, maxAvatarBytes+1)); err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	url := us.bucket.GetPublicURL(gcp.BucketCategoryAvatar, key)
	if err := us.users.UpdateAvatarFields(dbctx.Context{Ctx: ctx}, userID, key, url); err != nil {
		_ = us.bucket.DeleteFile(ctx, gcp.BucketCategoryAvatar, key)
		return nil, err
	}
	if old := current.AvatarBucketKey; old != "" && old != key {
		if err := us.bucket.DeleteFile(ctx, gcp.BucketCategoryAvatar, old); err != nil && !errors.Is(err, gcp.ErrStorageDisabled) {
			us.log.Warn("Failed to delete previous avatar", "key", old, "error", err)
		}
	}
	current.AvatarBucketKey = key
	current.AvatarURL = url
	return current, nil
}
