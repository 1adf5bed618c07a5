package social

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type FollowRepo interface {
	Follow(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error)
	Unfollow(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error)
	IsFollowing(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error)
	FolloweeIDs(dbc dbctx.Context, followerID uuid.UUID) ([]uuid.UUID, error)
	FollowerIDs(dbc dbctx.Context, followeeID uuid.UUID, offset, limit int) ([]uuid.UUID, error)
	FolloweeIDsPage(dbc dbctx.Context, followerID uuid.UUID, offset, limit int) ([]uuid.UUID, error)
	CountFollowers(dbc dbctx.Context, followeeID uuid.UUID) (int64, error)
	CountFollowing(dbc dbctx.Context, followerID uuid.UUID) (int64, error)
}

type followRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFollowRepo(db *gorm.DB, baseLog *logger.Logger) FollowRepo {
	return &followRepo{db: db, log: baseLog.With("repo", "FollowRepo")}
}

// Follow reports false when the edge already existed.
func (r *followRepo) Follow(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "followee_id"}},
			DoNothing: true,
		}).
		Create(&types.Follow{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepo) Unfollow(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&types.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepo) IsFollowing(dbc dbctx.Context, followerID, followeeID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *followRepo) FolloweeIDs(dbc dbctx.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("followee_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *followRepo) FollowerIDs(dbc dbctx.Context, followeeID uuid.UUID, offset, limit int) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("followee_id = ?", followeeID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Pluck("follower_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *followRepo) FolloweeIDsPage(dbc dbctx.Context, followerID uuid.UUID, offset, limit int) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("follower_id = ?", followerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Pluck("followee_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *followRepo) CountFollowers(dbc dbctx.Context, followeeID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("followee_id = ?", followeeID).
		Count(&n).Error
	return n, err
}

func (r *followRepo) CountFollowing(dbc dbctx.Context, followerID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Follow{}).
		Where("follower_id = ?", followerID).
		Count(&n).Error
	return n, err
}
