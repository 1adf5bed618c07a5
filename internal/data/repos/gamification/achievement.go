package gamification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type AchievementRepo interface {
	UpsertCatalog(dbc dbctx.Context, rows []*types.Achievement) error
	List(dbc dbctx.Context) ([]*types.Achievement, error)
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	return &achievementRepo{db: db, log: baseLog.With("repo", "AchievementRepo")}
}

// UpsertCatalog inserts new codes and refreshes the mutable columns of existing ones.
func (r *achievementRepo) UpsertCatalog(dbc dbctx.Context, rows []*types.Achievement) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category", "threshold", "xp_reward", "icon", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *achievementRepo) List(dbc dbctx.Context) ([]*types.Achievement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Achievement
	if err := transaction.WithContext(dbc.Ctx).
		Order("category ASC").
		Order("threshold ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type UserAchievementRepo interface {
	Unlock(dbc dbctx.Context, userID, achievementID uuid.UUID, at time.Time) (bool, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserAchievement, error)
	UnlockedIDs(dbc dbctx.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

type userAchievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserAchievementRepo(db *gorm.DB, baseLog *logger.Logger) UserAchievementRepo {
	return &userAchievementRepo{db: db, log: baseLog.With("repo", "UserAchievementRepo")}
}

// Unlock inserts the pair once and reports whether this call created it.
func (r *userAchievementRepo) Unlock(dbc dbctx.Context, userID, achievementID uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Omit("Achievement").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(&types.UserAchievement{UserID: userID, AchievementID: achievementID, UnlockedAt: at.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userAchievementRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserAchievement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.UserAchievement
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userAchievementRepo) UnlockedIDs(dbc dbctx.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
