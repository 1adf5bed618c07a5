package gamification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type UserStatsRepo interface {
	GetOrCreate(dbc dbctx.Context, userID uuid.UUID) (*types.UserStats, error)
	GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.UserStats, error)
	Save(dbc dbctx.Context, stats *types.UserStats) error
	Leaderboard(dbc dbctx.Context, userIDs []uuid.UUID, limit int) ([]*types.UserStats, error)
}

type userStatsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserStatsRepo(db *gorm.DB, baseLog *logger.Logger) UserStatsRepo {
	return &userStatsRepo{db: db, log: baseLog.With("repo", "UserStatsRepo")}
}

// GetOrCreate returns the stats row, inserting a zero row first when missing.
// Inside a Postgres transaction the row is locked for update.
func (r *userStatsRepo) GetOrCreate(dbc dbctx.Context, userID uuid.UUID) (*types.UserStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	seed := &types.UserStats{UserID: userID, Level: 1}
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}
	q := transaction.WithContext(dbc.Ctx)
	if dbc.Tx != nil && transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s types.UserStats
	if err := q.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *userStatsRepo) GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.UserStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.UserStats
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id IN ?", userIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userStatsRepo) Save(dbc dbctx.Context, stats *types.UserStats) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.UserStats{}).
		Where("user_id = ?", stats.UserID).
		Updates(map[string]interface{}{
			"xp_total":            stats.XPTotal,
			"level":               stats.Level,
			"current_streak":      stats.CurrentStreak,
			"longest_streak":      stats.LongestStreak,
			"last_active_on":      stats.LastActiveOn,
			"tasks_completed":     stats.TasksCompleted,
			"pomodoros_completed": stats.PomodorosCompleted,
		}).Error
}

// Leaderboard orders by XP. A non-empty userIDs restricts it to those users.
func (r *userStatsRepo) Leaderboard(dbc dbctx.Context, userIDs []uuid.UUID, limit int) ([]*types.UserStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := transaction.WithContext(dbc.Ctx)
	if len(userIDs) > 0 {
		q = q.Where("user_id IN ?", userIDs)
	}
	var out []*types.UserStats
	if err := q.Order("xp_total DESC").Order("user_id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
