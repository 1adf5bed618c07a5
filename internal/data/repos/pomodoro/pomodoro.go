package pomodoro

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type StateRepo interface {
	// Get returns nil, nil when the user never opened the timer.
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.PomodoroState, error)
	Upsert(dbc dbctx.Context, state *types.PomodoroState) error
}

type stateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStateRepo(db *gorm.DB, baseLog *logger.Logger) StateRepo {
	return &stateRepo{db: db, log: baseLog.With("repo", "PomodoroStateRepo")}
}

func (r *stateRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.PomodoroState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	if dbc.Tx != nil && transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s types.PomodoroState
	if err := q.Where("user_id = ?", userID).Limit(1).Find(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *stateRepo) Upsert(dbc dbctx.Context, state *types.PomodoroState) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"subject_id", "study_minutes", "break_minutes", "long_break_minutes", "auto_start",
				"phase", "time_left_seconds", "running", "completed_study_count", "ticked_at", "updated_at",
			}),
		}).
		Create(state).Error
}

type SessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.PomodoroSession) ([]*types.PomodoroSession, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, since *time.Time, limit int) ([]*types.PomodoroSession, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "PomodoroSessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, sessions []*types.PomodoroSession) ([]*types.PomodoroSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.PomodoroSession{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, since *time.Time, limit int) ([]*types.PomodoroSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := transaction.WithContext(dbc.Ctx).Where("user_id = ?", userID)
	if since != nil {
		q = q.Where("completed_at >= ?", since.UTC())
	}
	var out []*types.PomodoroSession
	if err := q.Order("completed_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
