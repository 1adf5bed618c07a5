package gamification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type XPEventRepo interface {
	Create(dbc dbctx.Context, events []*types.XPEvent) ([]*types.XPEvent, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.XPEvent, error)
	// ExistsForRef reports whether reason was already awarded for refID.
	ExistsForRef(dbc dbctx.Context, userID uuid.UUID, reason string, refID uuid.UUID) (bool, error)
}

type xpEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewXPEventRepo(db *gorm.DB, baseLog *logger.Logger) XPEventRepo {
	return &xpEventRepo{db: db, log: baseLog.With("repo", "XPEventRepo")}
}

func (r *xpEventRepo) Create(dbc dbctx.Context, events []*types.XPEvent) ([]*types.XPEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return []*types.XPEvent{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *xpEventRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.XPEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.XPEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *xpEventRepo) ExistsForRef(dbc dbctx.Context, userID uuid.UUID, reason string, refID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.XPEvent{}).
		Where("user_id = ? AND reason = ? AND ref_id = ?", userID, reason, refID).
		Count(&n).Error
	return n > 0, err
}
