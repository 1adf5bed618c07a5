package calendar

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type LinkRepo interface {
	GetByUser(dbc dbctx.Context, userID uuid.UUID) (*types.CalendarLink, error)
	Upsert(dbc dbctx.Context, link *types.CalendarLink) error
	UpdateTokens(dbc dbctx.Context, userID uuid.UUID, access, refresh, tokenType string, expiry *time.Time) error
	MarkSynced(dbc dbctx.Context, userID uuid.UUID, at time.Time) error
	Delete(dbc dbctx.Context, userID uuid.UUID) (bool, error)
}

type linkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLinkRepo(db *gorm.DB, baseLog *logger.Logger) LinkRepo {
	return &linkRepo{db: db, log: baseLog.With("repo", "CalendarLinkRepo")}
}

// GetByUser returns nil, nil when the user has not linked a calendar.
func (r *linkRepo) GetByUser(dbc dbctx.Context, userID uuid.UUID) (*types.CalendarLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var l types.CalendarLink
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&l).Error; err != nil {
		return nil, err
	}
	if l.ID == uuid.Nil {
		return nil, nil
	}
	return &l, nil
}

// Upsert replaces any link of the user, including a soft-deleted one.
func (r *linkRepo) Upsert(dbc dbctx.Context, link *types.CalendarLink) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Unscoped().Where("user_id = ?", link.UserID).Delete(&types.CalendarLink{}).Error; err != nil {
			return err
		}
		return txx.Create(link).Error
	})
}

func (r *linkRepo) UpdateTokens(dbc dbctx.Context, userID uuid.UUID, access, refresh, tokenType string, expiry *time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"access_token": access,
		"token_type":   tokenType,
		"expiry":       expiry,
	}
	if refresh != "" {
		updates["refresh_token"] = refresh
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CalendarLink{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *linkRepo) MarkSynced(dbc dbctx.Context, userID uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CalendarLink{}).
		Where("user_id = ?", userID).
		Update("last_synced_at", at.UTC()).Error
}

func (r *linkRepo) Delete(dbc dbctx.Context, userID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("user_id = ?", userID).
		Delete(&types.CalendarLink{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type EventRepo interface {
	GetBySources(dbc dbctx.Context, userID uuid.UUID, sourceType string, sourceIDs []uuid.UUID) (map[uuid.UUID]*types.CalendarEvent, error)
	Upsert(dbc dbctx.Context, ev *types.CalendarEvent) error
	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) error
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "CalendarEventRepo")}
}

func (r *eventRepo) GetBySources(dbc dbctx.Context, userID uuid.UUID, sourceType string, sourceIDs []uuid.UUID) (map[uuid.UUID]*types.CalendarEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]*types.CalendarEvent, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}
	var rows []*types.CalendarEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND source_type = ? AND source_id IN ?", userID, sourceType, sourceIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SourceID] = row
	}
	return out, nil
}

func (r *eventRepo) Upsert(dbc dbctx.Context, ev *types.CalendarEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"google_event_id", "updated_at"}),
		}).
		Create(ev).Error
}

func (r *eventRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Delete(&types.CalendarEvent{}).Error
}
