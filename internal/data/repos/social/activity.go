package social

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type ActivityRepo interface {
	Create(dbc dbctx.Context, rows []*types.Activity) ([]*types.Activity, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Activity, error)
	// PublicWindow returns public activity not authored by excludeUserID, newest first.
	PublicWindow(dbc dbctx.Context, excludeUserID uuid.UUID, offset, n int) ([]*types.Activity, error)
	ListByAuthors(dbc dbctx.Context, authorIDs []uuid.UUID, offset, limit int) ([]*types.Activity, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, includePrivate bool, offset, limit int) ([]*types.Activity, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: baseLog.With("repo", "ActivityRepo")}
}

func (r *activityRepo) Create(dbc dbctx.Context, rows []*types.Activity) ([]*types.Activity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Activity{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Activity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a types.Activity
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepo) PublicWindow(dbc dbctx.Context, excludeUserID uuid.UUID, offset, n int) ([]*types.Activity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if n <= 0 {
		return []*types.Activity{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Activity
	if err := transaction.WithContext(dbc.Ctx).
		Where("visibility = ? AND user_id <> ?", "public", excludeUserID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) ListByAuthors(dbc dbctx.Context, authorIDs []uuid.UUID, offset, limit int) ([]*types.Activity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Activity
	if len(authorIDs) == 0 || limit <= 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("visibility = ? AND user_id IN ?", "public", authorIDs).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, includePrivate bool, offset, limit int) ([]*types.Activity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Where("user_id = ?", userID)
	if !includePrivate {
		q = q.Where("visibility = ?", "public")
	}
	var out []*types.Activity
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Activity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
