package library

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type MaterialFilter struct {
	SubjectID *uuid.UUID
	Query     string
	OnlyMine  bool
	Limit     int
	Offset    int
}

type MaterialRepo interface {
	Create(dbc dbctx.Context, rows []*types.LibraryMaterial) ([]*types.LibraryMaterial, error)
	GetVisible(dbc dbctx.Context, userID, id uuid.UUID) (*types.LibraryMaterial, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.LibraryMaterial, error)
	ListVisible(dbc dbctx.Context, userID uuid.UUID, f MaterialFilter) ([]*types.LibraryMaterial, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return &materialRepo{db: db, log: baseLog.With("repo", "LibraryMaterialRepo")}
}

func (r *materialRepo) Create(dbc dbctx.Context, rows []*types.LibraryMaterial) ([]*types.LibraryMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.LibraryMaterial{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetVisible returns the material when it is public or owned by userID.
func (r *materialRepo) GetVisible(dbc dbctx.Context, userID, id uuid.UUID) (*types.LibraryMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m types.LibraryMaterial
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND (visibility = ? OR user_id = ?)", id, "public", userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *materialRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.LibraryMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m types.LibraryMaterial
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *materialRepo) ListVisible(dbc dbctx.Context, userID uuid.UUID, f MaterialFilter) ([]*types.LibraryMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	if f.OnlyMine {
		q = q.Where("user_id = ?", userID)
	} else {
		q = q.Where("visibility = ? OR user_id = ?", "public", userID)
	}
	if f.SubjectID != nil && *f.SubjectID != uuid.Nil {
		q = q.Where("subject_id = ?", *f.SubjectID)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*types.LibraryMaterial
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *materialRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LibraryMaterial{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *materialRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.LibraryMaterial{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
