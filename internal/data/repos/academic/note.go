package academic

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type NoteFilter struct {
	SubjectID *uuid.UUID
	Query     string
}

type NoteRepo interface {
	Create(dbc dbctx.Context, notes []*types.Note) ([]*types.Note, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Note, error)
	GetShared(dbc dbctx.Context, id uuid.UUID) (*types.Note, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, f NoteFilter) ([]*types.Note, error)
	CountForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
	DetachSubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	return &noteRepo{db: db, log: baseLog.With("repo", "NoteRepo")}
}

func (r *noteRepo) Create(dbc dbctx.Context, notes []*types.Note) ([]*types.Note, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(notes) == 0 {
		return []*types.Note{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Note, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n types.Note
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// GetShared loads a note another user published to the feed.
func (r *noteRepo) GetShared(dbc dbctx.Context, id uuid.UUID) (*types.Note, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n types.Note
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND shared = ?", id, true).
		First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *noteRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, f NoteFilter) ([]*types.Note, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Where("user_id = ?", userID)
	if f.SubjectID != nil && *f.SubjectID != uuid.Nil {
		q = q.Where("subject_id = ?", *f.SubjectID)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}
	var out []*types.Note
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *noteRepo) CountForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Note{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

func (r *noteRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Note{}).
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

func (r *noteRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Note{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *noteRepo) DetachSubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Note{}).
		Where("user_id = ? AND subject_id = ?", userID, subjectID).
		Update("subject_id", nil).Error
}
