package academic

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type AssessmentFilter struct {
	SubjectID *uuid.UUID
	Type      string
	From      *time.Time
	To        *time.Time
}

type AssessmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Assessment) ([]*types.Assessment, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Assessment, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, f AssessmentFilter) ([]*types.Assessment, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
	DeleteBySubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error
	ListDueForReminder(dbc dbctx.Context, from, to time.Time, limit int) ([]*types.Assessment, error)
	MarkReminderSent(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{db: db, log: baseLog.With("repo", "AssessmentRepo")}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, rows []*types.Assessment) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Assessment{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Omit("Subject").Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *assessmentRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a types.Assessment
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Subject").
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assessmentRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, f AssessmentFilter) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Preload("Subject").
		Where("user_id = ?", userID)
	if f.SubjectID != nil && *f.SubjectID != uuid.Nil {
		q = q.Where("subject_id = ?", *f.SubjectID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("due_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("due_date < ?", f.To.UTC())
	}
	var out []*types.Assessment
	if err := q.Order("due_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assessmentRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Assessment{}).
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

func (r *assessmentRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Assessment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assessmentRepo) DeleteBySubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND subject_id = ?", userID, subjectID).
		Delete(&types.Assessment{}).Error
}

// ListDueForReminder returns assessments due in [from, to) that have not been reminded yet.
func (r *assessmentRepo) ListDueForReminder(dbc dbctx.Context, from, to time.Time, limit int) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Assessment
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Subject").
		Where("reminder_sent_at IS NULL AND due_date >= ? AND due_date < ?", from.UTC(), to.UTC()).
		Order("due_date ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkReminderSent reports false when another scanner already marked the row.
func (r *assessmentRepo) MarkReminderSent(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Assessment{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		Update("reminder_sent_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
