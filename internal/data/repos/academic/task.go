package academic

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type TaskFilter struct {
	Completed *bool
	SubjectID *uuid.UUID
	Priority  string
	DueBefore *time.Time
}

type TaskRepo interface {
	Create(dbc dbctx.Context, tasks []*types.Task) ([]*types.Task, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Task, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, f TaskFilter) ([]*types.Task, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	SetCompleted(dbc dbctx.Context, userID, id uuid.UUID, completed bool, at time.Time) (bool, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
	CountCompleted(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	DetachSubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(dbc dbctx.Context, tasks []*types.Task) ([]*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tasks) == 0 {
		return []*types.Task{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var t types.Task
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, f TaskFilter) ([]*types.Task, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Where("user_id = ?", userID)
	if f.Completed != nil {
		q = q.Where("completed = ?", *f.Completed)
	}
	if f.SubjectID != nil && *f.SubjectID != uuid.Nil {
		q = q.Where("subject_id = ?", *f.SubjectID)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.DueBefore != nil {
		q = q.Where("due_date IS NOT NULL AND due_date < ?", f.DueBefore.UTC())
	}
	var out []*types.Task
	if err := q.
		Order("completed ASC").
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date ASC").
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Task{}).
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

// SetCompleted flips the completed flag and reports whether the row changed state.
// Completing an already completed task is a no-op, so XP is awarded once per transition.
func (r *taskRepo) SetCompleted(dbc dbctx.Context, userID, id uuid.UUID, completed bool, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{"completed": completed}
	if completed {
		updates["completed_at"] = at.UTC()
	} else {
		updates["completed_at"] = nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("id = ? AND user_id = ? AND completed = ?", id, userID, !completed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *taskRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepo) CountCompleted(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Count(&n).Error
	return n, err
}

func (r *taskRepo) DetachSubject(dbc dbctx.Context, userID, subjectID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Task{}).
		Where("user_id = ? AND subject_id = ?", userID, subjectID).
		Update("subject_id", nil).Error
}
