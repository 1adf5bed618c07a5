package assistant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type ThreadRepo interface {
	Create(dbc dbctx.Context, thread *types.AssistantThread) (*types.AssistantThread, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.AssistantThread, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.AssistantThread, error)
	Touch(dbc dbctx.Context, id uuid.UUID) error
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: baseLog.With("repo", "AssistantThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, thread *types.AssistantThread) (*types.AssistantThread, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(thread).Error; err != nil {
		return nil, err
	}
	return thread, nil
}

func (r *threadRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.AssistantThread, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var t types.AssistantThread
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *threadRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.AssistantThread, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var out []*types.AssistantThread
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *threadRepo) Touch(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.AssistantThread{}).
		Where("id = ?", id).
		Update("updated_at", transaction.NowFunc()).Error
}

func (r *threadRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.AssistantThread{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type MessageRepo interface {
	// Create appends to each message's thread, assigning the next seq. A concurrent
	// append that loses the race fails on the (thread_id, seq) unique index.
	Create(dbc dbctx.Context, msgs []*types.AssistantMessage) ([]*types.AssistantMessage, error)
	// ListRecent returns the last n messages of the thread in chronological order.
	ListRecent(dbc dbctx.Context, threadID uuid.UUID, n int) ([]*types.AssistantMessage, error)
	ListForThread(dbc dbctx.Context, threadID uuid.UUID, limit, offset int) ([]*types.AssistantMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "AssistantMessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, msgs []*types.AssistantMessage) ([]*types.AssistantMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(msgs) == 0 {
		return []*types.AssistantMessage{}, nil
	}
	next := map[uuid.UUID]int64{}
	for _, m := range msgs {
		seq, ok := next[m.ThreadID]
		if !ok {
			if err := transaction.WithContext(dbc.Ctx).
				Model(&types.AssistantMessage{}).
				Where("thread_id = ?", m.ThreadID).
				Select("COALESCE(MAX(seq), 0)").
				Scan(&seq).Error; err != nil {
				return nil, err
			}
		}
		seq++
		m.Seq = seq
		next[m.ThreadID] = seq
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepo) ListRecent(dbc dbctx.Context, threadID uuid.UUID, n int) ([]*types.AssistantMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if n <= 0 {
		n = 20
	}
	var out []*types.AssistantMessage
	if err := transaction.WithContext(dbc.Ctx).
		Where("thread_id = ?", threadID).
		Order("seq DESC").
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) ListForThread(dbc dbctx.Context, threadID uuid.UUID, limit, offset int) ([]*types.AssistantMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var out []*types.AssistantMessage
	if err := transaction.WithContext(dbc.Ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
