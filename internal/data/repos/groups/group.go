package groups

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type StudyGroupRepo interface {
	Create(dbc dbctx.Context, groups []*types.StudyGroup) ([]*types.StudyGroup, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudyGroup, error)
	ListVisible(dbc dbctx.Context, userID uuid.UUID, query string, limit, offset int) ([]*types.StudyGroup, error)
	ListForMember(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudyGroup, error)
	Delete(dbc dbctx.Context, ownerID, id uuid.UUID) error
}

type studyGroupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyGroupRepo(db *gorm.DB, baseLog *logger.Logger) StudyGroupRepo {
	return &studyGroupRepo{db: db, log: baseLog.With("repo", "StudyGroupRepo")}
}

func (r *studyGroupRepo) Create(dbc dbctx.Context, groups []*types.StudyGroup) ([]*types.StudyGroup, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(groups) == 0 {
		return []*types.StudyGroup{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *studyGroupRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StudyGroup, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var g types.StudyGroup
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListVisible returns public groups plus private groups the user belongs to.
func (r *studyGroupRepo) ListVisible(dbc dbctx.Context, userID uuid.UUID, query string, limit, offset int) ([]*types.StudyGroup, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	member := transaction.Model(&types.StudyGroupMember{}).Select("group_id").Where("user_id = ?", userID)
	q := transaction.WithContext(dbc.Ctx).
		Where("is_public = ? OR id IN (?)", true, member)
	if s := strings.ToLower(strings.TrimSpace(query)); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+s+"%")
	}
	var out []*types.StudyGroup
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studyGroupRepo) ListForMember(dbc dbctx.Context, userID uuid.UUID) ([]*types.StudyGroup, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	member := transaction.Model(&types.StudyGroupMember{}).Select("group_id").Where("user_id = ?", userID)
	var out []*types.StudyGroup
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN (?)", member).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studyGroupRepo) Delete(dbc dbctx.Context, ownerID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerID).
		Delete(&types.StudyGroup{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type GroupMemberRepo interface {
	Add(dbc dbctx.Context, groupID, userID uuid.UUID, role string) (bool, error)
	Remove(dbc dbctx.Context, groupID, userID uuid.UUID) (bool, error)
	Get(dbc dbctx.Context, groupID, userID uuid.UUID) (*types.StudyGroupMember, error)
	ListByGroup(dbc dbctx.Context, groupID uuid.UUID) ([]*types.StudyGroupMember, error)
	CountByGroups(dbc dbctx.Context, groupIDs []uuid.UUID) (map[uuid.UUID]int, error)
	GroupIDsForUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteByGroup(dbc dbctx.Context, groupID uuid.UUID) error
}

type groupMemberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupMemberRepo(db *gorm.DB, baseLog *logger.Logger) GroupMemberRepo {
	return &groupMemberRepo{db: db, log: baseLog.With("repo", "GroupMemberRepo")}
}

// Add reports false when the user was already a member.
func (r *groupMemberRepo) Add(dbc dbctx.Context, groupID, userID uuid.UUID, role string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	m := &types.StudyGroupMember{GroupID: groupID, UserID: userID, Role: role}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *groupMemberRepo) Remove(dbc dbctx.Context, groupID, userID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&types.StudyGroupMember{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Get returns nil, nil for non-members.
func (r *groupMemberRepo) Get(dbc dbctx.Context, groupID, userID uuid.UUID) (*types.StudyGroupMember, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m types.StudyGroupMember
	if err := transaction.WithContext(dbc.Ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Limit(1).
		Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *groupMemberRepo) ListByGroup(dbc dbctx.Context, groupID uuid.UUID) ([]*types.StudyGroupMember, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StudyGroupMember
	if err := transaction.WithContext(dbc.Ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *groupMemberRepo) CountByGroups(dbc dbctx.Context, groupIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]int, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		GroupID uuid.UUID
		N       int
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.StudyGroupMember{}).
		Select("group_id, COUNT(*) AS n").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.GroupID] = row.N
	}
	return out, nil
}

func (r *groupMemberRepo) GroupIDsForUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.StudyGroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *groupMemberRepo) DeleteByGroup(dbc dbctx.Context, groupID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("group_id = ?", groupID).
		Delete(&types.StudyGroupMember{}).Error
}

type GroupMessageRepo interface {
	Append(dbc dbctx.Context, msg *types.GroupMessage) (*types.GroupMessage, error)
	ListAfter(dbc dbctx.Context, groupID uuid.UUID, afterSeq int64, limit int) ([]*types.GroupMessage, error)
}

type groupMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupMessageRepo(db *gorm.DB, baseLog *logger.Logger) GroupMessageRepo {
	return &groupMessageRepo{db: db, log: baseLog.With("repo", "GroupMessageRepo")}
}

// Append assigns the next seq for the group. Callers run it inside a transaction;
// a concurrent append that loses the race fails on the (group_id, seq) unique index.
func (r *groupMessageRepo) Append(dbc dbctx.Context, msg *types.GroupMessage) (*types.GroupMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var maxSeq int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.GroupMessage{}).
		Where("group_id = ?", msg.GroupID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return nil, err
	}
	msg.Seq = maxSeq + 1
	if err := transaction.WithContext(dbc.Ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *groupMessageRepo) ListAfter(dbc dbctx.Context, groupID uuid.UUID, afterSeq int64, limit int) ([]*types.GroupMessage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.GroupMessage
	if err := transaction.WithContext(dbc.Ctx).
		Where("group_id = ? AND seq > ?", groupID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
