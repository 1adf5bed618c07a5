package groups

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type StudyGroup struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	SubjectID   *uuid.UUID     `gorm:"type:uuid;index" json:"subject_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	IsPublic    bool           `gorm:"column:is_public;not null" json:"is_public"`
	MemberCount int            `gorm:"-" json:"member_count"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (StudyGroup) TableName() string { return "study_group" }

func (g *StudyGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type StudyGroupMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_member" json:"group_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_member;index" json:"user_id"`
	Role      string    `gorm:"column:role;not null;default:'member'" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"joined_at"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}

func (StudyGroupMember) TableName() string { return "study_group_member" }

func (m *StudyGroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// GroupMessage is a chat line in a group room. Seq is dense and increasing per group,
// so clients poll with ?after_seq=.
type GroupMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_message_seq" json:"group_id"`
	Seq       int64     `gorm:"column:seq;not null;uniqueIndex:idx_group_message_seq" json:"seq"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Body      string    `gorm:"column:body;not null" json:"body"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (GroupMessage) TableName() string { return "group_message" }

func (m *GroupMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
