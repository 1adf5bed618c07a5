package social

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity types. System activities are written by services, posts by users.
const (
	ActivityPost                = "post"
	ActivityAchievementUnlocked = "achievement_unlocked"
	ActivityLevelUp             = "level_up"
	ActivityNoteShared          = "note_shared"
	ActivityMaterialShared      = "material_shared"
	ActivityTaskCompleted       = "task_completed"
	ActivityPomodoroCompleted   = "pomodoro_completed"
	ActivityAssessmentCreated   = "assessment_created"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Activity struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         string            `gorm:"column:type;not null;index" json:"type"`
	Visibility   string            `gorm:"column:visibility;not null;default:'public';index" json:"visibility"`
	Content      string            `gorm:"column:content" json:"content"`
	SubjectID    *uuid.UUID        `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	SubjectName  string            `gorm:"column:subject_name" json:"subject_name,omitempty"`
	AssessmentID *uuid.UUID        `gorm:"type:uuid" json:"assessment_id,omitempty"`
	NoteID       *uuid.UUID        `gorm:"type:uuid" json:"note_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (Activity) TableName() string { return "user_activity" }

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
