package gamification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStats is the per-user gamification counter row.
// LastActiveOn is a calendar day in "2006-01-02" form, UTC.
type UserStats struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	XPTotal            int64     `gorm:"column:xp_total;not null;default:0;index" json:"xp_total"`
	Level              int       `gorm:"column:level;not null;default:1" json:"level"`
	CurrentStreak      int       `gorm:"column:current_streak;not null;default:0" json:"current_streak"`
	LongestStreak      int       `gorm:"column:longest_streak;not null;default:0" json:"longest_streak"`
	LastActiveOn       string    `gorm:"column:last_active_on" json:"last_active_on"`
	TasksCompleted     int       `gorm:"column:tasks_completed;not null;default:0" json:"tasks_completed"`
	PomodorosCompleted int       `gorm:"column:pomodoros_completed;not null;default:0" json:"pomodoros_completed"`
	CreatedAt          time.Time `gorm:"not null" json:"-"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

func (UserStats) TableName() string { return "user_stats" }

func (s *UserStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// XP award reasons.
const (
	ReasonTaskCompleted     = "task_completed"
	ReasonPomodoroCompleted = "pomodoro_completed"
	ReasonAssessmentCreated = "assessment_created"
	ReasonNoteCreated       = "note_created"
	ReasonPostCreated       = "post_created"
	ReasonDailyStreak       = "daily_streak"
	ReasonAchievement       = "achievement"
)

type XPEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Reason    string     `gorm:"column:reason;not null;index" json:"reason"`
	Amount    int        `gorm:"column:amount;not null" json:"amount"`
	RefID     *uuid.UUID `gorm:"type:uuid;column:ref_id" json:"ref_id,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
}

func (XPEvent) TableName() string { return "xp_event" }

func (e *XPEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
