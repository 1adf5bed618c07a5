package gamification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement categories. Each names the counter the threshold is compared against.
const (
	CategoryTasksCompleted     = "tasks_completed"
	CategoryPomodorosCompleted = "pomodoros_completed"
	CategoryStreakDays         = "streak_days"
	CategoryLevel              = "level"
	CategoryXPTotal            = "xp_total"
	CategoryNotesCreated       = "notes_created"
	CategorySubjectsCreated    = "subjects_created"
	CategoryFollowers          = "followers"
)

type Achievement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	Category    string    `gorm:"column:category;not null;index" json:"category"`
	Threshold   int64     `gorm:"column:threshold;not null" json:"threshold"`
	XPReward    int       `gorm:"column:xp_reward;not null;default:0" json:"xp_reward"`
	Icon        string    `gorm:"column:icon" json:"icon"`
	CreatedAt   time.Time `gorm:"not null" json:"-"`
	UpdatedAt   time.Time `gorm:"not null" json:"-"`
}

func (Achievement) TableName() string { return "achievement" }

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type UserAchievement struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID;references:ID" json:"achievement,omitempty"`
	UnlockedAt    time.Time    `gorm:"column:unlocked_at;not null" json:"unlocked_at"`
}

func (UserAchievement) TableName() string { return "user_achievement" }

func (u *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
