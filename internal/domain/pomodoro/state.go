package pomodoro

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is the persisted timer of one user. TickedAt is the wall-clock
// anchor the service advances a running timer from.
type State struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"-"`
	UserID              uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	SubjectID           *uuid.UUID `gorm:"type:uuid" json:"subject_id"`
	StudyMinutes        int        `gorm:"column:study_minutes;not null;default:25" json:"study_minutes"`
	BreakMinutes        int        `gorm:"column:break_minutes;not null;default:5" json:"break_minutes"`
	LongBreakMinutes    int        `gorm:"column:long_break_minutes;not null;default:15" json:"long_break_minutes"`
	AutoStart           bool       `gorm:"column:auto_start;not null;default:false" json:"auto_start"`
	Phase               string     `gorm:"column:phase;not null;default:'study'" json:"phase"`
	TimeLeftSeconds     int        `gorm:"column:time_left_seconds;not null" json:"time_left_seconds"`
	Running             bool       `gorm:"column:running;not null;default:false" json:"running"`
	CompletedStudyCount int        `gorm:"column:completed_study_count;not null;default:0" json:"completed_study_count"`
	TickedAt            time.Time  `gorm:"column:ticked_at;not null" json:"ticked_at"`
	CreatedAt           time.Time  `gorm:"not null" json:"-"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`
}

func (State) TableName() string { return "pomodoro_state" }

func (s *State) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type Session struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	SubjectID       *uuid.UUID `gorm:"type:uuid;index" json:"subject_id"`
	Phase           string     `gorm:"column:phase;not null" json:"phase"`
	DurationSeconds int        `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	CompletedAt     time.Time  `gorm:"column:completed_at;not null;index" json:"completed_at"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (Session) TableName() string { return "pomodoro_session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
