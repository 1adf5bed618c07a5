package calendar

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Link struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	AccessToken  string         `gorm:"column:access_token;not null" json:"-"`
	RefreshToken string         `gorm:"column:refresh_token" json:"-"`
	TokenType    string         `gorm:"column:token_type" json:"-"`
	Expiry       *time.Time     `gorm:"column:expiry" json:"-"`
	CalendarID   string         `gorm:"column:calendar_id;not null;default:'primary'" json:"calendar_id"`
	LastSyncedAt *time.Time     `gorm:"column:last_synced_at" json:"last_synced_at"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Link) TableName() string { return "calendar_link" }

func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

const (
	SourceAssessment = "assessment"
	SourceTask       = "task"
)

// Event maps a local row to the Google event created for it.
type Event struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SourceType    string    `gorm:"column:source_type;not null;uniqueIndex:idx_calendar_event_source" json:"source_type"`
	SourceID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_calendar_event_source" json:"source_id"`
	GoogleEventID string    `gorm:"column:google_event_id;not null" json:"google_event_id"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Event) TableName() string { return "calendar_event" }

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
