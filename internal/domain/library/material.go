package library

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Material struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SubjectID   *uuid.UUID     `gorm:"type:uuid;index" json:"subject_id"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	URL         string         `gorm:"column:url" json:"url"`
	BucketKey   string         `gorm:"column:bucket_key" json:"-"`
	MimeType    string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes   int64          `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	Visibility  string         `gorm:"column:visibility;not null;default:'private';index" json:"visibility"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Material) TableName() string { return "library_material" }

func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
