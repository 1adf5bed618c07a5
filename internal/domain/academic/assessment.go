package academic

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AssessmentExam         = "exam"
	AssessmentAssignment   = "assignment"
	AssessmentPresentation = "presentation"
)

func IsAssessmentType(t string) bool {
	switch t {
	case AssessmentExam, AssessmentAssignment, AssessmentPresentation:
		return true
	}
	return false
}

type Assessment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SubjectID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"subject_id"`
	Subject        *Subject       `gorm:"foreignKey:SubjectID;references:ID;constraint:OnDelete:CASCADE" json:"subject,omitempty"`
	Type           string         `gorm:"column:type;not null;index" json:"type"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Description    string         `gorm:"column:description" json:"description"`
	DueDate        time.Time      `gorm:"column:due_date;not null;index" json:"due_date"`
	Weight         float64        `gorm:"column:weight;not null;default:0" json:"weight"`
	Grade          *float64       `gorm:"column:grade" json:"grade"`
	ReminderSentAt *time.Time     `gorm:"column:reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Assessment) TableName() string { return "assessment" }

func (a *Assessment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
