package academic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScheduleSlot is one weekly class meeting. Weekday is 0 (Sunday) to 6.
type ScheduleSlot struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type Subject struct {
	ID        uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID                         `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string                            `gorm:"column:name;not null" json:"name"`
	Color     string                            `gorm:"column:color;not null;default:'#4f46e5'" json:"color"`
	Professor string                            `gorm:"column:professor" json:"professor"`
	Room      string                            `gorm:"column:room" json:"room"`
	Schedule  datatypes.JSONSlice[ScheduleSlot] `gorm:"column:schedule" json:"schedule"`
	CreatedAt time.Time                         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time                         `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt                    `gorm:"index" json:"-"`
}

func (Subject) TableName() string { return "subject" }

func (s *Subject) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NormalizeSubjectName folds a subject name for cross-user comparison.
func NormalizeSubjectName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// IsHexColor accepts "#RRGGBB".
func IsHexColor(v string) bool {
	if len(v) != 7 || v[0] != '#' {
		return false
	}
	for _, c := range v[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ParseClock parses "HH:MM" (24h) into minutes after midnight.
func ParseClock(v string) (int, bool) {
	if len(v) != 5 || v[2] != ':' {
		return 0, false
	}
	digit := func(b byte) (int, bool) { return int(b - '0'), b >= '0' && b <= '9' }
	h1, ok1 := digit(v[0])
	h2, ok2 := digit(v[1])
	m1, ok3 := digit(v[3])
	m2, ok4 := digit(v[4])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	h, m := h1*10+h2, m1*10+m2
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func IsWeekday(d int) bool { return d >= 0 && d <= 6 }

// Validate checks the slot fields and that it ends after it starts.
func (s ScheduleSlot) Validate() error {
	if !IsWeekday(s.Weekday) {
		return fmt.Errorf("weekday must be between 0 and 6")
	}
	start, ok := ParseClock(s.Start)
	if !ok {
		return fmt.Errorf("start must be HH:MM")
	}
	end, ok := ParseClock(s.End)
	if !ok {
		return fmt.Errorf("end must be HH:MM")
	}
	if end <= start {
		return fmt.Errorf("end must be after start")
	}
	return nil
}
