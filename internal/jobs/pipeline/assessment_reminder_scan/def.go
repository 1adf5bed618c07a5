package assessment_reminder_scan

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

const (
	defaultWindow = 24 * time.Hour
	batchSize     = 200
)

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	assessments repos.AssessmentRepo
	users       repos.UserRepo
	email       services.EmailService
	now         func() time.Time
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	assessments repos.AssessmentRepo,
	users repos.UserRepo,
	email services.EmailService,
	now func() time.Time,
) *Pipeline {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "assessment_reminder_scan"),
		assessments: assessments,
		users:       users,
		email:       email,
		now:         now,
	}
}

func (p *Pipeline) Type() string { return "assessment_reminder_scan" }
