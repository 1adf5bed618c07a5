package email_send

import (
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type Pipeline struct {
	log   *logger.Logger
	email services.EmailService
}

func New(baseLog *logger.Logger, email services.EmailService) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", "email_send"),
		email: email,
	}
}

func (p *Pipeline) Type() string { return "email_send" }
