package calendar_sync

import (
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type Pipeline struct {
	log      *logger.Logger
	calendar services.CalendarService
}

func New(baseLog *logger.Logger, calendar services.CalendarService) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", "calendar_sync"),
		calendar: calendar,
	}
}

func (p *Pipeline) Type() string { return "calendar_sync" }
