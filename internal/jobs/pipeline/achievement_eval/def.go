package achievement_eval

import (
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type Pipeline struct {
	log          *logger.Logger
	gamification services.GamificationService
}

func New(baseLog *logger.Logger, gamification services.GamificationService) *Pipeline {
	return &Pipeline{
		log:          baseLog.With("job", "achievement_eval"),
		gamification: gamification,
	}
}

func (p *Pipeline) Type() string { return "achievement_eval" }
