package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type GamificationHandler struct {
	log          *logger.Logger
	gamification services.GamificationService
}

func NewGamificationHandler(log *logger.Logger, gamification services.GamificationService) *GamificationHandler {
	return &GamificationHandler{
		log:          log.With("handler", "GamificationHandler"),
		gamification: gamification,
	}
}

// GET /api/gamification/me
func (h *GamificationHandler) Summary(c *gin.Context) {
	out, err := h.gamification.Summary(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/gamification/achievements
func (h *GamificationHandler) Achievements(c *gin.Context) {
	out, err := h.gamification.Achievements(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"achievements": out})
}

// GET /api/gamification/leaderboard?scope=global|following&limit=
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	out, err := h.gamification.Leaderboard(c.Request.Context(), c.Query("scope"), queryInt(c, "limit", 20))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"entries": out})
}
