package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type PomodoroHandler struct {
	log      *logger.Logger
	pomodoro services.PomodoroService
}

func NewPomodoroHandler(log *logger.Logger, pomodoro services.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{log: log.With("handler", "PomodoroHandler"), pomodoro: pomodoro}
}

func (h *PomodoroHandler) respond(c *gin.Context, view *services.PomodoroView, err error) {
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/pomodoro
func (h *PomodoroHandler) Get(c *gin.Context) {
	view, err := h.pomodoro.Get(c.Request.Context())
	h.respond(c, view, err)
}

// PUT /api/pomodoro/settings
func (h *PomodoroHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		StudyMinutes     int  `json:"study_minutes" binding:"required,min=1,max=180"`
		BreakMinutes     int  `json:"break_minutes" binding:"required,min=1,max=180"`
		LongBreakMinutes int  `json:"long_break_minutes" binding:"required,min=1,max=180"`
		AutoStart        bool `json:"auto_start"`
	}
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.pomodoro.UpdateSettings(c.Request.Context(), services.PomodoroSettingsInput{
		StudyMinutes:     req.StudyMinutes,
		BreakMinutes:     req.BreakMinutes,
		LongBreakMinutes: req.LongBreakMinutes,
		AutoStart:        req.AutoStart,
	})
	h.respond(c, view, err)
}

// POST /api/pomodoro/start
func (h *PomodoroHandler) Start(c *gin.Context) {
	var req struct {
		SubjectID *uuid.UUID `json:"subject_id"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	view, err := h.pomodoro.Start(c.Request.Context(), req.SubjectID)
	h.respond(c, view, err)
}

// POST /api/pomodoro/pause
func (h *PomodoroHandler) Pause(c *gin.Context) {
	view, err := h.pomodoro.Pause(c.Request.Context())
	h.respond(c, view, err)
}

// POST /api/pomodoro/skip
func (h *PomodoroHandler) Skip(c *gin.Context) {
	view, err := h.pomodoro.Skip(c.Request.Context())
	h.respond(c, view, err)
}

// POST /api/pomodoro/reset?full=true
func (h *PomodoroHandler) Reset(c *gin.Context) {
	full, ok := queryBool(c, "full")
	if !ok {
		return
	}
	view, err := h.pomodoro.Reset(c.Request.Context(), full != nil && *full)
	h.respond(c, view, err)
}

// GET /api/pomodoro/sessions?since=&limit=
func (h *PomodoroHandler) Sessions(c *gin.Context) {
	since, ok := queryTime(c, "since")
	if !ok {
		return
	}
	out, err := h.pomodoro.Sessions(c.Request.Context(), since, queryInt(c, "limit", 50))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": out})
}
