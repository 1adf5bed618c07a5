package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type scheduleSlotRequest struct {
	Weekday int    `json:"weekday" binding:"weekday"`
	Start   string `json:"start" binding:"required,hhmm"`
	End     string `json:"end" binding:"required,hhmm"`
}

type subjectRequest struct {
	Name      string                `json:"name" binding:"required,max=120"`
	Color     string                `json:"color" binding:"omitempty,hexcolor6"`
	Professor string                `json:"professor" binding:"max=120"`
	Room      string                `json:"room" binding:"max=60"`
	Schedule  []scheduleSlotRequest `json:"schedule" binding:"max=21,dive"`
}

type subjectPatchRequest struct {
	Name      *string                `json:"name" binding:"omitempty,max=120"`
	Color     *string                `json:"color" binding:"omitempty,hexcolor6"`
	Professor *string                `json:"professor" binding:"omitempty,max=120"`
	Room      *string                `json:"room" binding:"omitempty,max=60"`
	Schedule  *[]scheduleSlotRequest `json:"schedule" binding:"omitempty,max=21,dive"`
}

func toSlots(in []scheduleSlotRequest) []types.ScheduleSlot {
	out := make([]types.ScheduleSlot, 0, len(in))
	for _, s := range in {
		out = append(out, types.ScheduleSlot{Weekday: s.Weekday, Start: s.Start, End: s.End})
	}
	return out
}

type SubjectHandler struct {
	log      *logger.Logger
	subjects services.SubjectService
}

func NewSubjectHandler(log *logger.Logger, subjects services.SubjectService) *SubjectHandler {
	return &SubjectHandler{log: log.With("handler", "SubjectHandler"), subjects: subjects}
}

// GET /api/subjects
func (h *SubjectHandler) List(c *gin.Context) {
	out, err := h.subjects.List(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"subjects": out})
}

// POST /api/subjects
func (h *SubjectHandler) Create(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.subjects.Create(c.Request.Context(), services.SubjectInput{
		Name:      req.Name,
		Color:     req.Color,
		Professor: req.Professor,
		Room:      req.Room,
		Schedule:  toSlots(req.Schedule),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"subject": subject})
}

// GET /api/subjects/:id
func (h *SubjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_subject_id")
	if !ok {
		return
	}
	subject, err := h.subjects.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"subject": subject})
}

// PATCH /api/subjects/:id
func (h *SubjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "invalid_subject_id")
	if !ok {
		return
	}
	var req subjectPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	patch := services.SubjectPatch{
		Name:      req.Name,
		Color:     req.Color,
		Professor: req.Professor,
		Room:      req.Room,
	}
	if req.Schedule != nil {
		slots := toSlots(*req.Schedule)
		patch.Schedule = &slots
	}
	subject, err := h.subjects.Update(c.Request.Context(), id, patch)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"subject": subject})
}

// DELETE /api/subjects/:id
func (h *SubjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_subject_id")
	if !ok {
		return
	}
	if err := h.subjects.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
