package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type AssessmentHandler struct {
	log         *logger.Logger
	assessments services.AssessmentService
}

func NewAssessmentHandler(log *logger.Logger, assessments services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{log: log.With("handler", "AssessmentHandler"), assessments: assessments}
}

// GET /api/assessments?subject_id=&type=&upcoming=
func (h *AssessmentHandler) List(c *gin.Context) {
	subjectID, ok := queryUUID(c, "subject_id")
	if !ok {
		return
	}
	upcoming, ok := queryBool(c, "upcoming")
	if !ok {
		return
	}
	q := services.AssessmentQuery{SubjectID: subjectID, Type: c.Query("type")}
	if upcoming != nil {
		q.Upcoming = *upcoming
	}
	out, err := h.assessments.List(c.Request.Context(), q)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"assessments": out})
}

// POST /api/assessments
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req services.AssessmentInput
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assessments.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"assessment": a})
}

// GET /api/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_assessment_id")
	if !ok {
		return
	}
	a, err := h.assessments.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

// PATCH /api/assessments/:id
func (h *AssessmentHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "invalid_assessment_id")
	if !ok {
		return
	}
	var req services.AssessmentPatch
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assessments.Update(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

// DELETE /api/assessments/:id
func (h *AssessmentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_assessment_id")
	if !ok {
		return
	}
	if err := h.assessments.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
