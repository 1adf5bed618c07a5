package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type NoteHandler struct {
	log   *logger.Logger
	notes services.NoteService
}

func NewNoteHandler(log *logger.Logger, notes services.NoteService) *NoteHandler {
	return &NoteHandler{log: log.With("handler", "NoteHandler"), notes: notes}
}

// GET /api/notes?subject_id=&query=
func (h *NoteHandler) List(c *gin.Context) {
	subjectID, ok := queryUUID(c, "subject_id")
	if !ok {
		return
	}
	out, err := h.notes.List(c.Request.Context(), subjectID, c.Query("query"))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"notes": out})
}

// POST /api/notes
func (h *NoteHandler) Create(c *gin.Context) {
	var req services.NoteInput
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.notes.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"note": n})
}

// GET /api/notes/:id
func (h *NoteHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_note_id")
	if !ok {
		return
	}
	n, err := h.notes.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"note": n})
}

// PATCH /api/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "invalid_note_id")
	if !ok {
		return
	}
	var req services.NotePatch
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.notes.Update(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"note": n})
}

// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_note_id")
	if !ok {
		return
	}
	if err := h.notes.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
