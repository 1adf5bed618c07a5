package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type AssistantHandler struct {
	log       *logger.Logger
	assistant services.AssistantService
}

func NewAssistantHandler(log *logger.Logger, assistant services.AssistantService) *AssistantHandler {
	return &AssistantHandler{log: log.With("handler", "AssistantHandler"), assistant: assistant}
}

type chatRequest struct {
	ThreadID *uuid.UUID `json:"thread_id"`
	Message  string     `json:"message" binding:"required"`
	Stream   bool       `json:"stream"`
}

// POST /api/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.AssistantChatInput{ThreadID: req.ThreadID, Message: req.Message}
	if req.Stream {
		h.stream(c, in)
		return
	}
	reply, err := h.assistant.Chat(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, reply)
}

// stream relays deltas as "delta" events and ends with a "done" event carrying the
// stored reply. Errors before the first delta use the normal error envelope; later
// errors become an "error" event.
func (h *AssistantHandler) stream(c *gin.Context, in services.AssistantChatInput) {
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	reply, err := h.assistant.Stream(c.Request.Context(), in, func(delta string) error {
		begin()
		c.SSEvent("delta", gin.H{"text": delta})
		c.Writer.Flush()
		return c.Request.Context().Err()
	})
	if err != nil {
		if !started {
			response.RespondServiceError(c, h.log, err)
			return
		}
		status, code := response.Classify(err)
		if status >= http.StatusInternalServerError {
			h.log.Warn("Assistant stream failed", "error", err)
		}
		c.SSEvent("error", response.APIError{Message: err.Error(), Code: code})
		c.Writer.Flush()
		return
	}
	begin()
	c.SSEvent("done", reply)
	c.Writer.Flush()
}

// GET /api/assistant/threads
func (h *AssistantHandler) Threads(c *gin.Context) {
	out, err := h.assistant.Threads(c.Request.Context(), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"threads": out})
}

// GET /api/assistant/threads/:id/messages
func (h *AssistantHandler) Messages(c *gin.Context) {
	id, ok := pathID(c, "invalid_thread_id")
	if !ok {
		return
	}
	out, err := h.assistant.Messages(c.Request.Context(), id, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": out})
}

// DELETE /api/assistant/threads/:id
func (h *AssistantHandler) DeleteThread(c *gin.Context) {
	id, ok := pathID(c, "invalid_thread_id")
	if !ok {
		return
	}
	if err := h.assistant.DeleteThread(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
