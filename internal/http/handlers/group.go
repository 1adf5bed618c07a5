package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type GroupHandler struct {
	log    *logger.Logger
	groups services.GroupService
}

func NewGroupHandler(log *logger.Logger, groups services.GroupService) *GroupHandler {
	return &GroupHandler{log: log.With("handler", "GroupHandler"), groups: groups}
}

// GET /api/groups?query=&mine=&limit=&offset=
func (h *GroupHandler) List(c *gin.Context) {
	mine, ok := queryBool(c, "mine")
	if !ok {
		return
	}
	out, err := h.groups.List(c.Request.Context(), c.Query("query"), mine != nil && *mine, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"groups": out})
}

// POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req services.GroupInput
	if !bindJSON(c, &req) {
		return
	}
	g, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"group": g})
}

// GET /api/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	g, err := h.groups.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, g)
}

// DELETE /api/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	if err := h.groups.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

// POST /api/groups/:id/join
func (h *GroupHandler) Join(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	if err := h.groups.Join(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /api/groups/:id/leave
func (h *GroupHandler) Leave(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	if err := h.groups.Leave(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /api/groups/:id/invite
func (h *GroupHandler) Invite(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.groups.Invite(c.Request.Context(), id, req.Email); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /api/groups/:id/messages?after_seq=&limit=
func (h *GroupHandler) Messages(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	var after int64
	if raw := c.Query("after_seq"); raw != "" {
		after, _ = strconv.ParseInt(raw, 10, 64)
	}
	out, err := h.groups.Messages(c.Request.Context(), id, after, queryInt(c, "limit", 50))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	next := after
	if len(out) > 0 {
		next = out[len(out)-1].Seq
	}
	response.RespondOK(c, gin.H{"messages": out, "next_seq": next})
}

// POST /api/groups/:id/messages
func (h *GroupHandler) PostMessage(c *gin.Context) {
	id, ok := pathID(c, "invalid_group_id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.groups.PostMessage(c.Request.Context(), id, req.Body)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"message": msg})
}
