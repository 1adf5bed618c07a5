package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type RealtimeHandler struct {
	log    *logger.Logger
	hub    *realtime.SSEHub
	groups services.GroupService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, groups services.GroupService) *RealtimeHandler {
	return &RealtimeHandler{
		log:    log.With("handler", "RealtimeHandler"),
		hub:    hub,
		groups: groups,
	}
}

// GET /api/sse/stream
// The connection listens on the caller's user channel and on every group they belong
// to at connect time. Clients reconnect after joining a group.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errString("not authenticated"))
		return
	}
	channels, err := h.groups.ChannelsFor(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}

	client := h.hub.NewSSEClient(rd.UserID)
	defer h.hub.CloseClient(client)
	for _, ch := range channels {
		h.hub.AddChannel(client, ch)
	}
	h.log.Debug("SSE stream open", "user_id", rd.UserID, "client_id", client.ID, "channels", len(channels))
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.log.Debug("SSE stream closed", "user_id", rd.UserID, "client_id", client.ID)
}
