package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type CalendarHandler struct {
	log      *logger.Logger
	calendar services.CalendarService
	// returnURL receives the browser after the OAuth callback. Empty answers JSON.
	returnURL string
}

func NewCalendarHandler(log *logger.Logger, calendar services.CalendarService, returnURL string) *CalendarHandler {
	return &CalendarHandler{
		log:       log.With("handler", "CalendarHandler"),
		calendar:  calendar,
		returnURL: returnURL,
	}
}

// GET /api/calendar/auth-url
func (h *CalendarHandler) AuthURL(c *gin.Context) {
	u, err := h.calendar.AuthURL(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"url": u})
}

// GET /api/calendar/callback?code=&state=
func (h *CalendarHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		h.finish(c, "denied", http.StatusBadRequest, e)
		return
	}
	userID, err := h.calendar.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		if h.returnURL == "" {
			response.RespondServiceError(c, h.log, err)
			return
		}
		h.log.Warn("Calendar callback failed", "error", err)
		h.finish(c, "error", http.StatusBadRequest, "link_failed")
		return
	}
	h.log.Info("Calendar linked", "user_id", userID)
	h.finish(c, "linked", http.StatusOK, "")
}

func (h *CalendarHandler) finish(c *gin.Context, status string, code int, reason string) {
	if h.returnURL == "" {
		if code != http.StatusOK {
			response.RespondError(c, code, "calendar_"+status, errString(reason))
			return
		}
		response.RespondOK(c, gin.H{"status": status})
		return
	}
	u, err := url.Parse(h.returnURL)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "invalid_return_url", err)
		return
	}
	q := u.Query()
	q.Set("calendar", status)
	if reason != "" {
		q.Set("reason", reason)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}

// GET /api/calendar/status
func (h *CalendarHandler) Status(c *gin.Context) {
	st, err := h.calendar.Status(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/calendar/sync
func (h *CalendarHandler) Sync(c *gin.Context) {
	job, err := h.calendar.RequestSync(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// DELETE /api/calendar
func (h *CalendarHandler) Unlink(c *gin.Context) {
	if err := h.calendar.Unlink(c.Request.Context()); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

type errString string

func (e errString) Error() string { return string(e) }
