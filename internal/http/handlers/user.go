package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type UserHandler struct {
	log    *logger.Logger
	users  services.UserService
	social services.SocialService
}

func NewUserHandler(log *logger.Logger, users services.UserService, social services.SocialService) *UserHandler {
	return &UserHandler{
		log:    log.With("handler", "UserHandler"),
		users:  users,
		social: social,
	}
}

// GET /api/me
func (h *UserHandler) GetMe(c *gin.Context) {
	me, err := h.users.GetMe(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": me})
}

// PATCH /api/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileInput
	if !bindJSON(c, &req) {
		return
	}
	me, err := h.users.UpdateMe(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": me})
}

// POST /api/me/avatar (multipart field "file")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("multipart field \"file\" is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()

	me, err := h.users.UploadAvatar(c.Request.Context(), services.AvatarUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": me})
}

// GET /api/users?query=
func (h *UserHandler) Search(c *gin.Context) {
	out, err := h.users.Search(c.Request.Context(), c.Query("query"), queryInt(c, "limit", 20))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"users": out})
}

// GET /api/users/:id
func (h *UserHandler) GetProfile(c *gin.Context) {
	id, ok := pathID(c, "invalid_user_id")
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, profile)
}

// POST /api/users/:id/follow
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := pathID(c, "invalid_user_id")
	if !ok {
		return
	}
	if err := h.social.Follow(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// DELETE /api/users/:id/follow
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := pathID(c, "invalid_user_id")
	if !ok {
		return
	}
	if err := h.social.Unfollow(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /api/users/:id/followers
func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := pathID(c, "invalid_user_id")
	if !ok {
		return
	}
	out, err := h.social.Followers(c.Request.Context(), id, queryInt(c, "offset", 0), queryInt(c, "limit", 50))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"users": out})
}

// GET /api/users/:id/following
func (h *UserHandler) Following(c *gin.Context) {
	id, ok := pathID(c, "invalid_user_id")
	if !ok {
		return
	}
	out, err := h.social.Following(c.Request.Context(), id, queryInt(c, "offset", 0), queryInt(c, "limit", 50))
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"users": out})
}
