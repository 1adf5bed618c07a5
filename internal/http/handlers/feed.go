package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type FeedHandler struct {
	log    *logger.Logger
	feed   services.FeedService
	social services.SocialService
}

func NewFeedHandler(log *logger.Logger, feed services.FeedService, social services.SocialService) *FeedHandler {
	return &FeedHandler{
		log:    log.With("handler", "FeedHandler"),
		feed:   feed,
		social: social,
	}
}

// GET /api/feed?mode=&offset=&limit=
func (h *FeedHandler) Feed(c *gin.Context) {
	page, err := h.feed.Feed(c.Request.Context(), services.FeedQuery{
		Mode:   c.Query("mode"),
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", 0),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, page)
}

// POST /api/feed/posts
func (h *FeedHandler) CreatePost(c *gin.Context) {
	var req services.CreatePostInput
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.social.CreatePost(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"post": post})
}

// DELETE /api/feed/:id
func (h *FeedHandler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, "invalid_post_id")
	if !ok {
		return
	}
	if err := h.social.DeletePost(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}
