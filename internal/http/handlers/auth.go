package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

func (cc CookieConfig) refreshName() string { return cc.Name + "_refresh" }

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "studyhub_session"
	}
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
		cookie:      cookie,
	}
}

func (ah *AuthHandler) setCookies(c *gin.Context, tokens *services.Tokens) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ah.cookie.Name, tokens.AccessToken, int(ah.authService.GetRefreshTTL().Seconds()), "/", ah.cookie.Domain, ah.cookie.Secure, true)
	c.SetCookie(ah.cookie.refreshName(), tokens.RefreshToken, int(ah.authService.GetRefreshTTL().Seconds()), "/api/refresh", ah.cookie.Domain, ah.cookie.Secure, true)
}

func (ah *AuthHandler) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ah.cookie.Name, "", -1, "/", ah.cookie.Domain, ah.cookie.Secure, true)
	c.SetCookie(ah.cookie.refreshName(), "", -1, "/api/refresh", ah.cookie.Domain, ah.cookie.Secure, true)
}

// POST /api/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := ah.authService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, ah.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"user": user})
}

// POST /api/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.RespondServiceError(c, ah.log, err)
		return
	}
	ah.setCookies(c, tokens)
	response.RespondOK(c, tokens)
}

// POST /api/refresh
// The refresh token comes from the body, the X-Refresh-Token header or the refresh
// cookie, in that order.
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token = strings.TrimSpace(c.GetHeader("X-Refresh-Token"))
	}
	if token == "" {
		token, _ = c.Cookie(ah.cookie.refreshName())
	}
	tokens, err := ah.authService.RefreshUser(c.Request.Context(), token)
	if err != nil {
		ah.clearCookies(c)
		response.RespondServiceError(c, ah.log, err)
		return
	}
	ah.setCookies(c, tokens)
	response.RespondOK(c, tokens)
}

// POST /api/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.LogoutUser(c.Request.Context()); err != nil {
		response.RespondServiceError(c, ah.log, err)
		return
	}
	ah.clearCookies(c)
	response.RespondOK(c, gin.H{"ok": true})
}
