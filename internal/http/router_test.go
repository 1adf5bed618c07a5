package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/studyhub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyhub-backend/internal/http/middleware"
	"github.com/yungbote/studyhub-backend/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.SQLite(t)
	log := testutil.Logger(t)

	users := repos.NewUserRepo(db, log)
	auth := services.NewAuthService(db, log, users, repos.NewUserTokenRepo(db, log), nil, "test-secret", time.Hour, 24*time.Hour)
	user := services.NewUserService(db, log, users, repos.NewFollowRepo(db, log), repos.NewUserStatsRepo(db, log), repos.NewActivityRepo(db, log), nil)

	return NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth, ""),
		HealthHandler:  httpH.NewHealthHandler(db),
		AuthHandler:    httpH.NewAuthHandler(log, auth, httpH.CookieConfig{}),
		UserHandler:    httpH.NewUserHandler(log, user, nil),
	})
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndUnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	rec := call(t, r, stdhttp.MethodGet, "/healthcheck", "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = call(t, r, stdhttp.MethodGet, "/api/nope", "", nil)
	require.Equal(t, stdhttp.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"not_found"`)
}

func TestRegisterLoginAndMe(t *testing.T) {
	r := newTestRouter(t)

	rec := call(t, r, stdhttp.MethodPost, "/api/register", "", map[string]string{
		"email": "Ada@Example.com", "password": "correct-horse", "first_name": "Ada",
	})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, r, stdhttp.MethodPost, "/api/register", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse", "first_name": "Ada",
	})
	require.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = call(t, r, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = call(t, r, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var tokens services.Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	rec = call(t, r, stdhttp.MethodGet, "/api/me", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = call(t, r, stdhttp.MethodGet, "/api/me", tokens.AccessToken, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "ada@example.com")

	rec = call(t, r, stdhttp.MethodPost, "/api/refresh", tokens.AccessToken, map[string]string{"refresh_token": tokens.RefreshToken})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
}
