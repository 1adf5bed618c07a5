package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyhub-backend/internal/http/validation"
	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type harness struct {
	db     *gorm.DB
	engine *gin.Engine
}

// asUser stands in for AuthMiddleware: X-Test-User carries the caller's id.
func asUser(c *gin.Context) {
	id, err := uuid.Parse(c.GetHeader("X-Test-User"))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
	c.Request = c.Request.WithContext(ctx)
	c.Set("user_id", id)
	c.Next()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Register()

	db := testutil.SQLite(t)
	log := testutil.Logger(t)

	users := repos.NewUserRepo(db, log)
	follows := repos.NewFollowRepo(db, log)
	subjectRepo := repos.NewSubjectRepo(db, log)
	assessmentRepo := repos.NewAssessmentRepo(db, log)
	taskRepo := repos.NewTaskRepo(db, log)
	noteRepo := repos.NewNoteRepo(db, log)
	activities := repos.NewActivityRepo(db, log)

	gam := services.NewGamificationService(db, log,
		repos.NewUserStatsRepo(db, log),
		repos.NewXPEventRepo(db, log),
		repos.NewAchievementRepo(db, log),
		repos.NewUserAchievementRepo(db, log),
		activities, noteRepo, subjectRepo, follows, users, nil, nil)
	jobs := services.NewJobService(db, log, repos.NewJobRunRepo(db, log), services.NewJobNotifier(nil))
	social := services.NewSocialService(db, log, users, follows, activities, subjectRepo, gam, jobs, nil)
	feed := services.NewFeedService(log, activities, follows, subjectRepo, users, nil, nil)

	r := gin.New()
	api := r.Group("/api", asUser)

	sh := NewSubjectHandler(log, services.NewSubjectService(db, log, subjectRepo, assessmentRepo, taskRepo, noteRepo, gam))
	api.GET("/subjects", sh.List)
	api.POST("/subjects", sh.Create)
	api.GET("/subjects/:id", sh.Get)
	api.PATCH("/subjects/:id", sh.Update)
	api.DELETE("/subjects/:id", sh.Delete)

	ah := NewAssessmentHandler(log, services.NewAssessmentService(db, log, assessmentRepo, subjectRepo, activities, gam, nil, nil))
	api.POST("/assessments", ah.Create)
	api.GET("/assessments/:id", ah.Get)
	api.PATCH("/assessments/:id", ah.Update)
	api.DELETE("/assessments/:id", ah.Delete)

	lh := NewLibraryHandler(log, services.NewLibraryService(db, log, repos.NewLibraryMaterialRepo(db, log), subjectRepo, activities, nil, nil))
	api.POST("/library", lh.Create)
	api.GET("/library/:id", lh.Get)
	api.PATCH("/library/:id", lh.Update)
	api.DELETE("/library/:id", lh.Delete)

	th := NewTaskHandler(log, services.NewTaskService(db, log, taskRepo, subjectRepo, activities, gam, nil, nil))
	api.GET("/tasks", th.List)
	api.POST("/tasks", th.Create)
	api.PATCH("/tasks/:id", th.Update)
	api.DELETE("/tasks/:id", th.Delete)
	api.POST("/tasks/:id/complete", th.Complete)

	nh := NewNoteHandler(log, services.NewNoteService(db, log, noteRepo, subjectRepo, activities, gam, nil))
	api.POST("/notes", nh.Create)
	api.GET("/notes/:id", nh.Get)
	api.PATCH("/notes/:id", nh.Update)
	api.DELETE("/notes/:id", nh.Delete)

	fh := NewFeedHandler(log, feed, social)
	api.GET("/feed", fh.Feed)
	api.POST("/feed/posts", fh.CreatePost)
	api.DELETE("/feed/:id", fh.DeletePost)

	return &harness{db: db, engine: r}
}

func (h *harness) do(t *testing.T, user uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rr := httptest.NewRecorder()
	h.engine.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env, _ := decode(t, rr)["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func TestSubjectCreateAndValidation(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, context.Background(), h.db, "a@example.com")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"ok", map[string]any{"name": "Physics", "color": "#a1b2c3", "schedule": []map[string]any{{"weekday": 1, "start": "09:00", "end": "10:30"}}}, http.StatusCreated},
		{"missing name", map[string]any{"color": "#a1b2c3"}, http.StatusBadRequest},
		{"short color", map[string]any{"name": "X", "color": "#abc"}, http.StatusBadRequest},
		{"bad weekday", map[string]any{"name": "X", "schedule": []map[string]any{{"weekday": 7, "start": "09:00", "end": "10:00"}}}, http.StatusBadRequest},
		{"bad clock", map[string]any{"name": "X", "schedule": []map[string]any{{"weekday": 2, "start": "25:00", "end": "26:00"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(t, u.ID, http.MethodPost, "/api/subjects", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}

	rr := h.do(t, u.ID, http.MethodGet, "/api/subjects", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list, _ := decode(t, rr)["subjects"].([]any)
	require.Len(t, list, 1)
}

func TestForeignRowsAreNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, ctx, h.db, "owner@example.com")
	other := testutil.SeedUser(t, ctx, h.db, "other@example.com")
	subj := testutil.SeedSubject(t, ctx, h.db, owner.ID, "Chemistry")
	task := testutil.SeedTask(t, ctx, h.db, owner.ID, "Lab report")

	rr := h.do(t, owner.ID, http.MethodPost, "/api/notes", map[string]any{"title": "Mine", "content": "secret"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	note, _ := decode(t, rr)["note"].(map[string]any)
	noteID, _ := note["id"].(string)

	rr = h.do(t, owner.ID, http.MethodPost, "/api/assessments", map[string]any{
		"subject_id": subj.ID, "type": "exam", "title": "Midterm", "due_date": "2030-05-01T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assessment, _ := decode(t, rr)["assessment"].(map[string]any)
	assessmentID, _ := assessment["id"].(string)

	// Public material: visible to everyone, still only the owner may change it.
	rr = h.do(t, owner.ID, http.MethodPost, "/api/library", map[string]any{
		"title": "Past papers", "url": "https://example.com/papers.pdf", "visibility": "public",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	material, _ := decode(t, rr)["material"].(map[string]any)
	materialID, _ := material["id"].(string)
	rr = h.do(t, other.ID, http.MethodGet, "/api/library/"+materialID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	tests := []struct {
		method, path string
		body         any
		code         string
	}{
		{http.MethodPatch, "/api/subjects/" + subj.ID.String(), map[string]any{"name": "Stolen"}, "subject_not_found"},
		{http.MethodDelete, "/api/subjects/" + subj.ID.String(), nil, "subject_not_found"},
		{http.MethodPatch, "/api/tasks/" + task.ID.String(), map[string]any{"title": "Stolen"}, "task_not_found"},
		{http.MethodDelete, "/api/tasks/" + task.ID.String(), nil, "task_not_found"},
		{http.MethodPost, "/api/tasks/" + task.ID.String() + "/complete", nil, "task_not_found"},
		{http.MethodGet, "/api/notes/" + noteID, nil, "note_not_found"},
		{http.MethodPatch, "/api/notes/" + noteID, map[string]any{"title": "Stolen"}, "note_not_found"},
		{http.MethodDelete, "/api/notes/" + noteID, nil, "note_not_found"},
		{http.MethodGet, "/api/assessments/" + assessmentID, nil, "assessment_not_found"},
		{http.MethodPatch, "/api/assessments/" + assessmentID, map[string]any{"title": "Stolen"}, "assessment_not_found"},
		{http.MethodDelete, "/api/assessments/" + assessmentID, nil, "assessment_not_found"},
		{http.MethodPatch, "/api/library/" + materialID, map[string]any{"title": "Stolen"}, "material_not_found"},
		{http.MethodDelete, "/api/library/" + materialID, nil, "material_not_found"},
	}
	for _, tt := range tests {
		rr := h.do(t, other.ID, tt.method, tt.path, tt.body)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: status=%d body=%s", tt.method, tt.path, rr.Code, rr.Body.String())
		}
		if got := errorCode(t, rr); got != tt.code {
			t.Fatalf("%s %s: code=%q want %q", tt.method, tt.path, got, tt.code)
		}
	}

	// The owner's rows survived.
	rr = h.do(t, owner.ID, http.MethodGet, "/api/subjects/"+subj.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got, _ := decode(t, rr)["subject"].(map[string]any)
	require.Equal(t, "Chemistry", got["name"])

	rr = h.do(t, owner.ID, http.MethodGet, "/api/assessments/"+assessmentID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got, _ = decode(t, rr)["assessment"].(map[string]any)
	require.Equal(t, "Midterm", got["title"])

	rr = h.do(t, owner.ID, http.MethodGet, "/api/library/"+materialID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got, _ = decode(t, rr)["material"].(map[string]any)
	require.Equal(t, "Past papers", got["title"])

	rr = h.do(t, owner.ID, http.MethodGet, "/api/notes/"+noteID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got, _ = decode(t, rr)["note"].(map[string]any)
	require.Equal(t, "Mine", got["title"])
}

func TestInvalidPathID(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, context.Background(), h.db, "a@example.com")

	rr := h.do(t, u.ID, http.MethodDelete, "/api/tasks/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_task_id", errorCode(t, rr))
}

func TestCompleteTaskAwardsXPOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, h.db, "a@example.com")
	task := testutil.SeedTask(t, ctx, h.db, u.ID, "Read chapter 3")

	rr := h.do(t, u.ID, http.MethodPost, "/api/tasks/"+task.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	award, ok := body["award"].(map[string]any)
	require.True(t, ok, "expected award in %v", body)
	require.EqualValues(t, 15, award["xp_gained"]) // task plus the first-of-day streak bonus

	rr = h.do(t, u.ID, http.MethodPost, "/api/tasks/"+task.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	_, again := decode(t, rr)["award"]
	require.False(t, again)
}

func TestFeedPostLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, ctx, h.db, "author@example.com")
	other := testutil.SeedUser(t, ctx, h.db, "other@example.com")

	rr := h.do(t, author.ID, http.MethodPost, "/api/feed/posts", map[string]any{"content": ""})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, author.ID, http.MethodPost, "/api/feed/posts", map[string]any{"content": "Finished my thesis draft"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	post, _ := decode(t, rr)["post"].(map[string]any)
	postID, _ := post["id"].(string)
	require.NotEmpty(t, postID)

	rr = h.do(t, other.ID, http.MethodDelete, "/api/feed/"+postID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, author.ID, http.MethodGet, "/api/feed?mode=mine", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = h.do(t, author.ID, http.MethodDelete, "/api/feed/"+postID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, uuid.Nil, http.MethodGet, "/api/subjects", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
