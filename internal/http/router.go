package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studyhub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyhub-backend/internal/http/middleware"
	"github.com/yungbote/studyhub-backend/internal/http/validation"
	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	Tracing     bool

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler       *httpH.HealthHandler
	AuthHandler         *httpH.AuthHandler
	UserHandler         *httpH.UserHandler
	SubjectHandler      *httpH.SubjectHandler
	AssessmentHandler   *httpH.AssessmentHandler
	TaskHandler         *httpH.TaskHandler
	NoteHandler         *httpH.NoteHandler
	GroupHandler        *httpH.GroupHandler
	LibraryHandler      *httpH.LibraryHandler
	FeedHandler         *httpH.FeedHandler
	GamificationHandler *httpH.GamificationHandler
	PomodoroHandler     *httpH.PomodoroHandler
	CalendarHandler     *httpH.CalendarHandler
	AssistantHandler    *httpH.AssistantHandler
	JobHandler          *httpH.JobHandler
	RealtimeHandler     *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	validation.Register()

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
		// Google redirects here without our token; the state parameter carries the user.
		if cfg.CalendarHandler != nil {
			api.GET("/calendar/callback", cfg.CalendarHandler.Callback)
		}
		if cfg.AuthHandler != nil && cfg.AuthMiddleware != nil {
			api.POST("/refresh", cfg.AuthMiddleware.RequireAuthAllowExpired(), cfg.AuthHandler.Refresh)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		if h := cfg.UserHandler; h != nil {
			protected.GET("/me", h.GetMe)
			protected.PATCH("/me", h.UpdateMe)
			protected.POST("/me/avatar", h.UploadAvatar)
			protected.GET("/users", h.Search)
			protected.GET("/users/:id", h.GetProfile)
			protected.POST("/users/:id/follow", h.Follow)
			protected.DELETE("/users/:id/follow", h.Unfollow)
			protected.GET("/users/:id/followers", h.Followers)
			protected.GET("/users/:id/following", h.Following)
		}

		if h := cfg.SubjectHandler; h != nil {
			protected.GET("/subjects", h.List)
			protected.POST("/subjects", h.Create)
			protected.GET("/subjects/:id", h.Get)
			protected.PATCH("/subjects/:id", h.Update)
			protected.DELETE("/subjects/:id", h.Delete)
		}

		if h := cfg.AssessmentHandler; h != nil {
			protected.GET("/assessments", h.List)
			protected.POST("/assessments", h.Create)
			protected.GET("/assessments/:id", h.Get)
			protected.PATCH("/assessments/:id", h.Update)
			protected.DELETE("/assessments/:id", h.Delete)
		}

		if h := cfg.TaskHandler; h != nil {
			protected.GET("/tasks", h.List)
			protected.POST("/tasks", h.Create)
			protected.GET("/tasks/:id", h.Get)
			protected.PATCH("/tasks/:id", h.Update)
			protected.DELETE("/tasks/:id", h.Delete)
			protected.POST("/tasks/:id/complete", h.Complete)
			protected.POST("/tasks/:id/reopen", h.Reopen)
		}

		if h := cfg.NoteHandler; h != nil {
			protected.GET("/notes", h.List)
			protected.POST("/notes", h.Create)
			protected.GET("/notes/:id", h.Get)
			protected.PATCH("/notes/:id", h.Update)
			protected.DELETE("/notes/:id", h.Delete)
		}

		if h := cfg.GroupHandler; h != nil {
			protected.GET("/groups", h.List)
			protected.POST("/groups", h.Create)
			protected.GET("/groups/:id", h.Get)
			protected.DELETE("/groups/:id", h.Delete)
			protected.POST("/groups/:id/join", h.Join)
			protected.POST("/groups/:id/leave", h.Leave)
			protected.POST("/groups/:id/invite", h.Invite)
			protected.GET("/groups/:id/messages", h.Messages)
			protected.POST("/groups/:id/messages", h.PostMessage)
		}

		if h := cfg.LibraryHandler; h != nil {
			protected.GET("/library", h.List)
			protected.POST("/library", h.Create)
			protected.GET("/library/:id", h.Get)
			protected.PATCH("/library/:id", h.Update)
			protected.DELETE("/library/:id", h.Delete)
		}

		if h := cfg.FeedHandler; h != nil {
			protected.GET("/feed", h.Feed)
			protected.POST("/feed/posts", h.CreatePost)
			protected.DELETE("/feed/:id", h.DeletePost)
		}

		if h := cfg.GamificationHandler; h != nil {
			protected.GET("/gamification/me", h.Summary)
			protected.GET("/gamification/achievements", h.Achievements)
			protected.GET("/gamification/leaderboard", h.Leaderboard)
		}

		if h := cfg.PomodoroHandler; h != nil {
			protected.GET("/pomodoro", h.Get)
			protected.PUT("/pomodoro/settings", h.UpdateSettings)
			protected.POST("/pomodoro/start", h.Start)
			protected.POST("/pomodoro/pause", h.Pause)
			protected.POST("/pomodoro/skip", h.Skip)
			protected.POST("/pomodoro/reset", h.Reset)
			protected.GET("/pomodoro/sessions", h.Sessions)
		}

		if h := cfg.CalendarHandler; h != nil {
			protected.GET("/calendar/auth-url", h.AuthURL)
			protected.GET("/calendar/status", h.Status)
			protected.POST("/calendar/sync", h.Sync)
			protected.DELETE("/calendar", h.Unlink)
		}

		if h := cfg.AssistantHandler; h != nil {
			protected.POST("/assistant/chat", h.Chat)
			protected.GET("/assistant/threads", h.Threads)
			protected.GET("/assistant/threads/:id/messages", h.Messages)
			protected.DELETE("/assistant/threads/:id", h.DeleteThread)
		}

		// Job
		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
