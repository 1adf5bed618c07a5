package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/http"
	httpH "github.com/yungbote/studyhub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyhub-backend/internal/http/middleware"
	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

const serviceName = "studyhub-api"

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Auth         *httpH.AuthHandler
	User         *httpH.UserHandler
	Subject      *httpH.SubjectHandler
	Assessment   *httpH.AssessmentHandler
	Task         *httpH.TaskHandler
	Note         *httpH.NoteHandler
	Group        *httpH.GroupHandler
	Library      *httpH.LibraryHandler
	Feed         *httpH.FeedHandler
	Gamification *httpH.GamificationHandler
	Pomodoro     *httpH.PomodoroHandler
	Calendar     *httpH.CalendarHandler
	Assistant    *httpH.AssistantHandler
	Job          *httpH.JobHandler
	Realtime     *httpH.RealtimeHandler
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth, cfg.CookieName),
	}
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	cookie := httpH.CookieConfig{Name: cfg.CookieName, Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Auth:         httpH.NewAuthHandler(log, services.Auth, cookie),
		User:         httpH.NewUserHandler(log, services.User, services.Social),
		Subject:      httpH.NewSubjectHandler(log, services.Subject),
		Assessment:   httpH.NewAssessmentHandler(log, services.Assessment),
		Task:         httpH.NewTaskHandler(log, services.Task),
		Note:         httpH.NewNoteHandler(log, services.Note),
		Group:        httpH.NewGroupHandler(log, services.Group),
		Library:      httpH.NewLibraryHandler(log, services.Library),
		Feed:         httpH.NewFeedHandler(log, services.Feed, services.Social),
		Gamification: httpH.NewGamificationHandler(log, services.Gamification),
		Pomodoro:     httpH.NewPomodoroHandler(log, services.Pomodoro),
		Calendar:     httpH.NewCalendarHandler(log, services.Calendar, cfg.CalendarReturnURL),
		Assistant:    httpH.NewAssistantHandler(log, services.Assistant),
		Job:          httpH.NewJobHandler(log, services.Jobs),
		Realtime:     httpH.NewRealtimeHandler(log, hub, services.Group),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, tracing bool, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:         log,
		Metrics:     metrics,
		ServiceName: serviceName,
		CORSOrigins: cfg.CORSOrigins,
		Tracing:     tracing,

		AuthMiddleware: middleware.Auth,

		HealthHandler:       handlers.Health,
		AuthHandler:         handlers.Auth,
		UserHandler:         handlers.User,
		SubjectHandler:      handlers.Subject,
		AssessmentHandler:   handlers.Assessment,
		TaskHandler:         handlers.Task,
		NoteHandler:         handlers.Note,
		GroupHandler:        handlers.Group,
		LibraryHandler:      handlers.Library,
		FeedHandler:         handlers.Feed,
		GamificationHandler: handlers.Gamification,
		PomodoroHandler:     handlers.Pomodoro,
		CalendarHandler:     handlers.Calendar,
		AssistantHandler:    handlers.Assistant,
		JobHandler:          handlers.Job,
		RealtimeHandler:     handlers.Realtime,
	})
}
