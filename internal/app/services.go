package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/jobs/pipeline/achievement_eval"
	"github.com/yungbote/studyhub-backend/internal/jobs/pipeline/assessment_reminder_scan"
	"github.com/yungbote/studyhub-backend/internal/jobs/pipeline/calendar_sync"
	"github.com/yungbote/studyhub-backend/internal/jobs/pipeline/email_send"
	jobruntime "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/jobs/scheduler"
	"github.com/yungbote/studyhub-backend/internal/jobs/worker"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type Services struct {
	Publisher realtime.Publisher

	Jobs         services.JobService
	Email        services.EmailService
	Auth         services.AuthService
	User         services.UserService
	Gamification services.GamificationService
	Calendar     services.CalendarService
	Subject      services.SubjectService
	Assessment   services.AssessmentService
	Task         services.TaskService
	Note         services.NoteService
	Group        services.GroupService
	Library      services.LibraryService
	Social       services.SocialService
	Feed         services.FeedService
	Pomodoro     services.PomodoroService
	Assistant    services.AssistantService

	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
	Scheduler   *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	// The API fans out through its hub. A worker-only process has no connected clients
	// and must publish to Redis so an API instance can deliver.
	if !cfg.RunServer && clients.SSEBus == nil {
		return Services{}, fmt.Errorf("worker requires REDIS_ADDR to publish SSE events")
	}
	var publisherHub *realtime.SSEHub
	if cfg.RunServer {
		publisherHub = hub
	}
	publisher := realtime.NewPublisher(log, publisherHub, clients.SSEBus)

	jobNotifier := services.NewJobNotifier(publisher)
	jobService := services.NewJobService(db, log, repos.JobRun, jobNotifier)
	emailService := services.NewEmailService(log, clients.Mail, clients.SendGrid, jobService)

	authService := services.NewAuthService(
		db,
		log,
		repos.Auth.User,
		repos.Auth.UserToken,
		emailService,
		cfg.JWTSecretKey,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	userService := services.NewUserService(
		db,
		log,
		repos.Auth.User,
		repos.Social.Follow,
		repos.Gamification.Stats,
		repos.Social.Activity,
		clients.Bucket,
	)

	gamification := services.NewGamificationService(
		db,
		log,
		repos.Gamification.Stats,
		repos.Gamification.XPEvent,
		repos.Gamification.Achievement,
		repos.Gamification.UserAchievement,
		repos.Social.Activity,
		repos.Academic.Note,
		repos.Academic.Subject,
		repos.Social.Follow,
		repos.Auth.User,
		publisher,
		nil,
	)

	calendar := services.NewCalendarService(
		db,
		log,
		clients.Calendar,
		repos.Calendar.Link,
		repos.Calendar.Event,
		repos.Academic.Assessment,
		repos.Academic.Task,
		repos.Academic.Subject,
		jobService,
		publisher,
		cfg.CalendarStateSecret,
		nil,
	)

	subjectService := services.NewSubjectService(db, log, repos.Academic.Subject, repos.Academic.Assessment, repos.Academic.Task, repos.Academic.Note, gamification)
	assessmentService := services.NewAssessmentService(db, log, repos.Academic.Assessment, repos.Academic.Subject, repos.Social.Activity, gamification, calendar, nil)
	taskService := services.NewTaskService(db, log, repos.Academic.Task, repos.Academic.Subject, repos.Social.Activity, gamification, calendar, nil)
	noteService := services.NewNoteService(db, log, repos.Academic.Note, repos.Academic.Subject, repos.Social.Activity, gamification, nil)

	groupService := services.NewGroupService(
		db,
		log,
		repos.Groups.Group,
		repos.Groups.Member,
		repos.Groups.Message,
		repos.Auth.User,
		repos.Academic.Subject,
		emailService,
		publisher,
		nil,
	)
	libraryService := services.NewLibraryService(db, log, repos.Library, repos.Academic.Subject, repos.Social.Activity, clients.Bucket, nil)
	socialService := services.NewSocialService(db, log, repos.Auth.User, repos.Social.Follow, repos.Social.Activity, repos.Academic.Subject, gamification, jobService, nil)
	feedService := services.NewFeedService(log, repos.Social.Activity, repos.Social.Follow, repos.Academic.Subject, repos.Auth.User, clients.Cache, nil)
	pomodoroService := services.NewPomodoroService(db, log, repos.Pomodoro.State, repos.Pomodoro.Session, repos.Academic.Subject, repos.Social.Activity, gamification, publisher, nil)

	// A typed nil *openai.Client inside the interface would defeat the disabled check.
	var llm services.LLM
	if clients.LLM != nil {
		llm = clients.LLM
	}
	quota := services.NewAssistantQuota(log, clients.Cache, cfg.AssistantDailyLimit, nil)
	assistantService := services.NewAssistantService(
		db,
		log,
		llm,
		quota,
		repos.Assistant.Thread,
		repos.Assistant.Message,
		repos.Academic.Assessment,
		repos.Academic.Task,
		repos.Auth.User,
		nil,
	)

	jobRegistry := jobruntime.NewRegistry()
	handlers := []jobruntime.Handler{
		email_send.New(log, emailService),
		calendar_sync.New(log, calendar),
		achievement_eval.New(log, gamification),
		assessment_reminder_scan.New(db, log, repos.Academic.Assessment, repos.Auth.User, emailService, nil),
	}
	for _, h := range handlers {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}

	var jobWorker *worker.Worker
	var sched *scheduler.Scheduler
	if cfg.RunWorker {
		jobWorker = worker.NewWorker(db, log, repos.JobRun, jobRegistry, jobNotifier, worker.ConfigFromEnv())
		sched = scheduler.New(log, scheduler.ConfigFromEnv(), jobService, authService, repos.JobRun)
	}

	return Services{
		Publisher:    publisher,
		Jobs:         jobService,
		Email:        emailService,
		Auth:         authService,
		User:         userService,
		Gamification: gamification,
		Calendar:     calendar,
		Subject:      subjectService,
		Assessment:   assessmentService,
		Task:         taskService,
		Note:         noteService,
		Group:        groupService,
		Library:      libraryService,
		Social:       socialService,
		Feed:         feedService,
		Pomodoro:     pomodoroService,
		Assistant:    assistantService,
		JobRegistry:  jobRegistry,
		JobWorker:    jobWorker,
		Scheduler:    sched,
	}, nil
}
