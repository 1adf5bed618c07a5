package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type AuthRepos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo
}

type AcademicRepos struct {
	Subject    repos.SubjectRepo
	Assessment repos.AssessmentRepo
	Task       repos.TaskRepo
	Note       repos.NoteRepo
}

type GroupRepos struct {
	Group   repos.StudyGroupRepo
	Member  repos.GroupMemberRepo
	Message repos.GroupMessageRepo
}

type SocialRepos struct {
	Activity repos.ActivityRepo
	Follow   repos.FollowRepo
}

type GamificationRepos struct {
	Stats           repos.UserStatsRepo
	XPEvent         repos.XPEventRepo
	Achievement     repos.AchievementRepo
	UserAchievement repos.UserAchievementRepo
}

type PomodoroRepos struct {
	State   repos.PomodoroStateRepo
	Session repos.PomodoroSessionRepo
}

type CalendarRepos struct {
	Link  repos.CalendarLinkRepo
	Event repos.CalendarEventRepo
}

type AssistantRepos struct {
	Thread  repos.AssistantThreadRepo
	Message repos.AssistantMessageRepo
}

type Repos struct {
	Auth         AuthRepos
	Academic     AcademicRepos
	Groups       GroupRepos
	Library      repos.LibraryMaterialRepo
	Social       SocialRepos
	Gamification GamificationRepos
	Pomodoro     PomodoroRepos
	Calendar     CalendarRepos
	Assistant    AssistantRepos
	JobRun       repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Auth: AuthRepos{
			User:      repos.NewUserRepo(db, log),
			UserToken: repos.NewUserTokenRepo(db, log),
		},
		Academic: AcademicRepos{
			Subject:    repos.NewSubjectRepo(db, log),
			Assessment: repos.NewAssessmentRepo(db, log),
			Task:       repos.NewTaskRepo(db, log),
			Note:       repos.NewNoteRepo(db, log),
		},
		Groups: GroupRepos{
			Group:   repos.NewStudyGroupRepo(db, log),
			Member:  repos.NewGroupMemberRepo(db, log),
			Message: repos.NewGroupMessageRepo(db, log),
		},
		Library: repos.NewLibraryMaterialRepo(db, log),
		Social: SocialRepos{
			Activity: repos.NewActivityRepo(db, log),
			Follow:   repos.NewFollowRepo(db, log),
		},
		Gamification: GamificationRepos{
			Stats:           repos.NewUserStatsRepo(db, log),
			XPEvent:         repos.NewXPEventRepo(db, log),
			Achievement:     repos.NewAchievementRepo(db, log),
			UserAchievement: repos.NewUserAchievementRepo(db, log),
		},
		Pomodoro: PomodoroRepos{
			State:   repos.NewPomodoroStateRepo(db, log),
			Session: repos.NewPomodoroSessionRepo(db, log),
		},
		Calendar: CalendarRepos{
			Link:  repos.NewCalendarLinkRepo(db, log),
			Event: repos.NewCalendarEventRepo(db, log),
		},
		Assistant: AssistantRepos{
			Thread:  repos.NewAssistantThreadRepo(db, log),
			Message: repos.NewAssistantMessageRepo(db, log),
		},
		JobRun: repos.NewJobRunRepo(db, log),
	}
}
