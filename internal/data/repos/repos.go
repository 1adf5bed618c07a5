package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos/academic"
	"github.com/yungbote/studyhub-backend/internal/data/repos/assistant"
	"github.com/yungbote/studyhub-backend/internal/data/repos/auth"
	"github.com/yungbote/studyhub-backend/internal/data/repos/calendar"
	"github.com/yungbote/studyhub-backend/internal/data/repos/gamification"
	"github.com/yungbote/studyhub-backend/internal/data/repos/groups"
	"github.com/yungbote/studyhub-backend/internal/data/repos/jobs"
	"github.com/yungbote/studyhub-backend/internal/data/repos/library"
	"github.com/yungbote/studyhub-backend/internal/data/repos/pomodoro"
	"github.com/yungbote/studyhub-backend/internal/data/repos/social"
	"github.com/yungbote/studyhub-backend/internal/data/repos/user"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type UserTokenRepo = auth.UserTokenRepo

type SubjectRepo = academic.SubjectRepo
type AssessmentRepo = academic.AssessmentRepo
type AssessmentFilter = academic.AssessmentFilter
type TaskRepo = academic.TaskRepo
type TaskFilter = academic.TaskFilter
type NoteRepo = academic.NoteRepo
type NoteFilter = academic.NoteFilter

type StudyGroupRepo = groups.StudyGroupRepo
type GroupMemberRepo = groups.GroupMemberRepo
type GroupMessageRepo = groups.GroupMessageRepo

type LibraryMaterialRepo = library.MaterialRepo
type LibraryMaterialFilter = library.MaterialFilter

type ActivityRepo = social.ActivityRepo
type FollowRepo = social.FollowRepo

type UserStatsRepo = gamification.UserStatsRepo
type XPEventRepo = gamification.XPEventRepo
type AchievementRepo = gamification.AchievementRepo
type UserAchievementRepo = gamification.UserAchievementRepo

type PomodoroStateRepo = pomodoro.StateRepo
type PomodoroSessionRepo = pomodoro.SessionRepo

type CalendarLinkRepo = calendar.LinkRepo
type CalendarEventRepo = calendar.EventRepo

type AssistantThreadRepo = assistant.ThreadRepo
type AssistantMessageRepo = assistant.MessageRepo

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }
func NewUserTokenRepo(db *gorm.DB, log *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, log)
}

func NewSubjectRepo(db *gorm.DB, log *logger.Logger) SubjectRepo {
	return academic.NewSubjectRepo(db, log)
}
func NewAssessmentRepo(db *gorm.DB, log *logger.Logger) AssessmentRepo {
	return academic.NewAssessmentRepo(db, log)
}
func NewTaskRepo(db *gorm.DB, log *logger.Logger) TaskRepo { return academic.NewTaskRepo(db, log) }
func NewNoteRepo(db *gorm.DB, log *logger.Logger) NoteRepo { return academic.NewNoteRepo(db, log) }

func NewStudyGroupRepo(db *gorm.DB, log *logger.Logger) StudyGroupRepo {
	return groups.NewStudyGroupRepo(db, log)
}
func NewGroupMemberRepo(db *gorm.DB, log *logger.Logger) GroupMemberRepo {
	return groups.NewGroupMemberRepo(db, log)
}
func NewGroupMessageRepo(db *gorm.DB, log *logger.Logger) GroupMessageRepo {
	return groups.NewGroupMessageRepo(db, log)
}

func NewLibraryMaterialRepo(db *gorm.DB, log *logger.Logger) LibraryMaterialRepo {
	return library.NewMaterialRepo(db, log)
}

func NewActivityRepo(db *gorm.DB, log *logger.Logger) ActivityRepo {
	return social.NewActivityRepo(db, log)
}
func NewFollowRepo(db *gorm.DB, log *logger.Logger) FollowRepo { return social.NewFollowRepo(db, log) }

func NewUserStatsRepo(db *gorm.DB, log *logger.Logger) UserStatsRepo {
	return gamification.NewUserStatsRepo(db, log)
}
func NewXPEventRepo(db *gorm.DB, log *logger.Logger) XPEventRepo {
	return gamification.NewXPEventRepo(db, log)
}
func NewAchievementRepo(db *gorm.DB, log *logger.Logger) AchievementRepo {
	return gamification.NewAchievementRepo(db, log)
}
func NewUserAchievementRepo(db *gorm.DB, log *logger.Logger) UserAchievementRepo {
	return gamification.NewUserAchievementRepo(db, log)
}

func NewPomodoroStateRepo(db *gorm.DB, log *logger.Logger) PomodoroStateRepo {
	return pomodoro.NewStateRepo(db, log)
}
func NewPomodoroSessionRepo(db *gorm.DB, log *logger.Logger) PomodoroSessionRepo {
	return pomodoro.NewSessionRepo(db, log)
}

func NewCalendarLinkRepo(db *gorm.DB, log *logger.Logger) CalendarLinkRepo {
	return calendar.NewLinkRepo(db, log)
}
func NewCalendarEventRepo(db *gorm.DB, log *logger.Logger) CalendarEventRepo {
	return calendar.NewEventRepo(db, log)
}

func NewAssistantThreadRepo(db *gorm.DB, log *logger.Logger) AssistantThreadRepo {
	return assistant.NewThreadRepo(db, log)
}
func NewAssistantMessageRepo(db *gorm.DB, log *logger.Logger) AssistantMessageRepo {
	return assistant.NewMessageRepo(db, log)
}

func NewJobRunRepo(db *gorm.DB, log *logger.Logger) JobRunRepo { return jobs.NewJobRunRepo(db, log) }
