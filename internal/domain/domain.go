package domain

import (
	"github.com/yungbote/studyhub-backend/internal/domain/academic"
	"github.com/yungbote/studyhub-backend/internal/domain/assistant"
	"github.com/yungbote/studyhub-backend/internal/domain/auth"
	"github.com/yungbote/studyhub-backend/internal/domain/calendar"
	"github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/domain/groups"
	"github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/domain/library"
	"github.com/yungbote/studyhub-backend/internal/domain/pomodoro"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/domain/user"
)

type User = user.User
type PublicProfile = user.PublicProfile
type UserToken = auth.UserToken

type Subject = academic.Subject
type ScheduleSlot = academic.ScheduleSlot
type Assessment = academic.Assessment
type Task = academic.Task
type Note = academic.Note

type StudyGroup = groups.StudyGroup
type StudyGroupMember = groups.StudyGroupMember
type GroupMessage = groups.GroupMessage

type LibraryMaterial = library.Material

type Activity = social.Activity
type Follow = social.Follow

type UserStats = gamification.UserStats
type XPEvent = gamification.XPEvent
type Achievement = gamification.Achievement
type UserAchievement = gamification.UserAchievement

type PomodoroState = pomodoro.State
type PomodoroSession = pomodoro.Session

type CalendarLink = calendar.Link
type CalendarEvent = calendar.Event

type AssistantThread = assistant.Thread
type AssistantMessage = assistant.Message

type JobRun = jobs.JobRun

// Models lists every table AutoMigrate manages, in dependency order.
func Models() []any {
	return []any{
		&User{},
		&UserToken{},
		&Subject{},
		&Assessment{},
		&Task{},
		&Note{},
		&StudyGroup{},
		&StudyGroupMember{},
		&GroupMessage{},
		&LibraryMaterial{},
		&Activity{},
		&Follow{},
		&UserStats{},
		&XPEvent{},
		&Achievement{},
		&UserAchievement{},
		&PomodoroState{},
		&PomodoroSession{},
		&CalendarLink{},
		&CalendarEvent{},
		&AssistantThread{},
		&AssistantMessage{},
		&JobRun{},
	}
}
