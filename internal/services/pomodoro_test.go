package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyhub-backend/internal/modules/pomodoro"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

func newPomodoro(f *fixture) PomodoroService {
	return NewPomodoroService(f.db, f.log,
		repos.NewPomodoroStateRepo(f.db, f.log),
		repos.NewPomodoroSessionRepo(f.db, f.log),
		f.subjects, f.activities, f.gam, f.pub, f.clock.Now)
}

func TestPomodoroDefaultsOnFirstRead(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.user(t, "a@example.com"))
	svc := newPomodoro(f)

	v, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, string(pomodoro.PhaseStudy), v.Phase)
	require.Equal(t, 25*60, v.TimeLeftSeconds)
	require.False(t, v.Running)
	require.Equal(t, pomodoro.PhaseBreak, v.NextPhase)
}

func TestPomodoroCompletesStudyPhaseOnRead(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	ctx := asUser(u)
	svc := newPomodoro(f)
	subj := testutil.SeedSubject(t, ctx, f.db, u, "Biology")

	v, err := svc.Start(ctx, &subj.ID)
	require.NoError(t, err)
	require.True(t, v.Running)

	f.clock.Advance(10 * time.Minute)
	v, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 15*60, v.TimeLeftSeconds)
	require.Empty(t, v.Transitions)

	f.clock.Advance(15*time.Minute + 30*time.Second)
	v, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Len(t, v.Transitions, 1)
	tr := v.Transitions[0]
	require.Equal(t, pomodoro.PhaseStudy, tr.From)
	require.Equal(t, pomodoro.PhaseBreak, tr.To)
	require.True(t, tr.Completed)
	require.Equal(t, string(pomodoro.PhaseBreak), v.Phase)
	require.False(t, v.Running)
	require.Equal(t, 1, v.CompletedStudyCount)

	sessions, err := svc.Sessions(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 25*60, sessions[0].DurationSeconds)
	require.Equal(t, subj.ID, *sessions[0].SubjectID)

	require.Len(t, f.pub.events(realtime.SSEEventPomodoroTransition), 1)
	// first_pomodoro, plus first_subject for the seeded subject.
	require.Len(t, f.pub.events(realtime.SSEEventAchievementUnlocked), 2)

	stats, err := f.stats.GetOrCreate(dbctx.Context{Ctx: ctx}, u)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PomodorosCompleted)
	// 15 for the pomodoro, 5 streak bonus, 10 + 5 for the two achievements.
	require.EqualValues(t, 35, stats.XPTotal)
}

func TestPomodoroSkipDoesNotRecordSession(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.user(t, "a@example.com"))
	svc := newPomodoro(f)

	_, err := svc.Start(ctx, nil)
	require.NoError(t, err)
	v, err := svc.Skip(ctx)
	require.NoError(t, err)
	require.Len(t, v.Transitions, 1)
	require.False(t, v.Transitions[0].Completed)
	require.Equal(t, string(pomodoro.PhaseBreak), v.Phase)
	require.Equal(t, 0, v.CompletedStudyCount)

	sessions, err := svc.Sessions(ctx, nil, 0)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestPomodoroPauseFreezesTime(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.user(t, "a@example.com"))
	svc := newPomodoro(f)

	_, err := svc.Start(ctx, nil)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	v, err := svc.Pause(ctx)
	require.NoError(t, err)
	require.Equal(t, 20*60, v.TimeLeftSeconds)

	f.clock.Advance(time.Hour)
	v, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 20*60, v.TimeLeftSeconds)

	v, err = svc.Reset(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 25*60, v.TimeLeftSeconds)
}

func TestPomodoroSettingsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.user(t, "a@example.com"))
	svc := newPomodoro(f)

	_, err := svc.UpdateSettings(ctx, PomodoroSettingsInput{StudyMinutes: 0, BreakMinutes: 5, LongBreakMinutes: 15})
	require.Error(t, err)

	v, err := svc.UpdateSettings(ctx, PomodoroSettingsInput{StudyMinutes: 50, BreakMinutes: 10, LongBreakMinutes: 30, AutoStart: true})
	require.NoError(t, err)
	require.Equal(t, 50*60, v.TimeLeftSeconds)
	require.True(t, v.AutoStart)
}
