package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

func codes(res *AwardResult) []string {
	var out []string
	for _, a := range res.Unlocked {
		out = append(out, a.Code)
	}
	return out
}

func TestAwardFirstTaskUnlocksAchievement(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	ref := uuid.New()

	res, err := f.gam.Award(dbctx.Context{Ctx: context.Background()}, u, domaingam.ReasonTaskCompleted, &ref)
	require.NoError(t, err)
	// 10 for the task, 5 for the first action today, 10 for first_task.
	require.Equal(t, 25, res.XPGained)
	require.EqualValues(t, 25, res.XPTotal)
	require.Equal(t, []string{"first_task"}, codes(res))
	require.Equal(t, 1, res.Streak)
	require.False(t, res.LeveledUp())

	f.gam.Publish(context.Background(), res)
	unlocked := f.pub.events(realtime.SSEEventAchievementUnlocked)
	require.Len(t, unlocked, 1)
	require.Equal(t, realtime.UserChannel(u), unlocked[0].Channel)
}

func TestAwardOnceIgnoresRepeatedRef(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	ref := uuid.New()
	dbc := dbctx.Context{Ctx: context.Background()}

	first, err := f.gam.AwardOnce(dbc, u, domaingam.ReasonTaskCompleted, ref)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := f.gam.AwardOnce(dbc, u, domaingam.ReasonTaskCompleted, ref)
	require.NoError(t, err)
	require.Nil(t, again)

	stats, err := f.stats.GetOrCreate(dbc, u)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TasksCompleted)
	require.Equal(t, first.XPTotal, stats.XPTotal)
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

type orderedStats struct {
	repos.UserStatsRepo
	log *callLog
}

func (o orderedStats) GetOrCreate(dbc dbctx.Context, userID uuid.UUID) (*types.UserStats, error) {
	o.log.add("stats")
	return o.UserStatsRepo.GetOrCreate(dbc, userID)
}

type orderedXP struct {
	repos.XPEventRepo
	log *callLog
}

func (o orderedXP) ExistsForRef(dbc dbctx.Context, userID uuid.UUID, reason string, refID uuid.UUID) (bool, error) {
	o.log.add("exists")
	return o.XPEventRepo.ExistsForRef(dbc, userID, reason, refID)
}

func TestAwardOnceChecksRefUnderStatsLock(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	calls := &callLog{}
	gam := NewGamificationService(f.db, f.log,
		orderedStats{UserStatsRepo: f.stats, log: calls},
		orderedXP{XPEventRepo: f.xp, log: calls},
		repos.NewAchievementRepo(f.db, f.log),
		repos.NewUserAchievementRepo(f.db, f.log),
		f.activities, f.notes, f.subjects, f.follows, f.users, f.pub, f.clock.Now)

	ref := uuid.New()
	dbc := dbctx.Context{Ctx: context.Background()}
	_, err := gam.AwardOnce(dbc, u, domaingam.ReasonTaskCompleted, ref)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(calls.calls), 2)
	require.Equal(t, []string{"stats", "exists"}, calls.calls[:2])

	calls.calls = nil
	again, err := gam.AwardOnce(dbc, u, domaingam.ReasonTaskCompleted, ref)
	require.NoError(t, err)
	require.Nil(t, again)
	require.Equal(t, []string{"stats", "exists"}, calls.calls)
}

func TestStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	dbc := dbctx.Context{Ctx: context.Background()}

	award := func() *AwardResult {
		t.Helper()
		res, err := f.gam.Award(dbc, u, domaingam.ReasonTaskCompleted, nil)
		require.NoError(t, err)
		return res
	}

	require.Equal(t, 1, award().Streak)

	// A second action the same day earns no streak bonus.
	same := award()
	require.Equal(t, 1, same.Streak)
	require.Equal(t, 10, same.XPGained)

	f.clock.Advance(24 * time.Hour)
	require.Equal(t, 2, award().Streak)

	f.clock.Advance(24 * time.Hour)
	third := award()
	require.Equal(t, 3, third.Streak)
	require.Contains(t, codes(third), "streak_3")

	// Missing a day restarts the streak but keeps the record.
	f.clock.Advance(48 * time.Hour)
	require.Equal(t, 1, award().Streak)
	stats, err := f.stats.GetOrCreate(dbc, u)
	require.NoError(t, err)
	require.Equal(t, 3, stats.LongestStreak)
}

func TestLevelUpPublishesEvent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	dbc := dbctx.Context{Ctx: context.Background()}

	var last *AwardResult
	for i := 0; i < 10 && (last == nil || !last.LeveledUp()); i++ {
		res, err := f.gam.Award(dbc, u, domaingam.ReasonTaskCompleted, nil)
		require.NoError(t, err)
		f.gam.Publish(context.Background(), res)
		last = res
	}
	require.True(t, last.LeveledUp())
	require.Equal(t, 2, last.LevelAfter)
	require.GreaterOrEqual(t, last.XPTotal, int64(100))
	require.Len(t, f.pub.events(realtime.SSEEventLevelUp), 1)
}

func TestSummaryAndAchievements(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	ctx := asUser(u)

	_, err := f.gam.Award(dbctx.Context{Ctx: ctx}, u, domaingam.ReasonTaskCompleted, nil)
	require.NoError(t, err)

	sum, err := f.gam.Summary(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 25, sum.Stats.XPTotal)
	require.Equal(t, 1, sum.AchievementsEarned)
	require.Greater(t, sum.AchievementsTotal, 1)
	require.Len(t, sum.RecentXP, 3)

	views, err := f.gam.Achievements(ctx)
	require.NoError(t, err)
	var sawFirst, sawPartial bool
	for _, v := range views {
		switch v.Code {
		case "first_task":
			sawFirst = v.Unlocked && v.Progress == 1
		case "tasks_25":
			sawPartial = !v.Unlocked && v.Progress > 0 && v.Progress < 1
		}
	}
	require.True(t, sawFirst)
	require.True(t, sawPartial)
}

func TestLeaderboardScopes(t *testing.T) {
	f := newFixture(t)
	me := f.user(t, "me@example.com")
	friend := f.user(t, "friend@example.com")
	stranger := f.user(t, "stranger@example.com")
	dbc := dbctx.Context{Ctx: context.Background()}

	for i, u := range []uuid.UUID{me, friend, friend, stranger, stranger, stranger} {
		_, err := f.gam.Award(dbc, u, domaingam.ReasonTaskCompleted, nil)
		require.NoError(t, err, "award %d", i)
	}
	_, err := f.follows.Follow(dbc, me, friend)
	require.NoError(t, err)

	global, err := f.gam.Leaderboard(asUser(me), "global", 10)
	require.NoError(t, err)
	require.Len(t, global, 3)
	require.Equal(t, stranger, global[0].User.ID)
	require.Equal(t, 1, global[0].Rank)

	following, err := f.gam.Leaderboard(asUser(me), "following", 10)
	require.NoError(t, err)
	require.Len(t, following, 2)
	require.Equal(t, friend, following[0].User.ID)

	_, err = f.gam.Leaderboard(asUser(me), "nearby", 10)
	require.Error(t, err)
}
