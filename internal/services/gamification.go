package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/modules/gamification"
	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

// AwardResult describes what one qualifying action changed. Publish it after the
// surrounding transaction commits.
type AwardResult struct {
	UserID      uuid.UUID             `json:"user_id"`
	Reason      string                `json:"reason,omitempty"`
	XPGained    int                   `json:"xp_gained"`
	XPTotal     int64                 `json:"xp_total"`
	LevelBefore int                   `json:"level_before"`
	LevelAfter  int                   `json:"level_after"`
	Streak      int                   `json:"streak"`
	Unlocked    []*types.Achievement  `json:"unlocked,omitempty"`
	Events      []*types.XPEvent      `json:"-"`
	Progress    gamification.Progress `json:"progress"`
}

func (r *AwardResult) LeveledUp() bool {
	return r != nil && r.LevelAfter > r.LevelBefore
}

type GamificationSummary struct {
	Stats              *types.UserStats      `json:"stats"`
	Progress           gamification.Progress `json:"progress"`
	AchievementsTotal  int                   `json:"achievements_total"`
	AchievementsEarned int                   `json:"achievements_earned"`
	RecentXP           []*types.XPEvent      `json:"recent_xp"`
}

type AchievementView struct {
	*types.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Progress   float64    `json:"progress"`
}

type LeaderboardEntry struct {
	Rank    int                 `json:"rank"`
	User    types.PublicProfile `json:"user"`
	XPTotal int64               `json:"xp_total"`
	Level   int                 `json:"level"`
	Streak  int                 `json:"streak"`
}

type GamificationService interface {
	SeedCatalog(ctx context.Context) error
	// Award records a qualifying action: fixed XP for reason, the daily streak bonus,
	// counters, level and any achievements that became due.
	Award(dbc dbctx.Context, userID uuid.UUID, reason string, refID *uuid.UUID) (*AwardResult, error)
	// AwardOnce is Award unless reason was already awarded for refID, in which case it
	// returns a nil result.
	AwardOnce(dbc dbctx.Context, userID uuid.UUID, reason string, refID uuid.UUID) (*AwardResult, error)
	// Evaluate re-checks achievements without awarding action XP or touching the streak.
	Evaluate(dbc dbctx.Context, userID uuid.UUID) (*AwardResult, error)
	Publish(ctx context.Context, res *AwardResult)

	Summary(ctx context.Context) (*GamificationSummary, error)
	Achievements(ctx context.Context) ([]AchievementView, error)
	Leaderboard(ctx context.Context, scope string, limit int) ([]LeaderboardEntry, error)
}

type gamificationService struct {
	db           *gorm.DB
	log          *logger.Logger
	stats        repos.UserStatsRepo
	xp           repos.XPEventRepo
	achievements repos.AchievementRepo
	unlocks      repos.UserAchievementRepo
	activities   repos.ActivityRepo
	notes        repos.NoteRepo
	subjects     repos.SubjectRepo
	follows      repos.FollowRepo
	users        repos.UserRepo
	publisher    realtime.Publisher
	now          Clock

	mu      sync.RWMutex
	catalog []*types.Achievement
}

func NewGamificationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	stats repos.UserStatsRepo,
	xp repos.XPEventRepo,
	achievements repos.AchievementRepo,
	unlocks repos.UserAchievementRepo,
	activities repos.ActivityRepo,
	notes repos.NoteRepo,
	subjects repos.SubjectRepo,
	follows repos.FollowRepo,
	users repos.UserRepo,
	publisher realtime.Publisher,
	now Clock,
) GamificationService {
	if publisher == nil {
		publisher = realtime.NopPublisher()
	}
	return &gamificationService{
		db:           db,
		log:          baseLog.With("service", "GamificationService"),
		stats:        stats,
		xp:           xp,
		achievements: achievements,
		unlocks:      unlocks,
		activities:   activities,
		notes:        notes,
		subjects:     subjects,
		follows:      follows,
		users:        users,
		publisher:    publisher,
		now:          orClock(now),
	}
}

func (s *gamificationService) SeedCatalog(ctx context.Context) error {
	entries, err := gamification.LoadCatalog(nil)
	if err != nil {
		return err
	}
	rows := make([]*types.Achievement, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.Model())
	}
	if err := s.achievements.UpsertCatalog(dbctx.Context{Ctx: ctx}, rows); err != nil {
		return fmt.Errorf("seed achievement catalog: %w", err)
	}
	s.mu.Lock()
	s.catalog = nil
	s.mu.Unlock()
	s.log.Info("Achievement catalog seeded", "count", len(rows))
	return nil
}

func (s *gamificationService) loadCatalog(dbc dbctx.Context) ([]*types.Achievement, error) {
	s.mu.RLock()
	cached := s.catalog
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	rows, err := s.achievements.List(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Tx})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		s.mu.Lock()
		s.catalog = rows
		s.mu.Unlock()
	}
	return rows, nil
}

func (s *gamificationService) Award(dbc dbctx.Context, userID uuid.UUID, reason string, refID *uuid.UUID) (*AwardResult, error) {
	if reason == "" {
		return nil, fmt.Errorf("award reason required")
	}
	return s.apply(dbc, userID, reason, refID)
}

func (s *gamificationService) AwardOnce(dbc dbctx.Context, userID uuid.UUID, reason string, refID uuid.UUID) (*AwardResult, error) {
	var res *AwardResult
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		// Lock the stats row first so concurrent awards for the same ref serialize
		// before the existence check.
		if _, err := s.stats.GetOrCreate(inner, userID); err != nil {
			return fmt.Errorf("lock stats: %w", err)
		}
		seen, err := s.xp.ExistsForRef(inner, userID, reason, refID)
		if err != nil || seen {
			return err
		}
		res, err = s.applyLocked(inner, userID, reason, &refID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *gamificationService) Evaluate(dbc dbctx.Context, userID uuid.UUID) (*AwardResult, error) {
	return s.apply(dbc, userID, "", nil)
}

func (s *gamificationService) apply(dbc dbctx.Context, userID uuid.UUID, reason string, refID *uuid.UUID) (*AwardResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("award: missing user id")
	}
	var res *AwardResult
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		out, err := s.applyLocked(inner, userID, reason, refID)
		res = out
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *gamificationService) applyLocked(dbc dbctx.Context, userID uuid.UUID, reason string, refID *uuid.UUID) (*AwardResult, error) {
	now := s.now()
	stats, err := s.stats.GetOrCreate(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	res := &AwardResult{
		UserID:      userID,
		Reason:      reason,
		LevelBefore: gamification.LevelFor(stats.XPTotal),
	}
	addXP := func(r string, amount int, ref *uuid.UUID) {
		if amount <= 0 {
			return
		}
		res.Events = append(res.Events, &types.XPEvent{UserID: userID, Reason: r, Amount: amount, RefID: ref, CreatedAt: now})
		res.XPGained += amount
		stats.XPTotal += int64(amount)
	}

	if reason != "" {
		addXP(reason, gamification.AwardFor(reason), refID)
		streak := gamification.AdvanceStreak(stats.LastActiveOn, stats.CurrentStreak, stats.LongestStreak, now)
		stats.CurrentStreak = streak.Current
		stats.LongestStreak = streak.Longest
		stats.LastActiveOn = streak.Day
		if streak.FirstToday {
			addXP(domaingam.ReasonDailyStreak, gamification.AwardFor(domaingam.ReasonDailyStreak), nil)
		}
		switch reason {
		case domaingam.ReasonTaskCompleted:
			stats.TasksCompleted++
		case domaingam.ReasonPomodoroCompleted:
			stats.PomodorosCompleted++
		}
	}
	stats.Level = gamification.LevelFor(stats.XPTotal)

	catalog, err := s.loadCatalog(dbc)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	var activities []*types.Activity
	if len(catalog) > 0 {
		unlockedIDs, err := s.unlocks.UnlockedIDs(dbc, userID)
		if err != nil {
			return nil, fmt.Errorf("load unlocked achievements: %w", err)
		}
		unlocked := make(map[string]bool, len(unlockedIDs))
		for _, a := range catalog {
			if unlockedIDs[a.ID] {
				unlocked[a.Code] = true
			}
		}
		counters, err := s.counters(dbc, stats)
		if err != nil {
			return nil, err
		}
		// Rewards can push xp_total or level over further thresholds, so re-check
		// until nothing new is due.
		for round := 0; round < 4; round++ {
			due := gamification.Due(catalog, unlocked, counters)
			if len(due) == 0 {
				break
			}
			for _, a := range due {
				unlocked[a.Code] = true
				created, err := s.unlocks.Unlock(dbc, userID, a.ID, now)
				if err != nil {
					return nil, fmt.Errorf("unlock %s: %w", a.Code, err)
				}
				if !created {
					continue
				}
				res.Unlocked = append(res.Unlocked, a)
				addXP(domaingam.ReasonAchievement, a.XPReward, uuidPtr(a.ID))
				activities = append(activities, &types.Activity{
					UserID:     userID,
					Type:       social.ActivityAchievementUnlocked,
					Visibility: social.VisibilityPublic,
					Content:    "Unlocked the achievement " + a.Name,
					Metadata:   datatypes.JSONMap{"code": a.Code, "icon": a.Icon, "xp_reward": a.XPReward},
					CreatedAt:  now,
				})
			}
			stats.Level = gamification.LevelFor(stats.XPTotal)
			counters[domaingam.CategoryXPTotal] = stats.XPTotal
			counters[domaingam.CategoryLevel] = int64(stats.Level)
		}
	}

	res.LevelAfter = stats.Level
	res.XPTotal = stats.XPTotal
	res.Streak = stats.CurrentStreak
	res.Progress = gamification.ProgressFor(stats.XPTotal)
	if res.LeveledUp() {
		activities = append(activities, &types.Activity{
			UserID:     userID,
			Type:       social.ActivityLevelUp,
			Visibility: social.VisibilityPublic,
			Content:    fmt.Sprintf("Reached level %d", res.LevelAfter),
			Metadata:   datatypes.JSONMap{"level": res.LevelAfter, "previous_level": res.LevelBefore},
			CreatedAt:  now,
		})
	}

	if err := s.stats.Save(dbc, stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}
	if _, err := s.xp.Create(dbc, res.Events); err != nil {
		return nil, fmt.Errorf("record xp: %w", err)
	}
	if _, err := s.activities.Create(dbc, activities); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	return res, nil
}

// counters queries the values achievement thresholds compare against. Inside a
// transaction the queries run sequentially on the transaction's connection.
func (s *gamificationService) counters(dbc dbctx.Context, stats *types.UserStats) (gamification.Counters, error) {
	var notes, subjects, followers int64
	queries := []func(dbctx.Context) error{
		func(d dbctx.Context) (err error) { notes, err = s.notes.CountForUser(d, stats.UserID); return },
		func(d dbctx.Context) (err error) { subjects, err = s.subjects.CountForUser(d, stats.UserID); return },
		func(d dbctx.Context) (err error) { followers, err = s.follows.CountFollowers(d, stats.UserID); return },
	}
	if err := runQueries(dbc, queries); err != nil {
		return nil, fmt.Errorf("achievement counters: %w", err)
	}
	return gamification.Counters{
		domaingam.CategoryTasksCompleted:     int64(stats.TasksCompleted),
		domaingam.CategoryPomodorosCompleted: int64(stats.PomodorosCompleted),
		domaingam.CategoryStreakDays:         int64(stats.CurrentStreak),
		domaingam.CategoryLevel:              int64(stats.Level),
		domaingam.CategoryXPTotal:            stats.XPTotal,
		domaingam.CategoryNotesCreated:       notes,
		domaingam.CategorySubjectsCreated:    subjects,
		domaingam.CategoryFollowers:          followers,
	}, nil
}

// runQueries fans independent reads out with errgroup, or runs them in order when a
// transaction pins them to one connection.
func runQueries(dbc dbctx.Context, queries []func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		for _, q := range queries {
			if err := q(dbc); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(dbc.Context())
	for _, q := range queries {
		g.Go(func() error { return q(dbctx.Context{Ctx: gctx}) })
	}
	return g.Wait()
}

func (s *gamificationService) Publish(ctx context.Context, res *AwardResult) {
	if res == nil {
		return
	}
	m := observability.Current()
	for _, ev := range res.Events {
		m.AddXP(ev.Reason, ev.Amount)
	}
	channel := realtime.UserChannel(res.UserID)
	for _, a := range res.Unlocked {
		m.IncAchievementUnlocked(a.Code)
		s.publisher.Publish(ctx, realtime.SSEMessage{
			Channel: channel,
			Event:   realtime.SSEEventAchievementUnlocked,
			Data:    map[string]any{"achievement": a, "xp_total": res.XPTotal},
		})
	}
	if res.LeveledUp() {
		s.publisher.Publish(ctx, realtime.SSEMessage{
			Channel: channel,
			Event:   realtime.SSEEventLevelUp,
			Data:    map[string]any{"level": res.LevelAfter, "progress": res.Progress},
		})
	}
}

func (s *gamificationService) Summary(ctx context.Context) (*GamificationSummary, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	stats, err := s.stats.GetOrCreate(dbc, userID)
	if err != nil {
		return nil, err
	}
	var (
		catalog  []*types.Achievement
		unlocked map[uuid.UUID]bool
		recent   []*types.XPEvent
	)
	err = runQueries(dbc, []func(dbctx.Context) error{
		func(d dbctx.Context) (err error) { catalog, err = s.loadCatalog(d); return },
		func(d dbctx.Context) (err error) { unlocked, err = s.unlocks.UnlockedIDs(d, userID); return },
		func(d dbctx.Context) (err error) { recent, err = s.xp.ListForUser(d, userID, 20); return },
	})
	if err != nil {
		return nil, err
	}
	return &GamificationSummary{
		Stats:              stats,
		Progress:           gamification.ProgressFor(stats.XPTotal),
		AchievementsTotal:  len(catalog),
		AchievementsEarned: len(unlocked),
		RecentXP:           recent,
	}, nil
}

func (s *gamificationService) Achievements(ctx context.Context) ([]AchievementView, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	stats, err := s.stats.GetOrCreate(dbc, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.loadCatalog(dbc)
	if err != nil {
		return nil, err
	}
	mine, err := s.unlocks.ListForUser(dbc, userID)
	if err != nil {
		return nil, err
	}
	counters, err := s.counters(dbc, stats)
	if err != nil {
		return nil, err
	}
	at := make(map[uuid.UUID]time.Time, len(mine))
	for _, ua := range mine {
		at[ua.AchievementID] = ua.UnlockedAt
	}
	out := make([]AchievementView, 0, len(catalog))
	for _, a := range catalog {
		v := AchievementView{Achievement: a, Progress: gamification.ProgressToward(a, counters)}
		if t, ok := at[a.ID]; ok {
			v.Unlocked = true
			v.UnlockedAt = &t
			v.Progress = 1
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Threshold < out[j].Threshold
	})
	return out, nil
}

const (
	LeaderboardGlobal    = "global"
	LeaderboardFollowing = "following"
)

func (s *gamificationService) Leaderboard(ctx context.Context, scope string, limit int) ([]LeaderboardEntry, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	limit = clampLimit(limit, 20, 100)

	var scopeIDs []uuid.UUID
	switch scope {
	case "", LeaderboardGlobal:
	case LeaderboardFollowing:
		ids, err := s.follows.FolloweeIDs(dbc, userID)
		if err != nil {
			return nil, err
		}
		scopeIDs = append(ids, userID)
	default:
		return nil, apierr.BadRequest("invalid_scope", "scope must be global or following")
	}

	rows, err := s.stats.Leaderboard(dbc, scopeIDs, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	users, err := s.users.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		u := byID[r.UserID]
		if u == nil {
			continue
		}
		out = append(out, LeaderboardEntry{
			Rank:    len(out) + 1,
			User:    u.Public(),
			XPTotal: r.XPTotal,
			Level:   gamification.LevelFor(r.XPTotal),
			Streak:  r.CurrentStreak,
		})
	}
	return out, nil
}
