package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg realtime.SSEMessage) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

func (p *recordingPublisher) events(event realtime.SSEEvent) []realtime.SSEMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.SSEMessage
	for _, m := range p.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	db    *gorm.DB
	log   *logger.Logger
	clock *fakeClock
	pub   *recordingPublisher

	users       repos.UserRepo
	follows     repos.FollowRepo
	subjects    repos.SubjectRepo
	assessments repos.AssessmentRepo
	tasks       repos.TaskRepo
	notes       repos.NoteRepo
	activities  repos.ActivityRepo
	stats       repos.UserStatsRepo
	xp          repos.XPEventRepo

	gam GamificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:          db,
		log:         log,
		clock:       &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		pub:         &recordingPublisher{},
		users:       repos.NewUserRepo(db, log),
		follows:     repos.NewFollowRepo(db, log),
		subjects:    repos.NewSubjectRepo(db, log),
		assessments: repos.NewAssessmentRepo(db, log),
		tasks:       repos.NewTaskRepo(db, log),
		notes:       repos.NewNoteRepo(db, log),
		activities:  repos.NewActivityRepo(db, log),
		stats:       repos.NewUserStatsRepo(db, log),
		xp:          repos.NewXPEventRepo(db, log),
	}
	f.gam = NewGamificationService(db, log, f.stats, f.xp,
		repos.NewAchievementRepo(db, log),
		repos.NewUserAchievementRepo(db, log),
		f.activities, f.notes, f.subjects, f.follows, f.users, f.pub, f.clock.Now)
	if err := f.gam.SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, email string) uuid.UUID {
	t.Helper()
	return testutil.SeedUser(t, context.Background(), f.db, email).ID
}

func asUser(userID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})
}
