package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/modules/feed"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/platform/redisx"
)

const (
	FeedModeRanked    = "ranked"
	FeedModeFollowing = "following"
	FeedModeMine      = "mine"

	feedCacheTTL = 30 * time.Second
)

type FeedQuery struct {
	Mode   string
	Offset int
	Limit  int
}

type FeedItem struct {
	*types.Activity
	Author    types.PublicProfile `json:"author"`
	Score     float64             `json:"score,omitempty"`
	Breakdown *feed.Breakdown     `json:"breakdown,omitempty"`
}

type FeedPage struct {
	Mode       string     `json:"mode"`
	Items      []FeedItem `json:"items"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	NextOffset int        `json:"next_offset"`
	HasMore    bool       `json:"has_more"`
}

type FeedService interface {
	Feed(ctx context.Context, q FeedQuery) (*FeedPage, error)
}

type feedService struct {
	log        *logger.Logger
	activities repos.ActivityRepo
	follows    repos.FollowRepo
	subjects   repos.SubjectRepo
	users      repos.UserRepo
	cache      *redisx.Cache
	now        Clock
}

func NewFeedService(
	baseLog *logger.Logger,
	activities repos.ActivityRepo,
	follows repos.FollowRepo,
	subjects repos.SubjectRepo,
	users repos.UserRepo,
	cache *redisx.Cache,
	now Clock,
) FeedService {
	return &feedService{
		log:        baseLog.With("service", "FeedService"),
		activities: activities,
		follows:    follows,
		subjects:   subjects,
		users:      users,
		cache:      cache,
		now:        orClock(now),
	}
}

func (s *feedService) Feed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	offset, limit := feed.ClampPage(q.Offset, q.Limit)
	switch q.Mode {
	case "", FeedModeRanked:
		return s.ranked(ctx, userID, offset, limit)
	case FeedModeFollowing, FeedModeMine:
		return s.chronological(ctx, userID, q.Mode, offset, limit)
	default:
		return nil, apierr.BadRequest("invalid_mode", "mode must be ranked, following or mine")
	}
}

func (s *feedService) ranked(ctx context.Context, userID uuid.UUID, offset, limit int) (*FeedPage, error) {
	key := s.cache.Key("feed", userID.String(), strconv.Itoa(offset), strconv.Itoa(limit))
	var cached FeedPage
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn("Feed cache read failed", "error", err)
	} else if hit {
		return &cached, nil
	}

	start, size := feed.CandidateWindow(offset, limit)
	var (
		followed   []uuid.UUID
		subjects   []*types.Subject
		candidates []*types.Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		followed, err = s.follows.FolloweeIDs(dbctx.Context{Ctx: gctx}, userID)
		return
	})
	g.Go(func() (err error) {
		subjects, err = s.subjects.ListForUser(dbctx.Context{Ctx: gctx}, userID)
		return
	})
	g.Go(func() (err error) {
		candidates, err = s.activities.PublicWindow(dbctx.Context{Ctx: gctx}, userID, start, size)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked, hasMore := feed.RankPage(candidates, feed.NewViewer(followed, subjects), s.now(), limit)
	rows := make([]*types.Activity, 0, len(ranked))
	for _, sc := range ranked {
		rows = append(rows, sc.Activity)
	}
	authors, err := s.authors(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := &FeedPage{
		Mode:       FeedModeRanked,
		Items:      make([]FeedItem, 0, len(ranked)),
		Offset:     offset,
		Limit:      limit,
		NextOffset: offset + len(ranked),
		HasMore:    hasMore,
	}
	for _, sc := range ranked {
		b := sc.Breakdown
		page.Items = append(page.Items, FeedItem{
			Activity:  sc.Activity,
			Author:    authors[sc.Activity.UserID],
			Score:     sc.Score,
			Breakdown: &b,
		})
	}
	if err := s.cache.SetJSON(ctx, key, page, feedCacheTTL); err != nil {
		s.log.Warn("Feed cache write failed", "error", err)
	}
	return page, nil
}

func (s *feedService) chronological(ctx context.Context, userID uuid.UUID, mode string, offset, limit int) (*FeedPage, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var (
		rows []*types.Activity
		err  error
	)
	if mode == FeedModeMine {
		rows, err = s.activities.ListByUser(dbc, userID, true, offset, limit+1)
	} else {
		var ids []uuid.UUID
		ids, err = s.follows.FolloweeIDs(dbc, userID)
		if err == nil {
			rows, err = s.activities.ListByAuthors(dbc, ids, offset, limit+1)
		}
	}
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	authors, err := s.authors(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := &FeedPage{
		Mode:       mode,
		Items:      make([]FeedItem, 0, len(rows)),
		Offset:     offset,
		Limit:      limit,
		NextOffset: offset + len(rows),
		HasMore:    hasMore,
	}
	for _, a := range rows {
		page.Items = append(page.Items, FeedItem{Activity: a, Author: authors[a.UserID]})
	}
	return page, nil
}

func (s *feedService) authors(ctx context.Context, rows []*types.Activity) (map[uuid.UUID]types.PublicProfile, error) {
	seen := make(map[uuid.UUID]bool, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, a := range rows {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	byID, err := usersByID(dbctx.Context{Ctx: ctx}, s.users, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]types.PublicProfile, len(byID))
	for id, u := range byID {
		out[id] = u.Public()
	}
	return out, nil
}
