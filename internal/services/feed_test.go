package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

func TestRankedFeedServesEveryRowOnce(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author@example.com")
	viewer := f.user(t, "viewer@example.com")
	svc := NewFeedService(f.log, f.activities, f.follows, f.subjects, f.users, nil, f.clock.Now)

	// Newest first: two low-weight rows ahead of two posts.
	now := f.clock.Now()
	kinds := []string{"custom", "custom", social.ActivityPost, social.ActivityPost, social.ActivityTaskCompleted}
	var rows []*types.Activity
	for i, kind := range kinds {
		rows = append(rows, &types.Activity{
			UserID:     author,
			Type:       kind,
			Visibility: social.VisibilityPublic,
			CreatedAt:  now.Add(-time.Duration(i) * time.Minute),
		})
	}
	_, err := f.activities.Create(dbctx.Context{Ctx: context.Background()}, rows)
	require.NoError(t, err)

	seen := map[uuid.UUID]int{}
	offset, pages := 0, 0
	for {
		page, err := svc.Feed(asUser(viewer), FeedQuery{Mode: FeedModeRanked, Offset: offset, Limit: 2})
		require.NoError(t, err)
		pages++
		for _, it := range page.Items {
			seen[it.ID]++
		}
		if !page.HasMore {
			break
		}
		require.Equal(t, offset+len(page.Items), page.NextOffset)
		offset = page.NextOffset
		require.Less(t, pages, 10)
	}

	require.Equal(t, 3, pages)
	require.Len(t, seen, len(rows))
	for _, r := range rows {
		require.Equal(t, 1, seen[r.ID], "row %s", r.Type)
	}

	page, err := svc.Feed(asUser(viewer), FeedQuery{Offset: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	// Within a page the heavier row still leads.
	require.Equal(t, rows[0].ID, page.Items[0].ID)
	require.GreaterOrEqual(t, page.Items[0].Score, page.Items[1].Score)
}
