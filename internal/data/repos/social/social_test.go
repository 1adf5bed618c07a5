package social

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

func TestActivityRepoPublicWindow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewActivityRepo(db, testutil.Logger(t))

	me := testutil.SeedUser(t, ctx, tx, "me@example.com")
	them := testutil.SeedUser(t, ctx, tx, "them@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	old := testutil.SeedActivity(t, ctx, tx, them.ID, "post", base)
	mid := testutil.SeedActivity(t, ctx, tx, them.ID, "task_completed", base.Add(10*time.Minute))
	recent := testutil.SeedActivity(t, ctx, tx, them.ID, "level_up", base.Add(20*time.Minute))
	testutil.SeedActivity(t, ctx, tx, me.ID, "post", base.Add(30*time.Minute))

	private := &types.Activity{UserID: them.ID, Type: "post", Visibility: "private", Content: "hidden"}
	if _, err := repo.Create(dbc, []*types.Activity{private}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.PublicWindow(dbc, me.ID, 0, 10)
	if err != nil {
		t.Fatalf("PublicWindow: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("PublicWindow: expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != recent.ID || rows[1].ID != mid.ID || rows[2].ID != old.ID {
		t.Fatalf("PublicWindow: unexpected order %v %v %v", rows[0].ID, rows[1].ID, rows[2].ID)
	}

	rows, err = repo.PublicWindow(dbc, me.ID, 1, 1)
	if err != nil || len(rows) != 1 || rows[0].ID != mid.ID {
		t.Fatalf("PublicWindow(offset): err=%v rows=%+v", err, rows)
	}

	if err := repo.Delete(dbc, me.ID, recent.ID); err == nil {
		t.Fatalf("Delete(foreign): expected error")
	}
	if err := repo.Delete(dbc, them.ID, recent.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestFollowRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFollowRepo(db, testutil.Logger(t))

	a := testutil.SeedUser(t, ctx, tx, "a@example.com")
	b := testutil.SeedUser(t, ctx, tx, "b@example.com")

	created, err := repo.Follow(dbc, a.ID, b.ID)
	if err != nil || !created {
		t.Fatalf("Follow: created=%v err=%v", created, err)
	}
	created, err = repo.Follow(dbc, a.ID, b.ID)
	if err != nil || created {
		t.Fatalf("Follow(again): created=%v err=%v", created, err)
	}

	if ok, err := repo.IsFollowing(dbc, a.ID, b.ID); err != nil || !ok {
		t.Fatalf("IsFollowing: ok=%v err=%v", ok, err)
	}
	ids, err := repo.FolloweeIDs(dbc, a.ID)
	if err != nil || len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("FolloweeIDs: err=%v ids=%v", err, ids)
	}
	if n, err := repo.CountFollowers(dbc, b.ID); err != nil || n != 1 {
		t.Fatalf("CountFollowers: n=%d err=%v", n, err)
	}

	removed, err := repo.Unfollow(dbc, a.ID, b.ID)
	if err != nil || !removed {
		t.Fatalf("Unfollow: removed=%v err=%v", removed, err)
	}
	if n, err := repo.CountFollowing(dbc, a.ID); err != nil || n != 0 {
		t.Fatalf("CountFollowing: n=%d err=%v", n, err)
	}
}
