package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

func TestMessagesKeepInsertOrderOnEqualTimestamps(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	threads := NewThreadRepo(db, log)
	messages := NewMessageRepo(db, log)

	u := testutil.SeedUser(t, ctx, tx, "a@example.com")
	thread, err := threads.Create(dbc, &types.AssistantThread{UserID: u.ID, Title: "Plan"})
	if err != nil {
		t.Fatalf("Create thread: %v", err)
	}
	other, err := threads.Create(dbc, &types.AssistantThread{UserID: u.ID, Title: "Other"})
	if err != nil {
		t.Fatalf("Create thread: %v", err)
	}

	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	contents := []string{"q1", "a1", "q2", "a2", "q3"}
	roles := []string{"user", "assistant", "user", "assistant", "user"}
	for i := range contents {
		// One row per call, the way the service appends turns.
		if _, err := messages.Create(dbc, []*types.AssistantMessage{{
			ThreadID: thread.ID, UserID: u.ID, Role: roles[i], Content: contents[i], CreatedAt: at,
		}}); err != nil {
			t.Fatalf("Create message %d: %v", i, err)
		}
	}
	batch, err := messages.Create(dbc, []*types.AssistantMessage{
		{ThreadID: other.ID, UserID: u.ID, Role: "user", Content: "x", CreatedAt: at},
		{ThreadID: other.ID, UserID: u.ID, Role: "assistant", Content: "y", CreatedAt: at},
	})
	if err != nil {
		t.Fatalf("Create batch: %v", err)
	}
	if batch[0].Seq != 1 || batch[1].Seq != 2 {
		t.Fatalf("batch seqs: %d,%d", batch[0].Seq, batch[1].Seq)
	}

	recent, err := messages.ListRecent(dbc, thread.ID, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	want := []string{"q2", "a2", "q3"}
	if len(recent) != len(want) {
		t.Fatalf("ListRecent: expected %d rows, got %d", len(want), len(recent))
	}
	for i, m := range recent {
		if m.Content != want[i] {
			t.Fatalf("ListRecent[%d]: expected %q, got %q", i, want[i], m.Content)
		}
	}

	all, err := messages.ListForThread(dbc, thread.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListForThread: %v", err)
	}
	for i, m := range all {
		if m.Seq != int64(i+1) || m.Content != contents[i] {
			t.Fatalf("ListForThread[%d]: seq=%d content=%q", i, m.Seq, m.Content)
		}
	}
}
