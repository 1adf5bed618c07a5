package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	channel := UserChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventJobStatus, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventLevelUp, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventJobStatus {
		t.Fatalf("first event: got %s", got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventLevelUp {
		t.Fatalf("second event: got %s", got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close = %d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCalendarSynced})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventCalendarSynced {
		t.Fatalf("reconnect event: got %s", got.Event)
	}
}

func TestBroadcastOnlyReachesSubscribedChannel(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	group := GroupChannel(uuid.New())
	member := hub.NewSSEClient(uuid.New())
	outsider := hub.NewSSEClient(uuid.New())
	hub.AddChannel(member, group)
	hub.AddChannel(outsider, UserChannel(outsider.UserID))

	hub.Broadcast(SSEMessage{Channel: group, Event: SSEEventGroupMessage})
	recvMessage(t, member.Outbound, time.Second)
	select {
	case m := <-outsider.Outbound:
		t.Fatalf("outsider received %v", m)
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	ch := "user:x"
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, ch)
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: ch, Event: SSEEventJobStatus})
	}
	if len(c.Outbound) != outboundBuffer {
		t.Fatalf("buffer len=%d want %d", len(c.Outbound), outboundBuffer)
	}
}

func TestServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	c := hub.NewSSEClient(uuid.New())
	ch := UserChannel(c.UserID)
	hub.AddChannel(c, ch)
	hub.Broadcast(SSEMessage{Channel: ch, Event: SSEEventAchievementUnlocked, Data: map[string]string{"code": "first_task"}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/sse/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req, c)

	body := rec.Body.String()
	if !strings.Contains(body, "event: AchievementUnlocked\n") || !strings.Contains(body, `"code":"first_task"`) {
		t.Fatalf("unexpected stream body: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}
}

type failingBus struct{ calls int }

func (b *failingBus) Publish(context.Context, SSEMessage) error {
	b.calls++
	return errors.New("down")
}
func (b *failingBus) StartForwarder(context.Context, func(SSEMessage)) error { return nil }
func (b *failingBus) Close() error                                           { return nil }

func TestPublisherFallsBackToLocalHub(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	c := hub.NewSSEClient(uuid.New())
	ch := UserChannel(c.UserID)
	hub.AddChannel(c, ch)

	bus := &failingBus{}
	NewPublisher(logger.NewNop(), hub, bus).Publish(context.Background(), SSEMessage{Channel: ch, Event: SSEEventLevelUp})
	if bus.calls != 1 {
		t.Fatalf("bus calls=%d", bus.calls)
	}
	recvMessage(t, c.Outbound, time.Second)
}
