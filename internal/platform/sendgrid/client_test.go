package sendgrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, baseURL string, retries int) *client {
	t.Helper()
	c, err := New(logger.NewNop(), Config{
		APIKey:           "SG.test",
		BaseURL:          baseURL,
		DefaultFromEmail: "noreply@example.com",
		DefaultFromName:  "StudyHub",
		MaxRetries:       retries,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	impl := c.(*client)
	impl.sleep = func(context.Context, time.Duration) error { return nil }
	return impl
}

func TestSendBuildsMailPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer SG.test" {
			t.Errorf("missing auth header")
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "ana@example.com", Name: "Ana"}},
		Subject: "Hello",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.MessageID != "msg-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	from, _ := got["from"].(map[string]any)
	if from["email"] != "noreply@example.com" {
		t.Fatalf("default from not applied: %v", got["from"])
	}
	content, _ := got["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("expected text and html content, got %v", got["content"])
	}
	first, _ := content[0].(map[string]any)
	if first["type"] != "text/plain" {
		t.Fatalf("text/plain must come first: %v", first)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)
	if _, err := c.Send(context.Background(), SendEmailRequest{
		To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s", Text: "t",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)
	_, err := c.Send(context.Background(), SendEmailRequest{
		To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s", Text: "t",
	})
	he, ok := err.(*HTTPError)
	if !ok || he.StatusCode != http.StatusBadRequest || he.Error() != "sendgrid http 400: bad from" {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls)
	}
}

func TestSendValidatesRequest(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", 0)
	cases := []SendEmailRequest{
		{Subject: "s", Text: "t"},
		{To: []EmailAddress{{Email: "a@example.com"}}, Text: "t"},
		{To: []EmailAddress{{Email: "a@example.com"}}, Subject: "s"},
	}
	for i, req := range cases {
		if _, err := c.Send(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
