package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func testConfig(endpoint string) Config {
	return Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/calendar/callback",
		CalendarID:   "primary",
		Endpoint:     endpoint,
	}
}

func TestAuthCodeURL(t *testing.T) {
	c := New(logger.NewNop(), testConfig(""))
	raw := c.AuthCodeURL("signed-state")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "signed-state" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Fatalf("unexpected query: %v", q)
	}
	if !strings.Contains(q.Get("scope"), "calendar.events") {
		t.Fatalf("scope=%q", q.Get("scope"))
	}
}

func TestDisabledClient(t *testing.T) {
	c := New(logger.NewNop(), Config{})
	if c.Enabled() {
		t.Fatalf("empty config should be disabled")
	}
	if _, err := c.Exchange(context.Background(), "code"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestToGoogleEvent(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	timed := ToGoogleEvent(Event{Summary: "Exam", Start: start, SourceType: "assessment", SourceID: "a1"})
	if timed.Start.DateTime != "2026-03-10T14:00:00Z" || timed.End.DateTime != "2026-03-10T15:00:00Z" {
		t.Fatalf("timed event window: %+v %+v", timed.Start, timed.End)
	}
	if timed.ExtendedProperties.Private["studyhub_id"] != "a1" {
		t.Fatalf("missing source id")
	}
	allDay := ToGoogleEvent(Event{Summary: "Task", Start: start, AllDay: true})
	if allDay.Start.Date != "2026-03-10" || allDay.End.Date != "2026-03-11" {
		t.Fatalf("all-day: %+v %+v", allDay.Start, allDay.End)
	}
}

func TestUpsertRecreatesMissingEvent(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("authorization=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["summary"] != "Exam" {
				t.Errorf("summary=%v", body["summary"])
			}
			_, _ = w.Write([]byte(`{"id":"g-new"}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	c := New(logger.NewNop(), testConfig(srv.URL))
	tok := &Token{AccessToken: "at-1", RefreshToken: "rt", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	id, got, err := c.UpsertEvent(context.Background(), tok, "", Event{
		GoogleID: "g-old",
		Summary:  "Exam",
		Start:    time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
	if id != "g-new" {
		t.Fatalf("id=%q", id)
	}
	if got.AccessToken != "at-1" {
		t.Fatalf("token should be unchanged, got %+v", got)
	}
	if len(calls) != 2 || !strings.HasPrefix(calls[0], "PUT /calendars/primary/events/g-old") || !strings.HasPrefix(calls[1], "POST /calendars/primary/events") {
		t.Fatalf("calls=%v", calls)
	}
}

func TestDeleteIgnoresGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Deleted"}}`))
	}))
	defer srv.Close()
	c := New(logger.NewNop(), testConfig(srv.URL))
	tok := &Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
	if err := c.DeleteEvent(context.Background(), tok, "primary", "g1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
}
