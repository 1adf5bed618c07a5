package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveAPI("GET", "/api/tasks", "200", 15*time.Millisecond)
	m.ObserveLLMRequest("gpt-4o-mini", "sdk", "ok", time.Second, 10, 20)
	m.AddXP("task_completed", 10)
	m.ObserveJob("calendar_sync", "succeeded", 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`studyhub_api_requests_total{method="GET",route="/api/tasks",status="200"} 1`,
		`studyhub_llm_tokens_total{direction="output",model="gpt-4o-mini"} 20`,
		`studyhub_xp_awarded_total{reason="task_completed"} 10`,
		`studyhub_job_runs_total{job_type="calendar_sync",status="succeeded"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ApiInflightInc()
	m.AddXP("x", 1)
	m.IncEmail("welcome", "sent")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nil handler status %d", rec.Code)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders(" a=1, b = 2 ,broken,=x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("unexpected headers %v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty input should give nil")
	}
}
