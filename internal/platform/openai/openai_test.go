package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

// fakeServer emulates /v1/chat/completions. Models listed in missing answer 404.
func fakeServer(t *testing.T, missing map[string]bool, chunks []string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seen = append(seen, body.Model)
		mu.Unlock()
		if missing[body.Model] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `{"error":{"message":"The model %s does not exist","type":"invalid_request_error","code":"model_not_found"}}`, body.Model)
			return
		}
		if body.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, c := range chunks {
				_, _ = fmt.Fprintf(w, "data: {\"model\":%q,\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", body.Model, c)
			}
			_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":"x","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"hello from %s"},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`, body.Model, body.Model)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testConfig(baseURL string, models ...string) Config {
	return Config{APIKey: "sk-test", BaseURL: baseURL, Models: models, Timeout: 5 * time.Second}
}

func TestChatFallsBackOnMissingModel(t *testing.T) {
	for _, disableSDK := range []bool{false, true} {
		srv, seen := fakeServer(t, map[string]bool{"gone-model": true}, nil)
		cfg := testConfig(srv.URL, "gone-model", "good-model")
		cfg.DisableSDK = disableSDK
		c, err := New(logger.NewNop(), cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0)
		if err != nil {
			t.Fatalf("sdk disabled=%v: Chat: %v", disableSDK, err)
		}
		if out.Content != "hello from good-model" || out.Model != "good-model" {
			t.Fatalf("unexpected response %+v", out)
		}
		if out.InputTokens != 7 || out.OutputTokens != 3 {
			t.Fatalf("usage not propagated: %+v", out)
		}
		if strings.Join(*seen, ",") != "gone-model,good-model" {
			t.Fatalf("models tried: %v", *seen)
		}
	}
}

func TestStreamRelaysDeltas(t *testing.T) {
	srv, _ := fakeServer(t, nil, []string{"Hel", "lo", "!"})
	for _, disableSDK := range []bool{false, true} {
		cfg := testConfig(srv.URL, "m1")
		cfg.DisableSDK = disableSDK
		c, err := New(logger.NewNop(), cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		var got []string
		res, err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, StreamOptions{MaxChunks: 10}, func(d string) error {
			got = append(got, d)
			return nil
		})
		if err != nil {
			t.Fatalf("Stream: %v", err)
		}
		if res.Content != "Hello!" || res.Chunks != 3 || res.Truncated != "" {
			t.Fatalf("sdk disabled=%v: unexpected result %+v", disableSDK, res)
		}
		if strings.Join(got, "|") != "Hel|lo|!" {
			t.Fatalf("deltas %v", got)
		}
	}
}

func TestStreamChunkCap(t *testing.T) {
	srv, _ := fakeServer(t, nil, []string{"a", "b", "c", "d"})
	c, err := New(logger.NewNop(), testConfig(srv.URL, "m1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, StreamOptions{MaxChunks: 2}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Truncated != TruncatedChunkCap || res.Chunks != 2 || res.Content != "ab" {
		t.Fatalf("unexpected result %+v", res)
	}
}

type fakeProvider struct {
	name  string
	calls []string
	fn    func(model string) (*ChatResponse, error)
	chunk func(ctx context.Context, onDelta func(string) error) error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls = append(f.calls, req.Model)
	return f.fn(req.Model)
}

func (f *fakeProvider) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	f.calls = append(f.calls, req.Model)
	if f.chunk != nil {
		var b strings.Builder
		err := f.chunk(ctx, func(d string) error {
			b.WriteString(d)
			return onDelta(d)
		})
		return &ChatResponse{Model: req.Model, Content: b.String()}, err
	}
	return f.fn(req.Model)
}

func TestSecondaryOnlyOnTransportFailure(t *testing.T) {
	primary := &fakeProvider{name: "sdk", fn: func(model string) (*ChatResponse, error) {
		if model == "a" {
			return nil, errors.New("dial tcp: connection refused")
		}
		return nil, &APIError{StatusCode: http.StatusBadRequest, Message: "bad request"}
	}}
	secondary := &fakeProvider{name: "http", fn: func(model string) (*ChatResponse, error) {
		return &ChatResponse{Model: model, Content: "ok"}, nil
	}}
	c := NewWithProviders(logger.NewNop(), []string{"a"}, nil, primary, secondary)
	out, err := c.Chat(context.Background(), nil, 0)
	if err != nil || out.Content != "ok" {
		t.Fatalf("expected secondary answer, got %+v err=%v", out, err)
	}

	secondary.calls = nil
	c = NewWithProviders(logger.NewNop(), []string{"b", "c"}, nil, primary, secondary)
	if _, err := c.Chat(context.Background(), nil, 0); err == nil {
		t.Fatalf("400 must not fall back")
	}
	if len(secondary.calls) != 0 || strings.Join(primary.calls, ",") != "a,b" {
		t.Fatalf("unexpected calls primary=%v secondary=%v", primary.calls, secondary.calls)
	}
}

func TestRetryableErrorsSkipToNextModel(t *testing.T) {
	primary := &fakeProvider{name: "sdk", fn: func(model string) (*ChatResponse, error) {
		if model == "busy" {
			return nil, &APIError{StatusCode: http.StatusTooManyRequests, Message: "rate limited"}
		}
		return &ChatResponse{Model: model, Content: "fine"}, nil
	}}
	c := NewWithProviders(logger.NewNop(), []string{"busy", "busy", "free"}, nil, primary, nil)
	out, err := c.Chat(context.Background(), nil, 0)
	if err != nil || out.Model != "free" {
		t.Fatalf("unexpected %+v err=%v", out, err)
	}
	if len(primary.calls) != 2 {
		t.Fatalf("duplicate models should be collapsed: %v", primary.calls)
	}
}

func TestStreamSoftTimeoutKeepsPartial(t *testing.T) {
	primary := &fakeProvider{name: "sdk", chunk: func(ctx context.Context, onDelta func(string) error) error {
		if err := onDelta("partial"); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewWithProviders(logger.NewNop(), []string{"m"}, nil, primary, nil)
	res, err := c.Stream(context.Background(), nil, StreamOptions{SoftTimeout: 20 * time.Millisecond}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("soft timeout must not be an error: %v", err)
	}
	if res.Truncated != TruncatedTimeout || res.Content != "partial" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStreamDoesNotFallBackAfterOutput(t *testing.T) {
	primary := &fakeProvider{name: "sdk", chunk: func(ctx context.Context, onDelta func(string) error) error {
		_ = onDelta("x")
		return &APIError{StatusCode: http.StatusBadGateway, Message: "upstream reset"}
	}}
	c := NewWithProviders(logger.NewNop(), []string{"m1", "m2"}, nil, primary, nil)
	if _, err := c.Stream(context.Background(), nil, StreamOptions{}, func(string) error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
	if len(primary.calls) != 1 {
		t.Fatalf("stream with delivered output must not switch models: %v", primary.calls)
	}
}

func TestStreamSSEParser(t *testing.T) {
	in := ": keepalive\nevent: a\ndata: one\ndata: two\n\ndata: three"
	var got []string
	if err := streamSSE(strings.NewReader(in), func(ev, data string) error {
		got = append(got, ev+"="+data)
		return nil
	}); err != nil {
		t.Fatalf("streamSSE: %v", err)
	}
	if strings.Join(got, "|") != "a=one\ntwo|=three" {
		t.Fatalf("events %q", got)
	}
}
