package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/httpx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

// Client tries each configured model in order. Per model the primary provider is tried
// first; the secondary is only used when the primary failed below the HTTP layer.
type Client struct {
	log         *logger.Logger
	models      []string
	temperature *float32
	primary     Provider
	secondary   Provider
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.normalized()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if len(cfg.Models) == 0 {
		return nil, ErrNoModels
	}
	raw := NewHTTPProvider(log, cfg)
	if cfg.DisableSDK {
		return NewWithProviders(log, cfg.Models, cfg.Temperature, raw, nil), nil
	}
	return NewWithProviders(log, cfg.Models, cfg.Temperature, NewSDKProvider(log, cfg), raw), nil
}

func NewWithProviders(log *logger.Logger, models []string, temperature *float32, primary, secondary Provider) *Client {
	return &Client{
		log:         log.With("client", "LLMClient"),
		models:      Config{Models: models}.normalized().Models,
		temperature: temperature,
		primary:     primary,
		secondary:   secondary,
	}
}

func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// ModelSkippable reports whether the next model in the list should be tried after err:
// the model is unknown/unsupported for this key, or the failure is transient.
func ModelSkippable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if isModelUnavailable(err) {
		return true
	}
	return httpx.IsRetryableError(err)
}

func isModelUnavailable(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	if ae.StatusCode == http.StatusNotFound {
		return true
	}
	if ae.Code == "model_not_found" {
		return true
	}
	msg := strings.ToLower(ae.Message)
	if !strings.Contains(msg, "model") {
		return false
	}
	for _, marker := range []string{"does not exist", "not found", "not supported", "unsupported", "do not have access", "deprecated"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// transportFailure is an error that never reached an HTTP answer.
func transportFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *APIError
	return !errors.As(err, &ae)
}

type attemptFunc func(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error)

// run walks the model list. stop tells it to give up on the list (for example once
// stream output has been delivered and cannot be taken back).
func (c *Client) run(ctx context.Context, msgs []Message, maxTokens int, call attemptFunc, stop func() bool) (*ChatResponse, error) {
	if c == nil || c.primary == nil {
		return nil, fmt.Errorf("llm client unavailable")
	}
	if len(c.models) == 0 {
		return nil, ErrNoModels
	}
	var lastErr error
	for i, model := range c.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := ChatRequest{Model: model, Messages: msgs, Temperature: c.temperature, MaxTokens: maxTokens}

		out, err := call(ctx, c.primary, req)
		if err != nil && ctx.Err() == nil && c.secondary != nil && transportFailure(err) && !stop() {
			c.log.Warn("LLM primary provider failed, trying secondary",
				"model", model,
				"primary", c.primary.Name(),
				"secondary", c.secondary.Name(),
				"error", err.Error(),
			)
			out, err = call(ctx, c.secondary, req)
		}
		if err == nil {
			return out, nil
		}
		lastErr = err
		if stop() || !ModelSkippable(err) {
			return out, err
		}
		if i < len(c.models)-1 {
			reason := "retryable"
			if isModelUnavailable(err) {
				reason = "model_unavailable"
			}
			observability.Current().IncLLMFallback(model, reason)
			c.log.Warn("LLM model failed, falling back",
				"model", model,
				"next_model", c.models[i+1],
				"reason", reason,
				"error", err.Error(),
			)
		}
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// Chat runs a non-streaming completion.
func (c *Client) Chat(ctx context.Context, msgs []Message, maxTokens int) (*ChatResponse, error) {
	return c.run(ctx, msgs, maxTokens, func(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
		return p.Chat(ctx, req)
	}, func() bool { return false })
}

type StreamOptions struct {
	// SoftTimeout ends the stream early and keeps what was received.
	SoftTimeout time.Duration
	// MaxChunks caps the number of deltas relayed.
	MaxChunks int
	MaxTokens int
}

const (
	TruncatedTimeout  = "timeout"
	TruncatedChunkCap = "chunk_cap"
)

type StreamResult struct {
	ChatResponse
	Chunks    int    `json:"chunks"`
	Truncated string `json:"truncated,omitempty"`
}

var errChunkCap = errors.New("stream chunk cap reached")

// Stream relays deltas to onDelta. Reaching the soft timeout or the chunk cap is not an
// error: the partial text is returned with Truncated set.
func (c *Client) Stream(ctx context.Context, msgs []Message, opts StreamOptions, onDelta func(string) error) (*StreamResult, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	softExpired := make(chan struct{})
	if opts.SoftTimeout > 0 {
		t := time.AfterFunc(opts.SoftTimeout, func() {
			close(softExpired)
			cancel()
		})
		defer t.Stop()
	}
	timedOut := func() bool {
		select {
		case <-softExpired:
			return true
		default:
			return false
		}
	}

	chunks := 0
	relay := func(d string) error {
		if opts.MaxChunks > 0 && chunks >= opts.MaxChunks {
			return errChunkCap
		}
		chunks++
		if onDelta != nil {
			return onDelta(d)
		}
		return nil
	}

	out, err := c.run(streamCtx, msgs, opts.MaxTokens, func(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
		return p.ChatStream(ctx, req, relay)
	}, func() bool { return chunks > 0 })

	res := &StreamResult{Chunks: chunks}
	if out != nil {
		res.ChatResponse = *out
	}
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, errChunkCap):
		res.Truncated = TruncatedChunkCap
		return res, nil
	case timedOut() && ctx.Err() == nil:
		res.Truncated = TruncatedTimeout
		return res, nil
	default:
		return res, err
	}
}
