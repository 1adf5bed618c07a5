package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/platform/httpx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const chatCompletionsPath = "/v1/chat/completions"

// httpProvider talks to the chat completions endpoint directly over HTTPS.
type httpProvider struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	sleep      func(context.Context, time.Duration) error
}

func NewHTTPProvider(log *logger.Logger, cfg Config) Provider {
	cfg = cfg.normalized()
	return &httpProvider{
		log:        log.With("provider", "OpenAIHTTP"),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		sleep:      httpx.Sleep,
	}
}

func (p *httpProvider) Name() string { return "http" }

type chatWireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatWireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func toWire(req ChatRequest, stream bool) chatWireRequest {
	return chatWireRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func parseAPIError(status int, raw []byte) *APIError {
	ae := &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	var we wireError
	if json.Unmarshal(raw, &we) == nil && strings.TrimSpace(we.Error.Message) != "" {
		ae.Message = we.Error.Message
		switch c := we.Error.Code.(type) {
		case string:
			ae.Code = c
		case nil:
			ae.Code = we.Error.Type
		default:
			ae.Code = fmt.Sprint(c)
		}
	}
	return ae
}

func (p *httpProvider) newRequest(ctx context.Context, body chatWireRequest) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, p.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

func (p *httpProvider) doOnce(ctx context.Context, body chatWireRequest) (*http.Response, []byte, error) {
	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, parseAPIError(resp.StatusCode, raw)
	}
	return resp, raw, nil
}

func (p *httpProvider) do(ctx context.Context, body chatWireRequest) ([]byte, error) {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, raw, err := p.doOnce(ctx, body)
		if err == nil {
			return raw, nil
		}
		if !httpx.IsRetryableError(err) || attempt == p.maxRetries {
			return nil, err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		p.log.Warn("OpenAI request retrying",
			"model", body.Model,
			"attempt", attempt+1,
			"max_retries", p.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := p.sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("unreachable retry loop")
}

// withTempFallback retries exactly once without temperature when the model rejects it.
func withTempFallback[T any](req ChatRequest, call func(ChatRequest) (T, error)) (T, error) {
	out, err := call(req)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperature(err) {
		return out, err
	}
	req.Temperature = nil
	return call(req)
}

func (p *httpProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	out, err := withTempFallback(req, func(r ChatRequest) (*ChatResponse, error) {
		raw, err := p.do(ctx, toWire(r, false))
		if err != nil {
			return nil, err
		}
		var wr chatWireResponse
		if err := json.Unmarshal(raw, &wr); err != nil {
			return nil, fmt.Errorf("openai decode error: %w", err)
		}
		if len(wr.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}
		res := &ChatResponse{
			Model:    firstNonEmpty(wr.Model, r.Model),
			Provider: p.Name(),
			Content:  wr.Choices[0].Message.Content,
		}
		if fr := wr.Choices[0].FinishReason; fr != nil {
			res.FinishReason = *fr
		}
		if wr.Usage != nil {
			res.InputTokens = wr.Usage.PromptTokens
			res.OutputTokens = wr.Usage.CompletionTokens
		}
		return res, nil
	})
	observeLLM(req.Model, p.Name(), start, out, err)
	return out, err
}

func (p *httpProvider) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	start := time.Now()
	out, err := withTempFallback(req, func(r ChatRequest) (*ChatResponse, error) {
		return p.stream(ctx, r, onDelta)
	})
	observeLLM(req.Model, p.Name(), start, out, err)
	return out, err
}

func (p *httpProvider) stream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	httpReq, err := p.newRequest(ctx, toWire(req, true))
	if err != nil {
		return nil, err
	}
	// streams are bounded by ctx, not by the client timeout
	streamClient := &http.Client{Transport: p.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, parseAPIError(resp.StatusCode, raw)
	}

	out := &ChatResponse{Model: req.Model, Provider: p.Name(), InputTokens: estimateMessages(req.Messages)}
	var full strings.Builder
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk chatWireResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			var we wireError
			if json.Unmarshal([]byte(data), &we) == nil && we.Error.Message != "" {
				return &APIError{StatusCode: http.StatusBadGateway, Message: we.Error.Message}
			}
			return nil
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		for _, ch := range chunk.Choices {
			if ch.FinishReason != nil && *ch.FinishReason != "" {
				out.FinishReason = *ch.FinishReason
			}
			d := strings.TrimRight(ch.Delta.Content, "\u0000")
			if d == "" {
				continue
			}
			if onDelta != nil {
				if err := onDelta(d); err != nil {
					return err
				}
			}
			full.WriteString(d)
		}
		return nil
	})
	out.Content = full.String()
	out.OutputTokens = estimateTokens(out.Content)
	if err != nil {
		return out, err
	}
	return out, nil
}

func isUnsupportedTemperature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported", "unknown parameter", "unrecognized", "not supported", "does not support", "only the default"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func observeLLM(model, provider string, start time.Time, out *ChatResponse, err error) {
	metrics := observability.Current()
	if metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if sc := httpx.StatusCode(err); sc > 0 {
			status = fmt.Sprint(sc)
		}
	}
	in, outTok := 0, 0
	if out != nil {
		in, outTok = out.InputTokens, out.OutputTokens
	}
	metrics.ObserveLLMRequest(model, provider, status, time.Since(start), in, outTok)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
