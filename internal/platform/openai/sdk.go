package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

// sdkProvider goes through github.com/sashabaranov/go-openai.
type sdkProvider struct {
	log    *logger.Logger
	client *goopenai.Client
}

func NewSDKProvider(log *logger.Logger, cfg Config) Provider {
	cfg = cfg.normalized()
	sc := goopenai.DefaultConfig(cfg.APIKey)
	sc.BaseURL = cfg.BaseURL + "/v1"
	sc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &sdkProvider{
		log:    log.With("provider", "OpenAISDK"),
		client: goopenai.NewClientWithConfig(sc),
	}
}

func (p *sdkProvider) Name() string { return "sdk" }

func toSDK(req ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	out := goopenai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out
}

// fromSDKError maps SDK errors onto APIError so callers classify both providers alike.
// Transport failures pass through unchanged.
func fromSDKError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		switch c := apiErr.Code.(type) {
		case string:
			code = c
		case nil:
			code = apiErr.Type
		default:
			code = fmt.Sprint(c)
		}
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Code: code, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

func (p *sdkProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	out, err := withTempFallback(req, func(r ChatRequest) (*ChatResponse, error) {
		resp, err := p.client.CreateChatCompletion(ctx, toSDK(r, false))
		if err != nil {
			return nil, fromSDKError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}
		return &ChatResponse{
			Model:        firstNonEmpty(resp.Model, r.Model),
			Provider:     p.Name(),
			Content:      resp.Choices[0].Message.Content,
			FinishReason: string(resp.Choices[0].FinishReason),
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}, nil
	})
	observeLLM(req.Model, p.Name(), start, out, err)
	return out, err
}

func (p *sdkProvider) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	start := time.Now()
	out, err := withTempFallback(req, func(r ChatRequest) (*ChatResponse, error) {
		return p.stream(ctx, r, onDelta)
	})
	observeLLM(req.Model, p.Name(), start, out, err)
	return out, err
}

func (p *sdkProvider) stream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, toSDK(req, true))
	if err != nil {
		return nil, fromSDKError(err)
	}
	defer stream.Close()

	out := &ChatResponse{Model: req.Model, Provider: p.Name(), InputTokens: estimateMessages(req.Messages)}
	var full strings.Builder
	defer func() {
		out.Content = full.String()
		out.OutputTokens = estimateTokens(out.Content)
	}()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fromSDKError(err)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		for _, ch := range chunk.Choices {
			if ch.FinishReason != "" {
				out.FinishReason = string(ch.FinishReason)
			}
			if ch.Delta.Content == "" {
				continue
			}
			if onDelta != nil {
				if err := onDelta(ch.Delta.Content); err != nil {
					return out, err
				}
			}
			full.WriteString(ch.Delta.Content)
		}
	}
}
