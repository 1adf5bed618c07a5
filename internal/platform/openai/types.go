package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
}

type ChatResponse struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Provider is one way of reaching the chat completions endpoint.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream calls onDelta for every content fragment. An error from onDelta aborts
	// the stream and is returned as is, together with what was received so far.
	ChatStream(ctx context.Context, req ChatRequest, onDelta func(delta string) error) (*ChatResponse, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Models      []string
	Timeout     time.Duration
	MaxRetries  int
	Temperature *float32
	DisableSDK  bool
}

var DefaultModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Models:     envutil.CSV("OPENAI_MODELS", nil),
		Timeout:    envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 120*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 2),
		DisableSDK: envutil.Bool("OPENAI_DISABLE_SDK", false),
	}
	if len(cfg.Models) == 0 {
		if m := envutil.String("OPENAI_MODEL", ""); m != "" {
			cfg.Models = []string{m}
		} else {
			cfg.Models = append([]string(nil), DefaultModels...)
		}
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		t := float32(envutil.Float("OPENAI_TEMPERATURE", 0.4))
		cfg.Temperature = &t
	}
	return cfg
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com"
	}
	// accept both https://host and https://host/v1
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/v1")
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	models := make([]string, 0, len(c.Models))
	seen := map[string]bool{}
	for _, m := range c.Models {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	c.Models = models
	return c
}

// APIError is a non-2xx answer from the API, from either provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "openai: <nil error>"
	}
	msg := strings.TrimSpace(e.Message)
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	if e.Code != "" {
		return fmt.Sprintf("openai http %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, msg)
}

func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

var ErrNoModels = errors.New("openai: no models configured")

func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func estimateMessages(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += estimateTokens(m.Content) + 4
	}
	return n
}
