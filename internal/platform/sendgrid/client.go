package sendgrid

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
	"github.com/yungbote/studyhub-backend/internal/platform/httpx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const mailSendEndpoint = "/v3/mail/send"

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	MaxRetries       int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		BaseURL:          strings.TrimSpace(os.Getenv("SENDGRID_BASE_URL")),
		DefaultFromEmail: strings.TrimSpace(os.Getenv("SENDGRID_FROM_EMAIL")),
		DefaultFromName:  strings.TrimSpace(os.Getenv("SENDGRID_FROM_NAME")),
		Timeout:          envutil.Seconds("SENDGRID_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 4),
	}
}

// NewFromEnv returns a SendGrid client, or a logging client when no API key is set.
func NewFromEnv(log *logger.Logger) (Client, error) {
	cfg := ConfigFromEnv()
	if cfg.APIKey == "" {
		return NewLogClient(log), nil
	}
	return New(log, cfg)
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log: log.With("client", "SendGridClient"),
		cfg: cfg,
	}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
	// sleep is swapped in tests.
	sleep func(context.Context, time.Duration) error
}

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Filename    string
	MIMEType    string
	Content     []byte
	Disposition string
}

type SendEmailRequest struct {
	From        EmailAddress
	ReplyTo     *EmailAddress
	To          []EmailAddress
	Subject     string
	Text        string
	HTML        string
	Categories  []string
	CustomArgs  map[string]string
	SendAt      *time.Time
	Attachments []Attachment
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if c == nil {
		return nil, fmt.Errorf("sendgrid client unavailable")
	}
	if strings.TrimSpace(req.From.Email) == "" {
		req.From.Email = c.cfg.DefaultFromEmail
		if strings.TrimSpace(req.From.Name) == "" {
			req.From.Name = c.cfg.DefaultFromName
		}
	}
	m, err := buildMail(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, sgmail.GetRequestBody(m))
	if err != nil {
		return nil, err
	}
	return &SendEmailResult{
		StatusCode: resp.StatusCode,
		MessageID:  firstHeader(resp.Headers, "X-Message-Id"),
	}, nil
}

func buildMail(req SendEmailRequest) (*sgmail.SGMailV3, error) {
	from := strings.TrimSpace(req.From.Email)
	if from == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: Subject required")
	}
	text := strings.TrimSpace(req.Text)
	html := strings.TrimSpace(req.HTML)
	if text == "" && html == "" {
		return nil, fmt.Errorf("sendgrid: Text or HTML content required")
	}

	p := sgmail.NewPersonalization()
	for _, to := range req.To {
		p.AddTos(sgmail.NewEmail(strings.TrimSpace(to.Name), strings.TrimSpace(to.Email)))
	}
	for k, v := range req.CustomArgs {
		p.SetCustomArg(k, v)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(strings.TrimSpace(req.From.Name), from))
	m.Subject = subject
	if req.ReplyTo != nil && strings.TrimSpace(req.ReplyTo.Email) != "" {
		m.SetReplyTo(sgmail.NewEmail(strings.TrimSpace(req.ReplyTo.Name), strings.TrimSpace(req.ReplyTo.Email)))
	}
	m.AddPersonalizations(p)
	// text/plain must precede text/html
	if text != "" {
		m.AddContent(sgmail.NewContent("text/plain", text))
	}
	if html != "" {
		m.AddContent(sgmail.NewContent("text/html", html))
	}
	if len(req.Categories) > 0 {
		m.AddCategories(req.Categories...)
	}
	if req.SendAt != nil {
		m.SetSendAt(int(req.SendAt.Unix()))
	}
	for _, a := range req.Attachments {
		fn := strings.TrimSpace(a.Filename)
		if fn == "" {
			return nil, fmt.Errorf("sendgrid: attachment filename required")
		}
		if len(a.Content) == 0 {
			return nil, fmt.Errorf("sendgrid: attachment %q missing content", fn)
		}
		att := sgmail.NewAttachment()
		att.SetFilename(fn)
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		if t := strings.TrimSpace(a.MIMEType); t != "" {
			att.SetType(t)
		}
		disp := strings.TrimSpace(a.Disposition)
		if disp == "" {
			disp = "attachment"
		}
		att.SetDisposition(disp)
		m.AddAttachment(att)
	}
	return m, nil
}

type errorItem struct {
	Message string `json:"message"`
	Field   any    `json:"field,omitempty"`
}

type errorResponse struct {
	Errors []errorItem `json:"errors"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	Errors     []errorItem
	header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "sendgrid: <nil error>"
	}
	if len(e.Errors) > 0 && strings.TrimSpace(e.Errors[0].Message) != "" {
		return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Errors[0].Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) do(ctx context.Context, body []byte) (*rest.Response, error) {
	ctx = ctxutil.Default(ctx)
	sleep := c.sleep
	if sleep == nil {
		sleep = httpx.Sleep
	}
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.cfg.MaxRetries {
			return nil, err
		}

		var retryHint *http.Response
		var he *HTTPError
		if errors.As(err, &he) {
			retryHint = &http.Response{Header: he.header}
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(retryHint, backoff, 10*time.Second))

		c.log.Warn("Sendgrid request retrying",
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, errors.New("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, body []byte) (*rest.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := sg.GetRequest(c.cfg.APIKey, mailSendEndpoint, c.cfg.BaseURL)
	req.Method = rest.Post
	req.Body = body

	resp, err := rest.SendWithContext(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body, header: http.Header(resp.Headers)}
		var er errorResponse
		if json.Unmarshal([]byte(resp.Body), &er) == nil && len(er.Errors) > 0 {
			he.Errors = er.Errors
		}
		return nil, he
	}
	return resp, nil
}

func firstHeader(h map[string][]string, key string) string {
	v := http.Header(h).Get(key)
	return strings.TrimSpace(v)
}

type logClient struct {
	log *logger.Logger
}

// NewLogClient returns a Client that only logs what it would have sent.
func NewLogClient(log *logger.Logger) Client {
	return &logClient{log: log.With("client", "LogMailClient")}
}

func (c *logClient) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	to := make([]string, 0, len(req.To))
	for _, a := range req.To {
		to = append(to, a.Email)
	}
	c.log.Info("Email not sent (SendGrid disabled)",
		"to", strings.Join(to, ","),
		"subject", req.Subject,
		"text_len", len(req.Text),
		"html_len", len(req.HTML),
	)
	return &SendEmailResult{StatusCode: http.StatusAccepted}, nil
}
