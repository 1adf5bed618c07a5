package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

var ErrNotConfigured = errors.New("google calendar integration is not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
	// Endpoint overrides the Calendar API base URL (tests, proxies).
	Endpoint string
}

func ConfigFromEnv() Config {
	return Config{
		ClientID:     envutil.String("GOOGLE_CLIENT_ID", ""),
		ClientSecret: envutil.String("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  envutil.String("GOOGLE_CALENDAR_REDIRECT_URL", ""),
		CalendarID:   envutil.String("GOOGLE_CALENDAR_ID", "primary"),
		Endpoint:     envutil.String("GOOGLE_CALENDAR_ENDPOINT", ""),
	}
}

func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

func (t *Token) oauth() *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func fromOAuth(tok *oauth2.Token) *Token {
	if tok == nil {
		return nil
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
}

// Event is a calendar entry derived from an assessment or task. AllDay events use the
// date of Start only.
type Event struct {
	GoogleID    string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	SourceType  string
	SourceID    string
}

type Client interface {
	Enabled() bool
	CalendarID() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	// UpsertEvent updates ev.GoogleID when set (recreating it if Google lost it) or inserts
	// a new event. The returned token differs from tok when it was refreshed.
	UpsertEvent(ctx context.Context, tok *Token, calendarID string, ev Event) (string, *Token, error)
	DeleteEvent(ctx context.Context, tok *Token, calendarID, googleID string) error
}

type client struct {
	log   *logger.Logger
	cfg   Config
	oauth *oauth2.Config
	// httpClient is used for both the token endpoint and the API when set.
	httpClient *http.Client
}

func New(log *logger.Logger, cfg Config) Client {
	return &client{
		log: log.With("client", "GoogleCalendar"),
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
	}
}

func (c *client) Enabled() bool { return c.cfg.Enabled() }

func (c *client) CalendarID() string {
	if c.cfg.CalendarID == "" {
		return "primary"
	}
	return c.cfg.CalendarID
}

func (c *client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (c *client) ctx(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}

func (c *client) Exchange(ctx context.Context, code string) (*Token, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	tok, err := c.oauth.Exchange(c.ctx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}
	return fromOAuth(tok), nil
}

func (c *client) service(ctx context.Context, tok *Token) (*calendar.Service, oauth2.TokenSource, error) {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, nil, fmt.Errorf("calendar link has no token")
	}
	ts := oauth2.ReuseTokenSource(tok.oauth(), c.oauth.TokenSource(c.ctx(ctx), tok.oauth()))
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(c.cfg.Endpoint, "/")+"/"))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, ts, nil
}

func (c *client) UpsertEvent(ctx context.Context, tok *Token, calendarID string, ev Event) (string, *Token, error) {
	if !c.Enabled() {
		return "", nil, ErrNotConfigured
	}
	svc, ts, err := c.service(ctx, tok)
	if err != nil {
		return "", nil, err
	}
	if calendarID == "" {
		calendarID = c.CalendarID()
	}
	gev := ToGoogleEvent(ev)

	var out *calendar.Event
	if ev.GoogleID != "" {
		out, err = svc.Events.Update(calendarID, ev.GoogleID, gev).Context(ctx).Do()
		if isGone(err) {
			c.log.Debug("Calendar event vanished upstream; recreating", "google_event_id", ev.GoogleID)
			err = nil
			out = nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("update event: %w", err)
		}
	}
	if out == nil {
		out, err = svc.Events.Insert(calendarID, gev).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("insert event: %w", err)
		}
	}
	return out.Id, refreshed(tok, ts), nil
}

func (c *client) DeleteEvent(ctx context.Context, tok *Token, calendarID, googleID string) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if googleID == "" {
		return nil
	}
	svc, _, err := c.service(ctx, tok)
	if err != nil {
		return err
	}
	if calendarID == "" {
		calendarID = c.CalendarID()
	}
	if err := svc.Events.Delete(calendarID, googleID).Context(ctx).Do(); err != nil && !isGone(err) {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func refreshed(prev *Token, ts oauth2.TokenSource) *Token {
	cur, err := ts.Token()
	if err != nil || cur == nil || prev == nil || cur.AccessToken == prev.AccessToken {
		return prev
	}
	out := fromOAuth(cur)
	if out.RefreshToken == "" {
		out.RefreshToken = prev.RefreshToken
	}
	return out
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

const dateLayout = "2006-01-02"

func ToGoogleEvent(ev Event) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"studyhub_source": ev.SourceType,
				"studyhub_id":     ev.SourceID,
			},
		},
	}
	if ev.AllDay {
		day := ev.Start.UTC().Format(dateLayout)
		next := ev.Start.UTC().AddDate(0, 0, 1).Format(dateLayout)
		out.Start = &calendar.EventDateTime{Date: day}
		out.End = &calendar.EventDateTime{Date: next}
		return out
	}
	end := ev.End
	if !end.After(ev.Start) {
		end = ev.Start.Add(time.Hour)
	}
	out.Start = &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	out.End = &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	return out
}
