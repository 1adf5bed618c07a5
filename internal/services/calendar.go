package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/calendar"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/gcal"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

const (
	calendarStateAudience = "calendar_link"
	calendarStateTTL      = 10 * time.Minute
	// Assessments due before this far in the past are not pushed.
	calendarLookback = 24 * time.Hour
)

var ErrCalendarNotLinked = apierr.NotFound("calendar_not_linked", "no calendar is linked")

type CalendarStatus struct {
	Configured   bool       `json:"configured"`
	Linked       bool       `json:"linked"`
	CalendarID   string     `json:"calendar_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

type CalendarSyncResult struct {
	Assessments int `json:"assessments"`
	Tasks       int `json:"tasks"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Failed      int `json:"failed"`
}

type CalendarService interface {
	AuthURL(ctx context.Context) (string, error)
	// HandleCallback finishes the OAuth flow. It runs unauthenticated; the caller is
	// recovered from the signed state.
	HandleCallback(ctx context.Context, code, state string) (uuid.UUID, error)
	Status(ctx context.Context) (*CalendarStatus, error)
	Unlink(ctx context.Context) error
	RequestSync(ctx context.Context) (*types.JobRun, error)
	// SyncLater enqueues a sync for userID when they have a linked calendar.
	SyncLater(dbc dbctx.Context, userID uuid.UUID) error
	Sync(ctx context.Context, userID uuid.UUID) (*CalendarSyncResult, error)
}

type calendarService struct {
	db          *gorm.DB
	log         *logger.Logger
	client      gcal.Client
	links       repos.CalendarLinkRepo
	events      repos.CalendarEventRepo
	assessments repos.AssessmentRepo
	tasks       repos.TaskRepo
	subjects    repos.SubjectRepo
	jobs        JobService
	publisher   realtime.Publisher
	stateSecret []byte
	now         Clock
}

func NewCalendarService(
	db *gorm.DB,
	baseLog *logger.Logger,
	client gcal.Client,
	links repos.CalendarLinkRepo,
	events repos.CalendarEventRepo,
	assessments repos.AssessmentRepo,
	tasks repos.TaskRepo,
	subjects repos.SubjectRepo,
	jobs JobService,
	publisher realtime.Publisher,
	stateSecret string,
	now Clock,
) CalendarService {
	if publisher == nil {
		publisher = realtime.NopPublisher()
	}
	return &calendarService{
		db:          db,
		log:         baseLog.With("service", "CalendarService"),
		client:      client,
		links:       links,
		events:      events,
		assessments: assessments,
		tasks:       tasks,
		subjects:    subjects,
		jobs:        jobs,
		publisher:   publisher,
		stateSecret: []byte(stateSecret),
		now:         orClock(now),
	}
}

func (s *calendarService) configured() bool {
	return s.client != nil && s.client.Enabled()
}

func (s *calendarService) signState(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{calendarStateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(calendarStateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.stateSecret)
}

func (s *calendarService) parseState(state string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return s.stateSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(calendarStateAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, apierr.BadRequest("invalid_state", "calendar link state is invalid or expired")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apierr.BadRequest("invalid_state", "calendar link state is invalid")
	}
	return id, nil
}

func (s *calendarService) AuthURL(ctx context.Context) (string, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return "", err
	}
	if !s.configured() {
		return "", apierr.Unavailable("calendar_disabled", gcal.ErrNotConfigured.Error())
	}
	state, err := s.signState(userID)
	if err != nil {
		return "", fmt.Errorf("sign calendar state: %w", err)
	}
	return s.client.AuthCodeURL(state), nil
}

func (s *calendarService) HandleCallback(ctx context.Context, code, state string) (uuid.UUID, error) {
	if !s.configured() {
		return uuid.Nil, apierr.Unavailable("calendar_disabled", gcal.ErrNotConfigured.Error())
	}
	if code == "" {
		return uuid.Nil, apierr.BadRequest("missing_code", "authorization code is required")
	}
	userID, err := s.parseState(state)
	if err != nil {
		return uuid.Nil, err
	}
	tok, err := s.client.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("Calendar code exchange failed", "user_id", userID, "error", err)
		return uuid.Nil, apierr.New(http.StatusBadGateway, "calendar_exchange_failed", errors.New("could not link the calendar"))
	}
	link := &types.CalendarLink{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		CalendarID:   s.client.CalendarID(),
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		link.Expiry = &exp
	}
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if err := s.links.Upsert(inner, link); err != nil {
			return fmt.Errorf("save calendar link: %w", err)
		}
		// A new link may point at a different account; forget old event mappings.
		if err := s.events.DeleteByUser(inner, userID); err != nil {
			return err
		}
		_, _, err := s.jobs.EnqueueIfAbsent(inner, userID, domainjobs.TypeCalendarSync, "user", &userID, nil)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.log.Info("Calendar linked", "user_id", userID)
	return userID, nil
}

func (s *calendarService) Status(ctx context.Context) (*CalendarStatus, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	st := &CalendarStatus{Configured: s.configured()}
	link, err := s.links.GetByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	if link != nil {
		st.Linked = true
		st.CalendarID = link.CalendarID
		st.LastSyncedAt = link.LastSyncedAt
	}
	return st, nil
}

func (s *calendarService) Unlink(ctx context.Context) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	return inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		removed, err := s.links.Delete(inner, userID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrCalendarNotLinked
		}
		return s.events.DeleteByUser(inner, userID)
	})
}

func (s *calendarService) RequestSync(ctx context.Context) (*types.JobRun, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	link, err := s.links.GetByUser(dbc, userID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrCalendarNotLinked
	}
	return s.jobs.Enqueue(dbc, userID, domainjobs.TypeCalendarSync, "user", &userID, nil)
}

func (s *calendarService) SyncLater(dbc dbctx.Context, userID uuid.UUID) error {
	if !s.configured() {
		return nil
	}
	link, err := s.links.GetByUser(dbc, userID)
	if err != nil || link == nil {
		return err
	}
	_, _, err = s.jobs.EnqueueIfAbsent(dbc, userID, domainjobs.TypeCalendarSync, "user", &userID, nil)
	return err
}

// allDay treats a due date at exactly midnight UTC as a date without a time.
func allDay(t time.Time) bool {
	t = t.UTC()
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func (s *calendarService) Sync(ctx context.Context, userID uuid.UUID) (*CalendarSyncResult, error) {
	if !s.configured() {
		return nil, gcal.ErrNotConfigured
	}
	dbc := dbctx.Context{Ctx: ctx}
	link, err := s.links.GetByUser(dbc, userID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrCalendarNotLinked
	}
	tok := &gcal.Token{
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		TokenType:    link.TokenType,
	}
	if link.Expiry != nil {
		tok.Expiry = *link.Expiry
	}

	now := s.now()
	from := now.Add(-calendarLookback)
	open := false
	var (
		assessments []*types.Assessment
		tasks       []*types.Task
		subjects    []*types.Subject
	)
	err = runQueries(dbc, []func(dbctx.Context) error{
		func(d dbctx.Context) (err error) {
			assessments, err = s.assessments.ListForUser(d, userID, repos.AssessmentFilter{From: &from})
			return
		},
		func(d dbctx.Context) (err error) {
			tasks, err = s.tasks.ListForUser(d, userID, repos.TaskFilter{Completed: &open})
			return
		},
		func(d dbctx.Context) (err error) { subjects, err = s.subjects.ListForUser(d, userID); return },
	})
	if err != nil {
		return nil, err
	}
	subjectNames := make(map[uuid.UUID]string, len(subjects))
	for _, sub := range subjects {
		subjectNames[sub.ID] = sub.Name
	}

	var pending []gcal.Event
	assessmentIDs := make([]uuid.UUID, 0, len(assessments))
	for _, a := range assessments {
		assessmentIDs = append(assessmentIDs, a.ID)
	}
	taskIDs := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate != nil {
			taskIDs = append(taskIDs, t.ID)
		}
	}
	knownAssessments, err := s.events.GetBySources(dbc, userID, calendar.SourceAssessment, assessmentIDs)
	if err != nil {
		return nil, err
	}
	knownTasks, err := s.events.GetBySources(dbc, userID, calendar.SourceTask, taskIDs)
	if err != nil {
		return nil, err
	}
	res := &CalendarSyncResult{}
	for _, a := range assessments {
		ev := gcal.Event{
			Summary:     fmt.Sprintf("[%s] %s", a.Type, a.Title),
			Description: a.Description,
			Start:       a.DueDate,
			AllDay:      allDay(a.DueDate),
			SourceType:  calendar.SourceAssessment,
			SourceID:    a.ID.String(),
		}
		if name := subjectNames[a.SubjectID]; name != "" {
			ev.Summary += " (" + name + ")"
		}
		if m := knownAssessments[a.ID]; m != nil {
			ev.GoogleID = m.GoogleEventID
		}
		pending = append(pending, ev)
		res.Assessments++
	}
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		ev := gcal.Event{
			Summary:     t.Title,
			Description: t.Description,
			Start:       *t.DueDate,
			AllDay:      allDay(*t.DueDate),
			SourceType:  calendar.SourceTask,
			SourceID:    t.ID.String(),
		}
		if m := knownTasks[t.ID]; m != nil {
			ev.GoogleID = m.GoogleEventID
		}
		pending = append(pending, ev)
		res.Tasks++
	}

	var lastErr error
	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		googleID, newTok, err := s.client.UpsertEvent(ctx, tok, link.CalendarID, ev)
		if newTok != nil && newTok.AccessToken != tok.AccessToken {
			tok = newTok
			exp := newTok.Expiry
			if uerr := s.links.UpdateTokens(dbc, userID, newTok.AccessToken, newTok.RefreshToken, newTok.TokenType, &exp); uerr != nil {
				s.log.Warn("Failed to persist refreshed calendar token", "user_id", userID, "error", uerr)
			}
		}
		if err != nil {
			res.Failed++
			lastErr = err
			s.log.Warn("Calendar event upsert failed", "user_id", userID, "source_type", ev.SourceType, "source_id", ev.SourceID, "error", err)
			continue
		}
		if ev.GoogleID == "" {
			res.Created++
		} else {
			res.Updated++
		}
		sourceID, _ := uuid.Parse(ev.SourceID)
		if err := s.events.Upsert(dbc, &types.CalendarEvent{
			UserID:        userID,
			SourceType:    ev.SourceType,
			SourceID:      sourceID,
			GoogleEventID: googleID,
		}); err != nil {
			return res, fmt.Errorf("record calendar event: %w", err)
		}
	}
	if lastErr != nil && res.Created+res.Updated == 0 {
		return res, fmt.Errorf("calendar sync failed: %w", lastErr)
	}
	if err := s.links.MarkSynced(dbc, userID, now); err != nil {
		return res, err
	}
	s.publisher.Publish(ctx, realtime.SSEMessage{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.SSEEventCalendarSynced,
		Data:    res,
	})
	return res, nil
}
