package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domaingam "github.com/yungbote/studyhub-backend/internal/domain/gamification"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
	"github.com/yungbote/studyhub-backend/internal/modules/pomodoro"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

// maxCatchUp bounds how much wall-clock time one read replays into a running timer.
const maxCatchUp = 12 * time.Hour

type PomodoroView struct {
	*types.PomodoroState
	NextPhase   pomodoro.Phase        `json:"next_phase"`
	Transitions []pomodoro.Transition `json:"transitions,omitempty"`
}

type PomodoroSettingsInput struct {
	StudyMinutes     int  `json:"study_minutes"`
	BreakMinutes     int  `json:"break_minutes"`
	LongBreakMinutes int  `json:"long_break_minutes"`
	AutoStart        bool `json:"auto_start"`
}

type PomodoroService interface {
	Get(ctx context.Context) (*PomodoroView, error)
	UpdateSettings(ctx context.Context, in PomodoroSettingsInput) (*PomodoroView, error)
	Start(ctx context.Context, subjectID *uuid.UUID) (*PomodoroView, error)
	Pause(ctx context.Context) (*PomodoroView, error)
	Skip(ctx context.Context) (*PomodoroView, error)
	// Reset rewinds the current phase, or the whole cycle when full is set.
	Reset(ctx context.Context, full bool) (*PomodoroView, error)
	Sessions(ctx context.Context, since *time.Time, limit int) ([]*types.PomodoroSession, error)
}

type pomodoroService struct {
	db           *gorm.DB
	log          *logger.Logger
	states       repos.PomodoroStateRepo
	sessions     repos.PomodoroSessionRepo
	subjects     repos.SubjectRepo
	activities   repos.ActivityRepo
	gamification GamificationService
	publisher    realtime.Publisher
	now          Clock
}

func NewPomodoroService(
	db *gorm.DB,
	baseLog *logger.Logger,
	states repos.PomodoroStateRepo,
	sessions repos.PomodoroSessionRepo,
	subjects repos.SubjectRepo,
	activities repos.ActivityRepo,
	gamification GamificationService,
	publisher realtime.Publisher,
	now Clock,
) PomodoroService {
	if publisher == nil {
		publisher = realtime.NopPublisher()
	}
	return &pomodoroService{
		db:           db,
		log:          baseLog.With("service", "PomodoroService"),
		states:       states,
		sessions:     sessions,
		subjects:     subjects,
		activities:   activities,
		gamification: gamification,
		publisher:    publisher,
		now:          orClock(now),
	}
}

func machineFrom(st *types.PomodoroState) *pomodoro.Machine {
	phase, ok := pomodoro.ParsePhase(st.Phase)
	if !ok {
		phase = pomodoro.PhaseStudy
	}
	return &pomodoro.Machine{
		Settings: pomodoro.Settings{
			StudyMinutes:     st.StudyMinutes,
			BreakMinutes:     st.BreakMinutes,
			LongBreakMinutes: st.LongBreakMinutes,
			AutoStart:        st.AutoStart,
		},
		Phase:          phase,
		TimeLeft:       st.TimeLeftSeconds,
		Running:        st.Running,
		CompletedStudy: st.CompletedStudyCount,
	}
}

func storeMachine(st *types.PomodoroState, m *pomodoro.Machine) {
	st.StudyMinutes = m.Settings.StudyMinutes
	st.BreakMinutes = m.Settings.BreakMinutes
	st.LongBreakMinutes = m.Settings.LongBreakMinutes
	st.AutoStart = m.Settings.AutoStart
	st.Phase = string(m.Phase)
	st.TimeLeftSeconds = m.TimeLeft
	st.Running = m.Running
	st.CompletedStudyCount = m.CompletedStudy
}

type pomodoroStep struct {
	view   *PomodoroView
	awards []*AwardResult
}

// mutate loads the caller's timer, replays elapsed time, applies cmd and persists the
// result. Completed study phases are recorded and awarded inside the same transaction.
func (s *pomodoroService) mutate(ctx context.Context, cmd func(inner dbctx.Context, st *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error)) (*PomodoroView, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	var step pomodoroStep
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		now := s.now()
		st, err := s.states.Get(inner, userID)
		if err != nil {
			return fmt.Errorf("load pomodoro state: %w", err)
		}
		if st == nil {
			def := pomodoro.New(pomodoro.DefaultSettings())
			st = &types.PomodoroState{UserID: userID, TickedAt: now}
			storeMachine(st, def)
		}
		m := machineFrom(st)

		var transitions []pomodoro.Transition
		if m.Running {
			elapsed := now.Sub(st.TickedAt)
			if elapsed > maxCatchUp {
				elapsed = maxCatchUp
			}
			if secs := int(elapsed / time.Second); secs > 0 {
				transitions = m.Advance(secs)
				st.TickedAt = st.TickedAt.Add(time.Duration(secs) * time.Second)
				if now.Sub(st.TickedAt) > time.Second {
					st.TickedAt = now
				}
			}
		}
		if !m.Running {
			st.TickedAt = now
		}
		if cmd != nil {
			wasRunning := m.Running
			more, err := cmd(inner, st, m)
			if err != nil {
				return err
			}
			transitions = append(transitions, more...)
			if m.Running && !wasRunning {
				st.TickedAt = now
			}
		}
		storeMachine(st, m)

		for _, tr := range transitions {
			if tr.From != pomodoro.PhaseStudy || !tr.Completed {
				continue
			}
			award, err := s.recordStudy(inner, st, tr, now)
			if err != nil {
				return err
			}
			step.awards = append(step.awards, award)
		}
		if err := s.states.Upsert(inner, st); err != nil {
			return fmt.Errorf("save pomodoro state: %w", err)
		}
		step.view = &PomodoroView{PomodoroState: st, NextPhase: m.Next(), Transitions: transitions}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, a := range step.awards {
		s.gamification.Publish(ctx, a)
	}
	for _, tr := range step.view.Transitions {
		s.publisher.Publish(ctx, realtime.SSEMessage{
			Channel: realtime.UserChannel(userID),
			Event:   realtime.SSEEventPomodoroTransition,
			Data:    map[string]any{"transition": tr, "state": step.view.PomodoroState},
		})
	}
	return step.view, nil
}

func (s *pomodoroService) recordStudy(dbc dbctx.Context, st *types.PomodoroState, tr pomodoro.Transition, at time.Time) (*AwardResult, error) {
	session := &types.PomodoroSession{
		UserID:          st.UserID,
		SubjectID:       st.SubjectID,
		Phase:           string(tr.From),
		DurationSeconds: tr.Seconds,
		CompletedAt:     at,
	}
	if _, err := s.sessions.Create(dbc, []*types.PomodoroSession{session}); err != nil {
		return nil, fmt.Errorf("record pomodoro session: %w", err)
	}
	activity := &types.Activity{
		UserID:     st.UserID,
		Type:       social.ActivityPomodoroCompleted,
		Visibility: social.VisibilityPublic,
		Content:    fmt.Sprintf("Finished a %d minute study session", tr.Seconds/60),
		SubjectID:  st.SubjectID,
		Metadata:   datatypes.JSONMap{"duration_seconds": tr.Seconds, "session_id": session.ID.String()},
		CreatedAt:  at,
	}
	if st.SubjectID != nil {
		if subj, err := s.subjects.GetForUser(dbc, st.UserID, *st.SubjectID); err == nil {
			activity.SubjectName = subj.Name
		}
	}
	if _, err := s.activities.Create(dbc, []*types.Activity{activity}); err != nil {
		return nil, fmt.Errorf("record pomodoro activity: %w", err)
	}
	return s.gamification.Award(dbc, st.UserID, domaingam.ReasonPomodoroCompleted, &session.ID)
}

func (s *pomodoroService) Get(ctx context.Context) (*PomodoroView, error) {
	return s.mutate(ctx, nil)
}

func (s *pomodoroService) UpdateSettings(ctx context.Context, in PomodoroSettingsInput) (*PomodoroView, error) {
	settings := pomodoro.Settings{
		StudyMinutes:     in.StudyMinutes,
		BreakMinutes:     in.BreakMinutes,
		LongBreakMinutes: in.LongBreakMinutes,
		AutoStart:        in.AutoStart,
	}
	if err := settings.Validate(); err != nil {
		return nil, apierr.BadRequest("invalid_settings", err.Error())
	}
	return s.mutate(ctx, func(_ dbctx.Context, _ *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error) {
		m.Settings = settings
		full := settings.Duration(m.Phase)
		if !m.Running || m.TimeLeft > full {
			m.TimeLeft = full
		}
		return nil, nil
	})
}

func (s *pomodoroService) Start(ctx context.Context, subjectID *uuid.UUID) (*PomodoroView, error) {
	return s.mutate(ctx, func(inner dbctx.Context, st *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error) {
		if subjectID != nil && *subjectID != uuid.Nil {
			if _, err := s.subjects.GetForUser(inner, st.UserID, *subjectID); err != nil {
				return nil, notFound(err, "subject_not_found", "subject not found")
			}
			st.SubjectID = subjectID
		}
		m.Start()
		return nil, nil
	})
}

func (s *pomodoroService) Pause(ctx context.Context) (*PomodoroView, error) {
	return s.mutate(ctx, func(_ dbctx.Context, _ *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error) {
		m.Pause()
		return nil, nil
	})
}

func (s *pomodoroService) Skip(ctx context.Context) (*PomodoroView, error) {
	return s.mutate(ctx, func(_ dbctx.Context, _ *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error) {
		return []pomodoro.Transition{m.Skip()}, nil
	})
}

func (s *pomodoroService) Reset(ctx context.Context, full bool) (*PomodoroView, error) {
	return s.mutate(ctx, func(_ dbctx.Context, _ *types.PomodoroState, m *pomodoro.Machine) ([]pomodoro.Transition, error) {
		if full {
			m.ResetCycle()
		} else {
			m.Reset()
		}
		return nil, nil
	})
}

func (s *pomodoroService) Sessions(ctx context.Context, since *time.Time, limit int) ([]*types.PomodoroSession, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.ListForUser(dbctx.Context{Ctx: ctx}, userID, since, clampLimit(limit, 50, 200))
}
