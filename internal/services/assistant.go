package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/assistant"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/platform/openai"
)

const (
	assistantHistory     = 20
	assistantHorizon     = 14 * 24 * time.Hour
	assistantMaxTokens   = 800
	assistantStreamLimit = 60 * time.Second
	assistantMaxChunks   = 4000
)

// LLM is the completion client the assistant talks to.
type LLM interface {
	Chat(ctx context.Context, msgs []openai.Message, maxTokens int) (*openai.ChatResponse, error)
	Stream(ctx context.Context, msgs []openai.Message, opts openai.StreamOptions, onDelta func(string) error) (*openai.StreamResult, error)
}

type AssistantChatInput struct {
	ThreadID *uuid.UUID `json:"thread_id"`
	Message  string     `json:"message"`
}

type AssistantReply struct {
	ThreadID  uuid.UUID               `json:"thread_id"`
	Message   *types.AssistantMessage `json:"message"`
	Model     string                  `json:"model"`
	Truncated string                  `json:"truncated,omitempty"`
	Remaining int                     `json:"remaining"`
}

type AssistantService interface {
	Chat(ctx context.Context, in AssistantChatInput) (*AssistantReply, error)
	// Stream relays reply fragments to onDelta as they arrive, then persists the reply.
	Stream(ctx context.Context, in AssistantChatInput, onDelta func(string) error) (*AssistantReply, error)
	Threads(ctx context.Context, limit, offset int) ([]*types.AssistantThread, error)
	Messages(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*types.AssistantMessage, error)
	DeleteThread(ctx context.Context, threadID uuid.UUID) error
}

type assistantService struct {
	db          *gorm.DB
	log         *logger.Logger
	llm         LLM
	quota       AssistantQuota
	threads     repos.AssistantThreadRepo
	messages    repos.AssistantMessageRepo
	assessments repos.AssessmentRepo
	tasks       repos.TaskRepo
	users       repos.UserRepo
	now         Clock
}

func NewAssistantService(
	db *gorm.DB,
	baseLog *logger.Logger,
	llm LLM,
	quota AssistantQuota,
	threads repos.AssistantThreadRepo,
	messages repos.AssistantMessageRepo,
	assessments repos.AssessmentRepo,
	tasks repos.TaskRepo,
	users repos.UserRepo,
	now Clock,
) AssistantService {
	return &assistantService{
		db:          db,
		log:         baseLog.With("service", "AssistantService"),
		llm:         llm,
		quota:       quota,
		threads:     threads,
		messages:    messages,
		assessments: assessments,
		tasks:       tasks,
		users:       users,
		now:         orClock(now),
	}
}

type assistantTurn struct {
	userID    uuid.UUID
	thread    *types.AssistantThread
	prompt    []openai.Message
	remaining int
}

// begin checks the quota, resolves or opens the thread, stores the user's message and
// assembles the prompt.
func (s *assistantService) begin(ctx context.Context, in AssistantChatInput) (*assistantTurn, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	text := clean(in.Message)
	if err := requireLength("message", text, 1, 4000); err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, apierr.Unavailable("assistant_disabled", "the assistant is not configured")
	}
	turn := &assistantTurn{userID: userID, remaining: -1}
	if s.quota != nil {
		if turn.remaining, err = s.quota.Take(ctx, userID); err != nil {
			return nil, err
		}
	}

	var history []*types.AssistantMessage
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if in.ThreadID != nil && *in.ThreadID != uuid.Nil {
			t, err := s.threads.GetForUser(inner, userID, *in.ThreadID)
			if err != nil {
				return notFound(err, "thread_not_found", "thread not found")
			}
			turn.thread = t
			if history, err = s.messages.ListRecent(inner, t.ID, assistantHistory); err != nil {
				return fmt.Errorf("load thread history: %w", err)
			}
		} else {
			t, err := s.threads.Create(inner, &types.AssistantThread{UserID: userID, Title: threadTitle(text)})
			if err != nil {
				return fmt.Errorf("create thread: %w", err)
			}
			turn.thread = t
		}
		_, err := s.messages.Create(inner, []*types.AssistantMessage{{
			ThreadID:  turn.thread.ID,
			UserID:    userID,
			Role:      assistant.RoleUser,
			Content:   text,
			CreatedAt: s.now(),
		}})
		return err
	})
	if err != nil {
		return nil, err
	}

	system, err := s.systemPrompt(ctx, userID)
	if err != nil {
		return nil, err
	}
	turn.prompt = append(turn.prompt, openai.Message{Role: openai.RoleSystem, Content: system})
	for _, m := range history {
		turn.prompt = append(turn.prompt, openai.Message{Role: m.Role, Content: m.Content})
	}
	turn.prompt = append(turn.prompt, openai.Message{Role: openai.RoleUser, Content: text})
	return turn, nil
}

func (s *assistantService) finish(ctx context.Context, turn *assistantTurn, content, model, truncated string) (*AssistantReply, error) {
	msg := &types.AssistantMessage{
		ThreadID:  turn.thread.ID,
		UserID:    turn.userID,
		Role:      assistant.RoleAssistant,
		Content:   content,
		Model:     model,
		CreatedAt: s.now(),
	}
	err := inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if _, err := s.messages.Create(inner, []*types.AssistantMessage{msg}); err != nil {
			return fmt.Errorf("store reply: %w", err)
		}
		return s.threads.Touch(inner, turn.thread.ID)
	})
	if err != nil {
		return nil, err
	}
	return &AssistantReply{
		ThreadID:  turn.thread.ID,
		Message:   msg,
		Model:     model,
		Truncated: truncated,
		Remaining: turn.remaining,
	}, nil
}

func (s *assistantService) Chat(ctx context.Context, in AssistantChatInput) (*AssistantReply, error) {
	turn, err := s.begin(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := s.llm.Chat(ctx, turn.prompt, assistantMaxTokens)
	if err != nil {
		s.log.Warn("Assistant completion failed", "thread_id", turn.thread.ID, "error", err)
		return nil, apierr.New(http.StatusBadGateway, "assistant_unavailable", fmt.Errorf("assistant request failed: %w", err))
	}
	return s.finish(ctx, turn, res.Content, res.Model, "")
}

func (s *assistantService) Stream(ctx context.Context, in AssistantChatInput, onDelta func(string) error) (*AssistantReply, error) {
	turn, err := s.begin(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := s.llm.Stream(ctx, turn.prompt, openai.StreamOptions{
		SoftTimeout: assistantStreamLimit,
		MaxChunks:   assistantMaxChunks,
		MaxTokens:   assistantMaxTokens,
	}, onDelta)
	if err != nil && (res == nil || res.Content == "") {
		s.log.Warn("Assistant stream failed", "thread_id", turn.thread.ID, "error", err)
		return nil, apierr.New(http.StatusBadGateway, "assistant_unavailable", fmt.Errorf("assistant request failed: %w", err))
	}
	// Keep partial text when the client went away mid-stream.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	return s.finish(persistCtx, turn, res.Content, res.Model, res.Truncated)
}

func (s *assistantService) systemPrompt(ctx context.Context, userID uuid.UUID) (string, error) {
	now := s.now()
	until := now.Add(assistantHorizon)
	dbc := dbctx.Context{Ctx: ctx}
	open := false

	var (
		user        []*types.User
		assessments []*types.Assessment
		tasks       []*types.Task
	)
	err := runQueries(dbc, []func(dbctx.Context) error{
		func(d dbctx.Context) (err error) { user, err = s.users.GetByIDs(d, []uuid.UUID{userID}); return },
		func(d dbctx.Context) (err error) {
			assessments, err = s.assessments.ListForUser(d, userID, repos.AssessmentFilter{From: &now, To: &until})
			return
		},
		func(d dbctx.Context) (err error) {
			tasks, err = s.tasks.ListForUser(d, userID, repos.TaskFilter{Completed: &open})
			return
		},
	})
	if err != nil {
		return "", fmt.Errorf("assistant context: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are StudyHub's study assistant. Help the student plan, review and stay on top of coursework. ")
	b.WriteString("Be concise and practical. Today is ")
	b.WriteString(now.Format("Monday, 2 January 2006"))
	b.WriteString(".\n")
	if len(user) > 0 {
		u := user[0]
		fmt.Fprintf(&b, "Student: %s", u.DisplayName())
		if u.Course != "" {
			fmt.Fprintf(&b, ", %s", u.Course)
		}
		if u.University != "" {
			fmt.Fprintf(&b, " at %s", u.University)
		}
		b.WriteString(".\n")
	}
	if len(assessments) > 0 {
		b.WriteString("\nUpcoming assessments (next 14 days):\n")
		for i, a := range assessments {
			if i == 10 {
				break
			}
			subject := ""
			if a.Subject != nil {
				subject = " [" + a.Subject.Name + "]"
			}
			fmt.Fprintf(&b, "- %s %s%s due %s", a.Type, a.Title, subject, a.DueDate.Format("Mon 2 Jan 15:04"))
			if a.Weight > 0 {
				fmt.Fprintf(&b, " (weight %.0f%%)", a.Weight)
			}
			b.WriteString("\n")
		}
	}
	if len(tasks) > 0 {
		sort.SliceStable(tasks, func(i, j int) bool {
			di, dj := tasks[i].DueDate, tasks[j].DueDate
			switch {
			case di == nil:
				return false
			case dj == nil:
				return true
			}
			return di.Before(*dj)
		})
		b.WriteString("\nOpen tasks:\n")
		for i, t := range tasks {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s", t.Priority, t.Title)
			if t.DueDate != nil {
				fmt.Fprintf(&b, " due %s", t.DueDate.Format("Mon 2 Jan"))
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func threadTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return text
}

func (s *assistantService) Threads(ctx context.Context, limit, offset int) ([]*types.AssistantThread, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	return s.threads.ListForUser(dbctx.Context{Ctx: ctx}, userID, clampLimit(limit, 20, 100), offset)
}

func (s *assistantService) Messages(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*types.AssistantMessage, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.threads.GetForUser(dbc, userID, threadID); err != nil {
		return nil, notFound(err, "thread_not_found", "thread not found")
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.ListForThread(dbc, threadID, clampLimit(limit, 50, 200), offset)
}

func (s *assistantService) DeleteThread(ctx context.Context, threadID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if err := s.threads.Delete(dbctx.Context{Ctx: ctx}, userID, threadID); err != nil {
		return notFound(err, "thread_not_found", "thread not found")
	}
	return nil
}
