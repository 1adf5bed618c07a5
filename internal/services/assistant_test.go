package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyhub-backend/internal/platform/openai"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts [][]openai.Message
	reply   string
	err     error
}

func (l *fakeLLM) record(msgs []openai.Message) {
	l.mu.Lock()
	l.prompts = append(l.prompts, append([]openai.Message(nil), msgs...))
	l.mu.Unlock()
}

func (l *fakeLLM) Chat(_ context.Context, msgs []openai.Message, _ int) (*openai.ChatResponse, error) {
	l.record(msgs)
	if l.err != nil {
		return nil, l.err
	}
	return &openai.ChatResponse{Model: "test-model", Content: l.reply}, nil
}

func (l *fakeLLM) Stream(_ context.Context, msgs []openai.Message, _ openai.StreamOptions, onDelta func(string) error) (*openai.StreamResult, error) {
	l.record(msgs)
	if l.err != nil {
		return nil, l.err
	}
	for _, part := range strings.SplitAfter(l.reply, " ") {
		if err := onDelta(part); err != nil {
			return nil, err
		}
	}
	return &openai.StreamResult{ChatResponse: openai.ChatResponse{Model: "test-model", Content: l.reply}}, nil
}

func newAssistant(f *fixture, llm LLM, quota AssistantQuota) AssistantService {
	return NewAssistantService(f.db, f.log, llm, quota,
		repos.NewAssistantThreadRepo(f.db, f.log),
		repos.NewAssistantMessageRepo(f.db, f.log),
		f.assessments, f.tasks, f.users, f.clock.Now)
}

func TestAssistantChatKeepsThreadHistory(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	ctx := asUser(u)
	testutil.SeedTask(t, ctx, f.db, u, "Finish lab report")
	llm := &fakeLLM{reply: "Start with the methods section."}
	svc := newAssistant(f, llm, nil)

	first, err := svc.Chat(ctx, AssistantChatInput{Message: "How should I plan today?"})
	require.NoError(t, err)
	require.Equal(t, "Start with the methods section.", first.Message.Content)
	require.Equal(t, "test-model", first.Model)
	require.Equal(t, -1, first.Remaining)

	system := llm.prompts[0][0]
	require.Equal(t, openai.RoleSystem, system.Role)
	require.Contains(t, system.Content, "Finish lab report")

	_, err = svc.Chat(ctx, AssistantChatInput{ThreadID: &first.ThreadID, Message: "And tomorrow?"})
	require.NoError(t, err)
	second := llm.prompts[1]
	// system, earlier user turn, earlier reply, new message
	require.Len(t, second, 4)
	require.Equal(t, "How should I plan today?", second[1].Content)
	require.Equal(t, "Start with the methods section.", second[2].Content)
	require.Equal(t, "And tomorrow?", second[3].Content)

	msgs, err := svc.Messages(ctx, first.ThreadID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, role := range []string{"user", "assistant", "user", "assistant"} {
		require.Equal(t, role, msgs[i].Role, "message %d", i)
		require.EqualValues(t, i+1, msgs[i].Seq)
	}

	threads, err := svc.Threads(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, "How should I plan today?", threads[0].Title)
}

func TestAssistantStreamPersistsReply(t *testing.T) {
	f := newFixture(t)
	ctx := asUser(f.user(t, "a@example.com"))
	svc := newAssistant(f, &fakeLLM{reply: "one two three"}, nil)

	var got strings.Builder
	reply, err := svc.Stream(ctx, AssistantChatInput{Message: "count"}, func(s string) error {
		got.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "one two three", got.String())
	require.Equal(t, "one two three", reply.Message.Content)
}

func TestAssistantErrors(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	other := f.user(t, "other@example.com")

	disabled := newAssistant(f, nil, nil)
	_, err := disabled.Chat(asUser(owner), AssistantChatInput{Message: "hi"})
	require.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))

	failing := newAssistant(f, &fakeLLM{err: errors.New("upstream down")}, nil)
	_, err = failing.Chat(asUser(owner), AssistantChatInput{Message: "hi"})
	require.Equal(t, http.StatusBadGateway, statusOf(t, err))

	svc := newAssistant(f, &fakeLLM{reply: "ok"}, nil)
	_, err = svc.Chat(asUser(owner), AssistantChatInput{Message: "   "})
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))

	reply, err := svc.Chat(asUser(owner), AssistantChatInput{Message: "mine"})
	require.NoError(t, err)
	_, err = svc.Chat(asUser(other), AssistantChatInput{ThreadID: &reply.ThreadID, Message: "let me in"})
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	err = svc.DeleteThread(asUser(other), reply.ThreadID)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	require.NoError(t, svc.DeleteThread(asUser(owner), reply.ThreadID))
}

func TestAssistantQuotaLocalLimiter(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")
	quota := NewAssistantQuota(f.log, nil, 2, f.clock.Now)
	svc := newAssistant(f, &fakeLLM{reply: "ok"}, quota)
	ctx := asUser(u)

	first, err := svc.Chat(ctx, AssistantChatInput{Message: "one"})
	require.NoError(t, err)
	require.Equal(t, 1, first.Remaining)
	_, err = svc.Chat(ctx, AssistantChatInput{Message: "two"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, AssistantChatInput{Message: "three"})
	require.Equal(t, http.StatusTooManyRequests, statusOf(t, err))

	// The bucket refills over the day.
	f.clock.Advance(13 * time.Hour)
	_, err = svc.Chat(ctx, AssistantChatInput{Message: "later"})
	require.NoError(t, err)
}

func TestAssistantQuotaDisabled(t *testing.T) {
	q := NewAssistantQuota(testutil.Logger(t), nil, 0, nil)
	n, err := q.Take(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, -1, n)
}
