package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/sendgrid"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

func newGroups(f *fixture) GroupService {
	return NewGroupService(f.db, f.log,
		repos.NewStudyGroupRepo(f.db, f.log),
		repos.NewGroupMemberRepo(f.db, f.log),
		repos.NewGroupMessageRepo(f.db, f.log),
		f.users, f.subjects, nil, f.pub, f.clock.Now)
}

type queuedEmail struct {
	template string
	to       string
	data     any
}

type recordingEmail struct {
	mu     sync.Mutex
	queued []queuedEmail
}

func (e *recordingEmail) Enqueue(_ dbctx.Context, _ uuid.UUID, template, to, _ string, data any) (*types.JobRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queued = append(e.queued, queuedEmail{template: template, to: to, data: data})
	return &types.JobRun{ID: uuid.New()}, nil
}

func (e *recordingEmail) Deliver(context.Context, EmailMessage) (*sendgrid.SendEmailResult, error) {
	return nil, nil
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error, got %v", err)
	}
	return ae.Status
}

func TestGroupMembershipAndMessages(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	member := f.user(t, "member@example.com")
	outsider := f.user(t, "outsider@example.com")
	svc := newGroups(f)

	g, err := svc.Create(asUser(owner), GroupInput{Name: "Calculus crew"})
	require.NoError(t, err)
	require.True(t, g.IsPublic)
	require.Equal(t, 1, g.MemberCount)

	require.NoError(t, svc.Join(asUser(member), g.ID))
	require.NoError(t, svc.Join(asUser(member), g.ID), "joining twice is a no-op")

	m1, err := svc.PostMessage(asUser(owner), g.ID, "welcome")
	require.NoError(t, err)
	m2, err := svc.PostMessage(asUser(member), g.ID, "thanks")
	require.NoError(t, err)
	require.Equal(t, m1.Seq+1, m2.Seq)

	_, err = svc.PostMessage(asUser(outsider), g.ID, "hi")
	require.Equal(t, http.StatusForbidden, statusOf(t, err))

	after, err := svc.Messages(asUser(member), g.ID, m1.Seq, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, "thanks", after[0].Body)

	published := f.pub.events(realtime.SSEEventGroupMessage)
	require.Len(t, published, 2)
	require.Equal(t, realtime.GroupChannel(g.ID), published[0].Channel)

	channels, err := svc.ChannelsFor(asUser(member), member)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{realtime.UserChannel(member), realtime.GroupChannel(g.ID)}, channels)

	err = svc.Leave(asUser(owner), g.ID)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	require.NoError(t, svc.Leave(asUser(member), g.ID))
	_, err = svc.Messages(asUser(member), g.ID, 0, 0)
	require.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestPrivateGroupIsHiddenUntilInvited(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	friend := f.user(t, "friend@example.com")
	svc := newGroups(f)

	private := false
	g, err := svc.Create(asUser(owner), GroupInput{Name: "Thesis", IsPublic: &private})
	require.NoError(t, err)
	require.False(t, g.IsPublic)

	var stored types.StudyGroup
	require.NoError(t, f.db.First(&stored, "id = ?", g.ID).Error)
	require.False(t, stored.IsPublic)

	_, err = svc.Get(asUser(friend), g.ID)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	err = svc.Join(asUser(friend), g.ID)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))

	err = svc.Invite(asUser(owner), g.ID, "nobody@example.com")
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	require.NoError(t, svc.Invite(asUser(owner), g.ID, " Friend@Example.com "))

	detail, err := svc.Get(asUser(friend), g.ID)
	require.NoError(t, err)
	require.Equal(t, 2, detail.MemberCount)
	require.Equal(t, "member", detail.Role)

	err = svc.Delete(asUser(friend), g.ID)
	require.Equal(t, http.StatusForbidden, statusOf(t, err))
	require.NoError(t, svc.Delete(asUser(owner), g.ID))
	_, err = svc.Get(asUser(owner), g.ID)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestInviteQueuesEmailWithGroup(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	f.user(t, "friend@example.com")
	email := &recordingEmail{}
	svc := NewGroupService(f.db, f.log,
		repos.NewStudyGroupRepo(f.db, f.log),
		repos.NewGroupMemberRepo(f.db, f.log),
		repos.NewGroupMessageRepo(f.db, f.log),
		f.users, f.subjects, email, f.pub, f.clock.Now)

	g, err := svc.Create(asUser(owner), GroupInput{Name: "Algebra"})
	require.NoError(t, err)
	require.True(t, g.IsPublic)
	require.NoError(t, svc.Invite(asUser(owner), g.ID, "friend@example.com"))

	require.Len(t, email.queued, 1)
	require.Equal(t, mail.TemplateGroupInvite, email.queued[0].template)
	require.Equal(t, "friend@example.com", email.queued[0].to)
	data, ok := email.queued[0].data.(mail.GroupInviteData)
	require.True(t, ok)
	require.Equal(t, g.ID, data.GroupID)
	require.Equal(t, "Algebra", data.GroupName)

	// Inviting an existing member sends nothing.
	require.NoError(t, svc.Invite(asUser(owner), g.ID, "friend@example.com"))
	require.Len(t, email.queued, 1)
}
