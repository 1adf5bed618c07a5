package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/groups"
	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

type GroupInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SubjectID   *uuid.UUID `json:"subject_id"`
	IsPublic    *bool      `json:"is_public"`
}

type GroupDetail struct {
	*types.StudyGroup
	Role    string                    `json:"role,omitempty"`
	Members []*types.StudyGroupMember `json:"members"`
}

var (
	errGroupNotFound  = apierr.NotFound("group_not_found", "group not found")
	errNotGroupMember = apierr.Forbidden("not_a_member", "you are not a member of this group")
)

type GroupService interface {
	Create(ctx context.Context, in GroupInput) (*types.StudyGroup, error)
	List(ctx context.Context, query string, mine bool, limit, offset int) ([]*types.StudyGroup, error)
	Get(ctx context.Context, id uuid.UUID) (*GroupDetail, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Join(ctx context.Context, id uuid.UUID) error
	Leave(ctx context.Context, id uuid.UUID) error
	// Invite adds the account registered under email to the group and mails them.
	Invite(ctx context.Context, id uuid.UUID, email string) error
	PostMessage(ctx context.Context, id uuid.UUID, body string) (*types.GroupMessage, error)
	Messages(ctx context.Context, id uuid.UUID, afterSeq int64, limit int) ([]*types.GroupMessage, error)
	// ChannelsFor lists the realtime channels a connected user listens on.
	ChannelsFor(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type groupService struct {
	db        *gorm.DB
	log       *logger.Logger
	groups    repos.StudyGroupRepo
	members   repos.GroupMemberRepo
	messages  repos.GroupMessageRepo
	users     repos.UserRepo
	subjects  repos.SubjectRepo
	email     EmailService
	publisher realtime.Publisher
	now       Clock
}

func NewGroupService(
	db *gorm.DB,
	baseLog *logger.Logger,
	groupRepo repos.StudyGroupRepo,
	members repos.GroupMemberRepo,
	messages repos.GroupMessageRepo,
	users repos.UserRepo,
	subjects repos.SubjectRepo,
	email EmailService,
	publisher realtime.Publisher,
	now Clock,
) GroupService {
	if publisher == nil {
		publisher = realtime.NopPublisher()
	}
	return &groupService{
		db:        db,
		log:       baseLog.With("service", "GroupService"),
		groups:    groupRepo,
		members:   members,
		messages:  messages,
		users:     users,
		subjects:  subjects,
		email:     email,
		publisher: publisher,
		now:       orClock(now),
	}
}

// visible loads a group the user may see: public ones and those they belong to.
// The membership row is nil for non-members.
func (s *groupService) visible(dbc dbctx.Context, userID, id uuid.UUID) (*types.StudyGroup, *types.StudyGroupMember, error) {
	g, err := s.groups.GetByID(dbc, id)
	if err != nil {
		return nil, nil, notFound(err, "group_not_found", "group not found")
	}
	m, err := s.members.Get(dbc, id, userID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil && !g.IsPublic {
		return nil, nil, errGroupNotFound
	}
	return g, m, nil
}

func (s *groupService) Create(ctx context.Context, in GroupInput) (*types.StudyGroup, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	g := &types.StudyGroup{
		OwnerUserID: userID,
		Name:        clean(in.Name),
		Description: clean(in.Description),
		IsPublic:    true,
	}
	if in.IsPublic != nil {
		g.IsPublic = *in.IsPublic
	}
	if err := requireLength("name", g.Name, 1, 120); err != nil {
		return nil, err
	}
	if err := requireLength("description", g.Description, 0, 2000); err != nil {
		return nil, err
	}
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		if in.SubjectID != nil && *in.SubjectID != uuid.Nil {
			if _, err := s.subjects.GetForUser(inner, userID, *in.SubjectID); err != nil {
				return notFound(err, "subject_not_found", "subject not found")
			}
			g.SubjectID = in.SubjectID
		}
		if _, err := s.groups.Create(inner, []*types.StudyGroup{g}); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		if _, err := s.members.Add(inner, g.ID, userID, groups.RoleOwner); err != nil {
			return fmt.Errorf("add group owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.MemberCount = 1
	return g, nil
}

func (s *groupService) List(ctx context.Context, query string, mine bool, limit, offset int) ([]*types.StudyGroup, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	var rows []*types.StudyGroup
	if mine {
		rows, err = s.groups.ListForMember(dbc, userID)
	} else {
		if offset < 0 {
			offset = 0
		}
		rows, err = s.groups.ListVisible(dbc, userID, clean(query), clampLimit(limit, 20, 100), offset)
	}
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, g := range rows {
		ids = append(ids, g.ID)
	}
	counts, err := s.members.CountByGroups(dbc, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range rows {
		g.MemberCount = counts[g.ID]
	}
	return rows, nil
}

func (s *groupService) Get(ctx context.Context, id uuid.UUID) (*GroupDetail, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	g, m, err := s.visible(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListByGroup(dbc, id)
	if err != nil {
		return nil, err
	}
	g.MemberCount = len(members)
	out := &GroupDetail{StudyGroup: g, Members: members}
	if m != nil {
		out.Role = m.Role
	}
	return out, nil
}

func (s *groupService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	return inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		g, _, err := s.visible(inner, userID, id)
		if err != nil {
			return err
		}
		if g.OwnerUserID != userID {
			return apierr.Forbidden("not_group_owner", "only the owner can delete a group")
		}
		if err := s.members.DeleteByGroup(inner, id); err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}
		return notFound(s.groups.Delete(inner, userID, id), "group_not_found", "group not found")
	})
}

func (s *groupService) Join(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	g, m, err := s.visible(dbc, userID, id)
	if err != nil {
		return err
	}
	if m != nil {
		return nil
	}
	if !g.IsPublic {
		return errGroupNotFound
	}
	if _, err := s.members.Add(dbc, id, userID, groups.RoleMember); err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	return nil
}

func (s *groupService) Leave(ctx context.Context, id uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	_, m, err := s.visible(dbc, userID, id)
	if err != nil {
		return err
	}
	if m == nil {
		return errNotGroupMember
	}
	if m.Role == groups.RoleOwner {
		return apierr.BadRequest("owner_cannot_leave", "the owner must delete the group instead of leaving")
	}
	if _, err := s.members.Remove(dbc, id, userID); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

func (s *groupService) Invite(ctx context.Context, id uuid.UUID, email string) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == "" {
		return apierr.BadRequest("invalid_email", "email is required")
	}
	return inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		g, m, err := s.visible(inner, userID, id)
		if err != nil {
			return err
		}
		if m == nil {
			return errNotGroupMember
		}
		invitee, err := s.users.GetByEmail(inner, email)
		if err != nil {
			return err
		}
		if invitee == nil {
			return apierr.NotFound("user_not_found", "no account uses that email")
		}
		added, err := s.members.Add(inner, id, invitee.ID, groups.RoleMember)
		if err != nil {
			return fmt.Errorf("add invitee: %w", err)
		}
		if !added || s.email == nil {
			return nil
		}
		inviter, err := s.users.GetByIDs(inner, []uuid.UUID{userID})
		if err != nil {
			return err
		}
		inviterName := ""
		if len(inviter) > 0 {
			inviterName = inviter[0].DisplayName()
		}
		_, err = s.email.Enqueue(inner, userID, mail.TemplateGroupInvite, invitee.Email, invitee.DisplayName(), mail.GroupInviteData{
			FirstName:   invitee.FirstName,
			InviterName: inviterName,
			GroupID:     g.ID,
			GroupName:   g.Name,
		})
		return err
	})
}

func (s *groupService) PostMessage(ctx context.Context, id uuid.UUID, body string) (*types.GroupMessage, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	body = clean(body)
	if err := requireLength("body", body, 1, 4000); err != nil {
		return nil, err
	}
	msg := &types.GroupMessage{GroupID: id, UserID: userID, Body: body, CreatedAt: s.now()}
	err = inTx(s.db, dbctx.Context{Ctx: ctx}, func(inner dbctx.Context) error {
		_, m, err := s.visible(inner, userID, id)
		if err != nil {
			return err
		}
		if m == nil {
			return errNotGroupMember
		}
		_, err = s.messages.Append(inner, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, realtime.SSEMessage{
		Channel: realtime.GroupChannel(id),
		Event:   realtime.SSEEventGroupMessage,
		Data:    msg,
	})
	return msg, nil
}

func (s *groupService) Messages(ctx context.Context, id uuid.UUID, afterSeq int64, limit int) ([]*types.GroupMessage, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	_, m, err := s.visible(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotGroupMember
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	return s.messages.ListAfter(dbc, id, afterSeq, clampLimit(limit, 50, 200))
}

func (s *groupService) ChannelsFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ids, err := s.members.GroupIDsForUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, realtime.UserChannel(userID))
	for _, id := range ids {
		out = append(out, realtime.GroupChannel(id))
	}
	return out, nil
}
