package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/observability"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/platform/sendgrid"
)

// EmailMessage is the email_send job payload.
type EmailMessage struct {
	Template string          `json:"template"`
	To       string          `json:"to"`
	ToName   string          `json:"to_name,omitempty"`
	Data     json.RawMessage `json:"data"`
}

type EmailService interface {
	// Enqueue schedules a templated email for delivery by the worker.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, template, to, toName string, data any) (*types.JobRun, error)
	// Deliver renders and sends a message synchronously.
	Deliver(ctx context.Context, msg EmailMessage) (*sendgrid.SendEmailResult, error)
}

type emailService struct {
	log      *logger.Logger
	renderer *mail.Renderer
	client   sendgrid.Client
	jobs     JobService
}

func NewEmailService(baseLog *logger.Logger, renderer *mail.Renderer, client sendgrid.Client, jobs JobService) EmailService {
	return &emailService{
		log:      baseLog.With("service", "EmailService"),
		renderer: renderer,
		client:   client,
		jobs:     jobs,
	}
}

func (s *emailService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, template, to, toName string, data any) (*types.JobRun, error) {
	if !mail.Known(template) {
		return nil, fmt.Errorf("unknown email template %q", template)
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("email recipient required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", template, err)
	}
	payload := map[string]any{
		"template": template,
		"to":       to,
		"to_name":  toName,
		"data":     json.RawMessage(raw),
	}
	return s.jobs.Enqueue(dbc, ownerUserID, domainjobs.TypeEmailSend, "email", nil, payload)
}

// templateData decodes raw into the struct the template expects, so missing keys fail
// at render time instead of rendering blanks.
func templateData(template string, raw json.RawMessage) (any, error) {
	var dst any
	switch template {
	case mail.TemplateWelcome:
		dst = &mail.WelcomeData{}
	case mail.TemplateAssessmentReminder:
		dst = &mail.AssessmentReminderData{}
	case mail.TemplateGroupInvite:
		dst = &mail.GroupInviteData{}
	default:
		return nil, fmt.Errorf("unknown email template %q", template)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", template, err)
		}
	}
	return dst, nil
}

func (s *emailService) Deliver(ctx context.Context, msg EmailMessage) (*sendgrid.SendEmailResult, error) {
	data, err := templateData(msg.Template, msg.Data)
	if err != nil {
		return nil, err
	}
	rendered, err := s.renderer.Render(msg.Template, data)
	if err != nil {
		observability.Current().IncEmail(msg.Template, "render_error")
		return nil, err
	}
	res, err := s.client.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: msg.To, Name: msg.ToName}},
		Subject:    rendered.Subject,
		Text:       rendered.Text,
		HTML:       rendered.HTML,
		Categories: []string{msg.Template},
	})
	if err != nil {
		observability.Current().IncEmail(msg.Template, "error")
		s.log.Warn("Email delivery failed", "template", msg.Template, "error", err)
		return nil, err
	}
	observability.Current().IncEmail(msg.Template, "sent")
	return res, nil
}
