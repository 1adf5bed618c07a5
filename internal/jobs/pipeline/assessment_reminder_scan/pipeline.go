package assessment_reminder_scan

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	jobrt "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

func (p *Pipeline) window(jc *jobrt.Context) time.Duration {
	if h, err := strconv.Atoi(jc.PayloadString("window_hours")); err == nil && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return defaultWindow
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	now := p.now()
	to := now.Add(p.window(jc))

	jc.Progress("scan", 5, "Looking for upcoming assessments")
	due, err := p.assessments.ListDueForReminder(dbctx.Context{Ctx: jc.Ctx}, now, to, batchSize)
	if err != nil {
		jc.Fail("scan", err)
		return nil
	}
	if len(due) == 0 {
		jc.Succeed("done", map[string]any{"scanned": 0, "queued": 0})
		return nil
	}

	owners := make([]uuid.UUID, 0, len(due))
	seen := map[uuid.UUID]bool{}
	for _, a := range due {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			owners = append(owners, a.UserID)
		}
	}
	users, err := p.users.GetByIDs(dbctx.Context{Ctx: jc.Ctx}, owners)
	if err != nil {
		jc.Fail("load_users", err)
		return nil
	}
	byID := make(map[uuid.UUID]*types.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	queued, skipped := 0, 0
	for i, a := range due {
		u := byID[a.UserID]
		if u == nil {
			skipped++
			continue
		}
		sent, err := p.remind(jc, a, u, now)
		if err != nil {
			jc.Fail("remind", err)
			return nil
		}
		if sent {
			queued++
		} else {
			skipped++
		}
		jc.Progress("remind", 5+90*(i+1)/len(due), fmt.Sprintf("Queued %d reminders", queued))
	}
	p.log.Info("Reminder scan finished", "scanned", len(due), "queued", queued, "skipped", skipped)
	jc.Succeed("done", map[string]any{"scanned": len(due), "queued": queued, "skipped": skipped})
	return nil
}

// remind marks the assessment and enqueues its email in one transaction, so a reminder
// is queued at most once even with concurrent scans.
func (p *Pipeline) remind(jc *jobrt.Context, a *types.Assessment, u *types.User, now time.Time) (bool, error) {
	sent := false
	err := p.db.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: jc.Ctx, Tx: tx}
		ok, err := p.assessments.MarkReminderSent(inner, a.ID, now)
		if err != nil || !ok {
			return err
		}
		data := mail.AssessmentReminderData{
			FirstName:    u.FirstName,
			AssessmentID: a.ID,
			Title:        a.Title,
			Type:         a.Type,
			DueDate:      a.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		}
		if a.Subject != nil {
			data.SubjectName = a.Subject.Name
		}
		if _, err := p.email.Enqueue(inner, u.ID, mail.TemplateAssessmentReminder, u.Email, u.DisplayName(), data); err != nil {
			return err
		}
		sent = true
		return nil
	})
	return sent, err
}
