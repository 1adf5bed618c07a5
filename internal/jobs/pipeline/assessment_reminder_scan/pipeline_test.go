package assessment_reminder_scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyhub-backend/internal/domain"
	domainjobs "github.com/yungbote/studyhub-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/modules/mail"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
	"github.com/yungbote/studyhub-backend/internal/platform/sendgrid"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type sentMail struct {
	owner    uuid.UUID
	template string
	to       string
	data     mail.AssessmentReminderData
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeEmail) Enqueue(_ dbctx.Context, owner uuid.UUID, template, to, _ string, data any) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, _ := data.(mail.AssessmentReminderData)
	f.sent = append(f.sent, sentMail{owner: owner, template: template, to: to, data: d})
	return &types.JobRun{ID: uuid.New()}, nil
}

func (f *fakeEmail) Deliver(context.Context, services.EmailMessage) (*sendgrid.SendEmailResult, error) {
	return nil, nil
}

func TestReminderScanQueuesEachAssessmentOnce(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	u := testutil.SeedUser(t, ctx, db, "student@example.com")
	subj := testutil.SeedSubject(t, ctx, db, u.ID, "History")
	seed := func(title string, due time.Time) *types.Assessment {
		a := &types.Assessment{UserID: u.ID, SubjectID: subj.ID, Type: "exam", Title: title, DueDate: due}
		if err := db.Create(a).Error; err != nil {
			t.Fatalf("seed assessment: %v", err)
		}
		return a
	}
	soon := seed("Midterm", now.Add(6*time.Hour))
	seed("Final", now.Add(72*time.Hour))
	seed("Past quiz", now.Add(-time.Hour))

	assessments := repos.NewAssessmentRepo(db, log)
	jobRepo := repos.NewJobRunRepo(db, log)
	email := &fakeEmail{}
	p := New(db, log, assessments, repos.NewUserRepo(db, log), email, func() time.Time { return now })

	run := func() *types.JobRun {
		t.Helper()
		job, err := services.NewJobService(db, log, jobRepo, nil).Enqueue(dbctx.Context{Ctx: ctx}, uuid.Nil, p.Type(), "system", nil, nil)
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		jc := jobrt.NewContext(ctx, db, job, jobRepo, nil)
		if err := p.Run(jc); err != nil {
			t.Fatalf("run: %v", err)
		}
		return job
	}

	job := run()
	if job.Status != domainjobs.StatusSucceeded {
		t.Fatalf("status=%q err=%q", job.Status, job.Error)
	}
	if len(email.sent) != 1 {
		t.Fatalf("sent=%d want 1", len(email.sent))
	}
	got := email.sent[0]
	if got.template != mail.TemplateAssessmentReminder || got.to != u.Email || got.owner != u.ID {
		t.Fatalf("unexpected mail: %+v", got)
	}
	if got.data.AssessmentID != soon.ID || got.data.SubjectName != "History" {
		t.Fatalf("unexpected data: %+v", got.data)
	}

	// A second scan finds nothing new.
	run()
	if len(email.sent) != 1 {
		t.Fatalf("reminder sent twice: %d", len(email.sent))
	}
}
