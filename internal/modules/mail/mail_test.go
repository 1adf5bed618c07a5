package mail

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRenderAllTemplates(t *testing.T) {
	r := NewRenderer("StudyHub", "https://app.example.com/")
	id := uuid.New()
	cases := []struct {
		name        string
		data        any
		wantSubject string
		wantText    string
	}{
		{TemplateWelcome, WelcomeData{FirstName: "Ana"}, "Welcome to StudyHub", "Hi Ana,"},
		{
			TemplateAssessmentReminder,
			AssessmentReminderData{FirstName: "Ana", AssessmentID: id, Title: "Calculus I", Type: "exam", SubjectName: "Math", DueDate: "2025-06-01"},
			"Reminder: Calculus I on 2025-06-01",
			"https://app.example.com/assessments/" + id.String(),
		},
		{
			TemplateGroupInvite,
			GroupInviteData{FirstName: "Ana", InviterName: "Bruno", GroupID: id, GroupName: "Physics <3"},
			"Bruno invited you to Physics <3",
			`"Physics <3"`,
		},
	}
	for _, tc := range cases {
		out, err := r.Render(tc.name, tc.data)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if out.Subject != tc.wantSubject {
			t.Fatalf("%s: subject %q", tc.name, out.Subject)
		}
		if !strings.Contains(out.Text, tc.wantText) {
			t.Fatalf("%s: text missing %q:\n%s", tc.name, tc.wantText, out.Text)
		}
		if !strings.HasPrefix(out.HTML, "<!DOCTYPE html>") {
			t.Fatalf("%s: html not wrapped in base layout", tc.name)
		}
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	r := NewRenderer("", "")
	out, err := r.Render(TemplateGroupInvite, GroupInviteData{FirstName: "x", InviterName: "<script>", GroupName: "g"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(out.HTML, "<script>") {
		t.Fatalf("html body not escaped")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := NewRenderer("", "")
	if _, err := r.Render("nope", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
	if Known("nope") || !Known(TemplateWelcome) {
		t.Fatalf("Known mismatch")
	}
}
