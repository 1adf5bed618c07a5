// Package mail renders the transactional email templates. Each template has an HTML and
// a text variant sharing the same "subject" block; sending is left to the caller.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/google/uuid"
)

//go:embed templates/*.gohtml templates/*.txt
var templateFS embed.FS

const (
	TemplateWelcome            = "welcome"
	TemplateAssessmentReminder = "assessment_reminder"
	TemplateGroupInvite        = "group_invite"
)

var names = []string{TemplateWelcome, TemplateAssessmentReminder, TemplateGroupInvite}

type WelcomeData struct {
	FirstName string
}

type AssessmentReminderData struct {
	FirstName    string
	AssessmentID uuid.UUID
	Title        string
	Type         string
	SubjectName  string
	DueDate      string
}

type GroupInviteData struct {
	FirstName   string
	InviterName string
	GroupID     uuid.UUID
	GroupName   string
}

// Rendered is a ready-to-send message body.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type tmplContext struct {
	AppName     string
	FrontendURL string
	Data        any
}

type entry struct {
	html *htmltmpl.Template
	text *texttmpl.Template
}

type Renderer struct {
	appName     string
	frontendURL string

	once    sync.Once
	entries map[string]entry
	err     error
}

func NewRenderer(appName, frontendURL string) *Renderer {
	if strings.TrimSpace(appName) == "" {
		appName = "StudyHub"
	}
	return &Renderer{
		appName:     appName,
		frontendURL: strings.TrimRight(strings.TrimSpace(frontendURL), "/"),
	}
}

func (r *Renderer) parse() {
	r.entries = make(map[string]entry, len(names))
	for _, name := range names {
		h, err := htmltmpl.ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			r.err = fmt.Errorf("parse %s.gohtml: %w", name, err)
			return
		}
		t, err := texttmpl.ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
		if err != nil {
			r.err = fmt.Errorf("parse %s.txt: %w", name, err)
			return
		}
		r.entries[name] = entry{
			html: h.Option("missingkey=error"),
			text: t.Option("missingkey=error"),
		}
	}
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (*Rendered, error) {
	r.once.Do(r.parse)
	if r.err != nil {
		return nil, r.err
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}
	ctx := tmplContext{AppName: r.appName, FrontendURL: r.frontendURL, Data: data}

	var subj, text, html bytes.Buffer
	if err := e.text.ExecuteTemplate(&subj, "subject", ctx); err != nil {
		return nil, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := e.text.ExecuteTemplate(&text, "base", ctx); err != nil {
		return nil, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := e.html.ExecuteTemplate(&html, "base", ctx); err != nil {
		return nil, fmt.Errorf("render %s html: %w", name, err)
	}
	return &Rendered{
		Subject: strings.TrimSpace(subj.String()),
		Text:    strings.TrimSpace(text.String()),
		HTML:    strings.TrimSpace(html.String()),
	}, nil
}

// Known reports whether name is a template this package can render.
func Known(name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
