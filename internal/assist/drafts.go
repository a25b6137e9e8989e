package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/profile"
)

// Draft is generated text. Generated is false when the text is the
// built-in template because the model was unavailable or failed.
type Draft struct {
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

// CoverLetter drafts a cover letter of userID for job.
func (a *Assistant) CoverLetter(ctx context.Context, userID int64, job Job) (Draft, error) {
	r, summary, err := a.candidate(userID)
	if err != nil {
		return Draft{}, err
	}

	out, ok := a.chat(ctx, "cover_letter", coverLetterPrompt(summary, job, a.description(ctx, job)), engine.Options{
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if !ok {
		return Draft{Text: fallbackCoverLetter(candidateName(r), job)}, nil
	}
	return Draft{Text: stripTextFence(out), Generated: true}, nil
}

// EmailOptions describes what accompanies an application e-mail.
type EmailOptions struct {
	ResumeAttached bool   `json:"resume_attached"`
	CoverLetter    string `json:"cover_letter,omitempty"`
}

// Email is a drafted application e-mail.
type Email struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Generated bool   `json:"generated"`
}

// Email drafts an application e-mail of userID for job.
func (a *Assistant) Email(ctx context.Context, userID int64, job Job, opts EmailOptions) (Email, error) {
	r, _, err := a.candidate(userID)
	if err != nil {
		return Email{}, err
	}
	name := candidateName(r)
	fallback := fallbackEmail(name, job)

	out, ok := a.chat(ctx, "application_email", emailPrompt(name, job, opts), engine.Options{
		Temperature: 0.6,
		MaxTokens:   400,
		JSON:        true,
	})
	if !ok {
		return fallback, nil
	}

	obj, outcome := profile.ParseObject(out)
	if outcome != profile.OK {
		return fallback, nil
	}
	e := Email{Subject: stringField(obj, "subject"), Body: stringField(obj, "body"), Generated: true}
	if e.Subject == "" {
		e.Subject = fallback.Subject
	}
	if e.Body == "" {
		return fallback, nil
	}
	return e, nil
}

func fallbackCoverLetter(name string, job Job) string {
	return fmt.Sprintf(`Dear Hiring Manager,

I am writing to apply for the %s position at %s. My background and skills match the requirements of the role, and I would welcome the opportunity to contribute to your team.

I have attached my resume for your review and would be glad to discuss how my experience can support %s.

Thank you for your time and consideration.

Best regards,
%s`, job.Role, job.Company, job.Company, name)
}

func fallbackEmail(name string, job Job) Email {
	return Email{
		Subject: fmt.Sprintf("Application for %s Position", job.Role),
		Body: fmt.Sprintf("Dear Hiring Manager,\n\nI am writing to express my interest in the %s position at %s.\n\nPlease find my resume attached.\n\nBest regards,\n%s",
			job.Role, job.Company, name),
	}
}

// stripTextFence removes a markdown fence around plain text output.
func stripTextFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "text")
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}
