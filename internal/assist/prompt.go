package assist

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/apptrack/internal/engine"
)

const coverLetterInstructions = `You write professional cover letters for job applications.

INSTRUCTIONS:
1. Write a cover letter of 250-300 words.
2. Align the candidate's skills with the job requirements.
3. Show genuine interest in the role and company.
4. Be specific about relevant experience and never invent any.
5. Use a confident, human, recruiter-friendly tone without buzzwords or clichés.

OUTPUT:
Return ONLY the cover letter text with no explanations and no markdown.
Start directly with the salutation, e.g. "Dear Hiring Manager,".`

const emailInstructions = `You write short job application e-mails.

INSTRUCTIONS:
1. Write a concise, professional subject line.
2. Write a concise body suitable for cold outreach or a referral submission.
3. Mention the role and the company, and the attached resume if there is one.
4. End with a clear call to action. No emojis.

OUTPUT FORMAT (JSON only):
{"subject": "Email subject line", "body": "Email body text"}`

const matchInstructions = `You compare a job description with a candidate profile.

TASK:
1. Match the skills the job asks for against the candidate's skills.
2. List the important required skills the candidate lacks.
3. Score the match from 0 to 100: skills alignment 40%, experience relevance 30%, role fit 20%, overall compatibility 10%.
4. Summarize the match in 2-3 sentences. Do not inflate the score.

OUTPUT FORMAT (JSON only):
{"match_score": 0, "matched_skills": [], "missing_skills": [], "summary": ""}`

// coverLetterPreviewChars is how much of a cover letter the e-mail prompt
// sees.
const coverLetterPreviewChars = 200

// section writes one "[Title]" block when body is not blank.
func section(sb *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString("[" + title + "]\n")
	sb.WriteString(body)
}

func jobDetails(job Job) string {
	return fmt.Sprintf("Company: %s\nRole: %s", job.Company, job.Role)
}

func coverLetterPrompt(summary string, job Job, description string) []engine.Message {
	var sb strings.Builder
	section(&sb, "Candidate Profile", summary)
	section(&sb, "Job", jobDetails(job))
	section(&sb, "Job Description", description)
	return []engine.Message{
		{Role: "system", Content: coverLetterInstructions},
		{Role: "user", Content: sb.String()},
	}
}

func emailPrompt(name string, job Job, opts EmailOptions) []engine.Message {
	var sb strings.Builder
	section(&sb, "Candidate", "Name: "+name)
	section(&sb, "Job", jobDetails(job))

	attachments := "Resume attached: no"
	if opts.ResumeAttached {
		attachments = "Resume attached: yes"
	}
	if cl := strings.TrimSpace(opts.CoverLetter); cl != "" {
		attachments += "\nCover letter: included\nCover letter preview: " + preview(cl, coverLetterPreviewChars)
	} else {
		attachments += "\nCover letter: not included"
	}
	section(&sb, "Attachments", attachments)

	return []engine.Message{
		{Role: "system", Content: emailInstructions},
		{Role: "user", Content: sb.String()},
	}
}

func matchPrompt(summary, description string) []engine.Message {
	var sb strings.Builder
	section(&sb, "Job Description", description)
	section(&sb, "Candidate Profile", summary)
	return []engine.Message{
		{Role: "system", Content: matchInstructions},
		{Role: "user", Content: sb.String()},
	}
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
