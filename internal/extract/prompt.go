package extract

import (
	"github.com/kalambet/apptrack/internal/engine"
)

const systemPrompt = `You are a CV extraction engine. Read the CV text and extract every piece of professional information a recruiter would expect in an "About Me" profile. Your output must be ONLY a single valid JSON object with the structure below. Do not include any other text, prose, or markdown.

{
  "identity": {"name": "", "email": "", "phone": "", "location": "", "links": []},
  "career_intent": {"current_status": "", "target_roles": [], "industry": ""},
  "professional_summary": "",
  "skills": {"technical": [], "tools": [], "soft": []},
  "experience": [{"company": "", "role": "", "duration": "", "responsibilities": []}],
  "education": [{"degree": "", "institution": "", "year": "", "specialization": ""}],
  "projects": [{"name": "", "tech_stack": "", "impact": ""}],
  "achievements": []
}

Rules:
- identity.links holds LinkedIn, GitHub and portfolio URLs found in the CV.
- career_intent.current_status is the current role or status, e.g. "Software Engineer", "Student".
- professional_summary is a clean 3-5 line recruiter-friendly bio written only from CV content.
- skills.soft lists soft skills only when the CV states them explicitly.
- responsibilities are short bullet phrases.
- projects[].impact is a one-line impact summary.
- If a value is missing use null or an empty array. Never invent values or add filler text.`

// BuildPrompt constructs the chat messages for CV extraction.
func BuildPrompt(cvText string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "CV TEXT:\n" + cvText},
	}
}
