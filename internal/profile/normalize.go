package profile

import "strings"

// Normalize converts raw model output for a CV-extraction prompt into a
// canonical Profile. Malformed input never produces an error: the result is
// the all-null Profile and the Outcome says why.
//
// Each section is coerced on its own. Values of an unexpected shape become
// nil instead of failing the whole response, unknown keys are dropped, and
// list entries that carry no data are removed.
func Normalize(text string) (Profile, Outcome) {
	obj, outcome := ParseObject(text)
	if outcome != OK {
		return Profile{}, outcome
	}
	return fromObject(obj), OK
}

func fromObject(obj map[string]any) Profile {
	return Profile{
		Identity:            identityFrom(obj[string(SectionIdentity)]),
		CareerIntent:        careerIntentFrom(obj[string(SectionCareerIntent)]),
		ProfessionalSummary: scalar(obj[string(SectionProfessionalSummary)]),
		Skills:              skillsFrom(obj[string(SectionSkills)]),
		Experience:          experienceFrom(obj[string(SectionExperience)]),
		Education:           educationFrom(obj[string(SectionEducation)]),
		Projects:            projectsFrom(obj[string(SectionProjects)]),
		Achievements:        list(obj[string(SectionAchievements)]),
	}
}

// scalar keeps v only if it is a string with content.
func scalar(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// list keeps v only if it is an array, and keeps only its non-blank string
// elements.
func list(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range arr {
		if s := scalar(e); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// objects returns the object elements of v when v is an array.
func objects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, e := range arr {
		if m, ok := object(e); ok {
			out = append(out, m)
		}
	}
	return out
}

func identityFrom(v any) *Identity {
	m, ok := object(v)
	if !ok {
		return nil
	}
	id := &Identity{
		Name:     scalar(m["name"]),
		Email:    scalar(m["email"]),
		Phone:    scalar(m["phone"]),
		Location: scalar(m["location"]),
		Links:    list(m["links"]),
	}
	if id.IsEmpty() {
		return nil
	}
	return id
}

func careerIntentFrom(v any) *CareerIntent {
	m, ok := object(v)
	if !ok {
		return nil
	}
	ci := &CareerIntent{
		CurrentStatus: scalar(m["current_status"]),
		TargetRoles:   list(m["target_roles"]),
		Industry:      scalar(m["industry"]),
	}
	if ci.IsEmpty() {
		return nil
	}
	return ci
}

func skillsFrom(v any) *Skills {
	m, ok := object(v)
	if !ok {
		return nil
	}
	s := &Skills{
		Technical: list(m["technical"]),
		Tools:     list(m["tools"]),
		Soft:      list(m["soft"]),
	}
	if s.IsEmpty() {
		return nil
	}
	return s
}

func experienceFrom(v any) []Experience {
	var out []Experience
	for _, m := range objects(v) {
		e := Experience{
			Company:          scalar(m["company"]),
			Role:             scalar(m["role"]),
			Duration:         scalar(m["duration"]),
			Responsibilities: list(m["responsibilities"]),
		}
		if !e.IsEmpty() {
			out = append(out, e)
		}
	}
	return out
}

func educationFrom(v any) []Education {
	var out []Education
	for _, m := range objects(v) {
		e := Education{
			Degree:         scalar(m["degree"]),
			Institution:    scalar(m["institution"]),
			Year:           scalar(m["year"]),
			Specialization: scalar(m["specialization"]),
		}
		if !e.IsEmpty() {
			out = append(out, e)
		}
	}
	return out
}

func projectsFrom(v any) []Project {
	var out []Project
	for _, m := range objects(v) {
		p := Project{
			Name:      scalar(m["name"]),
			TechStack: scalar(m["tech_stack"]),
			Impact:    scalar(m["impact"]),
		}
		if !p.IsEmpty() {
			out = append(out, p)
		}
	}
	return out
}

// RecordFromObject builds a Record from a decoded JSON object with the same
// coercion as Normalize. Legacy columns are read from a nested "legacy"
// object.
func RecordFromObject(obj map[string]any) Record {
	r := Record{Profile: fromObject(obj)}
	if legacy, ok := object(obj["legacy"]); ok {
		for _, f := range LegacyFields {
			*r.Legacy.field(f) = scalar(legacy[string(f)])
		}
	}
	return r
}
