package profile

// Profile is the canonical structured view of a candidate's professional
// information. Every section is independently nullable: a nil pointer or nil
// slice means "no data", and nothing is ever invented to fill it.
type Profile struct {
	Identity            *Identity     `json:"identity"`
	CareerIntent        *CareerIntent `json:"career_intent"`
	ProfessionalSummary *string       `json:"professional_summary"`
	Skills              *Skills       `json:"skills"`
	Experience          []Experience  `json:"experience"`
	Education           []Education   `json:"education"`
	Projects            []Project     `json:"projects"`
	Achievements        []string      `json:"achievements"`
}

// Identity holds contact details.
type Identity struct {
	Name     *string  `json:"name"`
	Email    *string  `json:"email"`
	Phone    *string  `json:"phone"`
	Location *string  `json:"location"`
	Links    []string `json:"links"`
}

// CareerIntent describes what the candidate is doing now and looking for next.
type CareerIntent struct {
	CurrentStatus *string  `json:"current_status"`
	TargetRoles   []string `json:"target_roles"`
	Industry      *string  `json:"industry"`
}

type Skills struct {
	Technical []string `json:"technical"`
	Tools     []string `json:"tools"`
	Soft      []string `json:"soft"`
}

type Experience struct {
	Company          *string  `json:"company"`
	Role             *string  `json:"role"`
	Duration         *string  `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

type Education struct {
	Degree         *string `json:"degree"`
	Institution    *string `json:"institution"`
	Year           *string `json:"year"`
	Specialization *string `json:"specialization"`
}

type Project struct {
	Name      *string `json:"name"`
	TechStack *string `json:"tech_stack"`
	Impact    *string `json:"impact"`
}

// Legacy holds the flat profile columns that predate the structured
// sections. They are derived from the structured data, never sourced on
// their own.
type Legacy struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Bio        *string `json:"bio"`
	LookingFor *string `json:"looking_for"`
	Skills     *string `json:"skills"`
}

// Record is a stored profile: the structured sections plus legacy columns.
type Record struct {
	Profile
	Legacy Legacy `json:"legacy"`
}

// Section names a top-level profile section. Sections are the unit of merge.
type Section string

const (
	SectionIdentity            Section = "identity"
	SectionCareerIntent        Section = "career_intent"
	SectionProfessionalSummary Section = "professional_summary"
	SectionSkills              Section = "skills"
	SectionExperience          Section = "experience"
	SectionEducation           Section = "education"
	SectionProjects            Section = "projects"
	SectionAchievements        Section = "achievements"
)

// Sections lists every section in canonical order.
var Sections = []Section{
	SectionIdentity,
	SectionCareerIntent,
	SectionProfessionalSummary,
	SectionSkills,
	SectionExperience,
	SectionEducation,
	SectionProjects,
	SectionAchievements,
}

// LegacyField names a flat legacy column.
type LegacyField string

const (
	LegacyName       LegacyField = "name"
	LegacyEmail      LegacyField = "email"
	LegacyPhone      LegacyField = "phone"
	LegacyBio        LegacyField = "bio"
	LegacyLookingFor LegacyField = "looking_for"
	LegacySkills     LegacyField = "skills"
)

var LegacyFields = []LegacyField{
	LegacyName,
	LegacyEmail,
	LegacyPhone,
	LegacyBio,
	LegacyLookingFor,
	LegacySkills,
}

// Outcome reports how Normalize handled its input.
type Outcome int

const (
	OK Outcome = iota
	EmptyInput
	ParseFailure
	ShapeMismatch
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case EmptyInput:
		return "empty_input"
	case ParseFailure:
		return "parse_failure"
	case ShapeMismatch:
		return "shape_mismatch"
	default:
		return "unknown"
	}
}

// Failed reports whether the model output could not be interpreted.
func (o Outcome) Failed() bool {
	return o == ParseFailure || o == ShapeMismatch
}

// MarshalText renders the outcome as its string form in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func strPtr(s string) *string { return &s }
