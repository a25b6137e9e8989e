package storage

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint would be violated.
var ErrConflict = errors.New("already exists")

// ErrInvalid wraps validation failures of user-supplied records.
var ErrInvalid = errors.New("invalid")

// Application statuses.
const (
	StatusApplied   = "Applied"
	StatusInterview = "Interview"
	StatusRejected  = "Rejected"
	StatusOffer     = "Offer"
)

var AllowedStatuses = []string{StatusApplied, StatusInterview, StatusRejected, StatusOffer}

var AllowedDifficulties = []string{"Easy", "Medium", "Hard"}

// DateLayout is the layout of applied and interview dates.
const DateLayout = "2006-01-02"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Application struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	Location    string    `json:"location"`
	JobLink     string    `json:"job_link"`
	Status      string    `json:"status"`
	AppliedDate string    `json:"applied_date"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate normalizes a and checks it against the allowed values.
func (a *Application) Validate() error {
	a.Company = strings.TrimSpace(a.Company)
	a.Role = strings.TrimSpace(a.Role)
	a.Location = strings.TrimSpace(a.Location)
	a.JobLink = strings.TrimSpace(a.JobLink)

	if a.Company == "" || a.Role == "" {
		return fmt.Errorf("%w: company and role are required", ErrInvalid)
	}
	if a.Status == "" {
		a.Status = StatusApplied
	}
	if !slices.Contains(AllowedStatuses, a.Status) {
		return fmt.Errorf("%w: status must be one of %s", ErrInvalid, strings.Join(AllowedStatuses, ", "))
	}
	if a.JobLink != "" && !IsValidJobLink(a.JobLink) {
		return fmt.Errorf("%w: job link must be an http(s) URL", ErrInvalid)
	}
	if a.AppliedDate == "" {
		a.AppliedDate = time.Now().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, a.AppliedDate); err != nil {
		return fmt.Errorf("%w: applied date must be YYYY-MM-DD", ErrInvalid)
	}
	return nil
}

// IsValidJobLink reports whether link is an absolute http(s) URL with a host.
func IsValidJobLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type Interview struct {
	ID              int64     `json:"id"`
	ApplicationID   int64     `json:"application_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Venue           string    `json:"venue"`
	Completed       bool      `json:"completed"`
	Difficulty      string    `json:"difficulty"`
	ExperienceNotes string    `json:"experience_notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate normalizes iv and checks date, time and difficulty.
func (iv *Interview) Validate() error {
	iv.Venue = strings.TrimSpace(iv.Venue)
	if iv.Venue == "" {
		iv.Venue = "Online"
	}
	if _, err := time.Parse(DateLayout, iv.Date); err != nil {
		return fmt.Errorf("%w: interview date must be YYYY-MM-DD", ErrInvalid)
	}
	if iv.Time != "" {
		if _, err := time.Parse("15:04", iv.Time); err != nil {
			return fmt.Errorf("%w: interview time must be HH:MM", ErrInvalid)
		}
	}
	if iv.Difficulty != "" && !slices.Contains(AllowedDifficulties, iv.Difficulty) {
		return fmt.Errorf("%w: difficulty must be one of %s", ErrInvalid, strings.Join(AllowedDifficulties, ", "))
	}
	return nil
}

// Start returns the interview start in loc. A missing time means 09:00.
func (iv Interview) Start(loc *time.Location) (time.Time, error) {
	clock := iv.Time
	if clock == "" {
		clock = "09:00"
	}
	return time.ParseInLocation(DateLayout+" 15:04", iv.Date+" "+clock, loc)
}

// ApplicationDetail is an application joined with its interview, if any.
type ApplicationDetail struct {
	Application
	Interview *Interview `json:"interview,omitempty"`
}

type CVUpload struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"-"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is a unit of background work.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
