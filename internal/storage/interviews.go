package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const interviewColumns = `iv.id, iv.application_id, iv.interview_date, iv.interview_time, iv.venue, iv.completed,
	iv.difficulty, iv.experience_notes, iv.created_at, iv.updated_at`

// ScheduledInterview is an interview with the application it belongs to.
type ScheduledInterview struct {
	Interview
	Company  string `json:"company"`
	Role     string `json:"role"`
	Location string `json:"location"`
}

// UpsertInterview creates or replaces the interview of iv.ApplicationID.
// An application has at most one interview.
func (s *Store) UpsertInterview(userID int64, iv Interview) (Interview, error) {
	if err := iv.Validate(); err != nil {
		return Interview{}, err
	}
	if _, err := s.GetApplication(userID, iv.ApplicationID); err != nil {
		return Interview{}, err
	}

	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO interviews (application_id, interview_date, interview_time, venue, completed, difficulty, experience_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id) DO UPDATE SET
			interview_date = excluded.interview_date,
			interview_time = excluded.interview_time,
			venue = excluded.venue,
			completed = excluded.completed,
			difficulty = excluded.difficulty,
			experience_notes = excluded.experience_notes,
			updated_at = excluded.updated_at`,
		iv.ApplicationID, iv.Date, iv.Time, iv.Venue, iv.Completed, iv.Difficulty, iv.ExperienceNotes, now, now,
	)
	if err != nil {
		return Interview{}, fmt.Errorf("saving interview: %w", err)
	}
	return s.GetInterview(userID, iv.ApplicationID)
}

// GetInterview returns the interview of applicationID if the application
// belongs to userID.
func (s *Store) GetInterview(userID, applicationID int64) (Interview, error) {
	row := s.db.QueryRow(`SELECT `+interviewColumns+`
		FROM interviews iv JOIN applications a ON a.id = iv.application_id
		WHERE iv.application_id = ? AND a.user_id = ?`, applicationID, userID)
	iv, err := scanInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Interview{}, ErrNotFound
	}
	return iv, err
}

// CompleteInterview marks the interview done and records how it went.
func (s *Store) CompleteInterview(userID, applicationID int64, difficulty, notes string) error {
	if difficulty != "" && !slices.Contains(AllowedDifficulties, difficulty) {
		return fmt.Errorf("%w: difficulty must be one of %s", ErrInvalid, strings.Join(AllowedDifficulties, ", "))
	}
	res, err := s.db.Exec(`
		UPDATE interviews SET completed = 1, difficulty = ?, experience_notes = ?, updated_at = ?
		WHERE application_id = ? AND application_id IN (SELECT id FROM applications WHERE user_id = ?)`,
		difficulty, strings.TrimSpace(notes), formatTime(time.Now()), applicationID, userID)
	if err != nil {
		return fmt.Errorf("completing interview: %w", err)
	}
	return expectRow(res)
}

// UpcomingInterviews returns userID's interviews that are not completed and
// take place on or after from, soonest first.
func (s *Store) UpcomingInterviews(userID int64, from time.Time) ([]ScheduledInterview, error) {
	rows, err := s.db.Query(`SELECT `+interviewColumns+`, a.company, a.role, a.location
		FROM interviews iv JOIN applications a ON a.id = iv.application_id
		WHERE a.user_id = ? AND iv.completed = 0 AND iv.interview_date >= ?
		ORDER BY iv.interview_date ASC, iv.interview_time ASC`, userID, from.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledInterview
	for rows.Next() {
		var si ScheduledInterview
		iv, err := scanInterview(rows, &si.Company, &si.Role, &si.Location)
		if err != nil {
			return nil, err
		}
		si.Interview = iv
		out = append(out, si)
	}
	return out, rows.Err()
}

// scanInterview scans interviewColumns followed by any extra destinations.
func scanInterview(row rowScanner, extra ...any) (Interview, error) {
	var iv Interview
	var createdAt, updatedAt string
	dest := []any{&iv.ID, &iv.ApplicationID, &iv.Date, &iv.Time, &iv.Venue, &iv.Completed,
		&iv.Difficulty, &iv.ExperienceNotes, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Interview{}, err
	}
	var err error
	if iv.CreatedAt, err = parseTime(createdAt); err != nil {
		return Interview{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if iv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Interview{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return iv, nil
}
