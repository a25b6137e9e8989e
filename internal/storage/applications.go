package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const applicationColumns = `id, user_id, company, role, location, job_link, status, applied_date, notes, created_at, updated_at`

// CreateApplication validates and inserts a, returning it with its ID set.
func (s *Store) CreateApplication(a Application) (Application, error) {
	if err := a.Validate(); err != nil {
		return Application{}, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	a.CreatedAt, a.UpdatedAt = now, now

	res, err := s.db.Exec(`
		INSERT INTO applications (user_id, company, role, location, job_link, status, applied_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Company, a.Role, a.Location, a.JobLink, a.Status, a.AppliedDate, a.Notes,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return Application{}, fmt.Errorf("inserting application: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return Application{}, err
	}
	return a, nil
}

// GetApplication returns application id if it belongs to userID.
func (s *Store) GetApplication(userID, id int64) (Application, error) {
	a, err := scanApplication(s.db.QueryRow(
		`SELECT `+applicationColumns+` FROM applications WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return a, err
}

// ListApplications returns userID's applications, newest first. A non-empty
// status filters on it.
func (s *Store) ListApplications(userID int64, status string) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY applied_date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApplication validates a and overwrites the stored row.
func (s *Store) UpdateApplication(a Application) (Application, error) {
	if err := a.Validate(); err != nil {
		return Application{}, err
	}
	a.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := s.db.Exec(`
		UPDATE applications
		SET company = ?, role = ?, location = ?, job_link = ?, status = ?, applied_date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		a.Company, a.Role, a.Location, a.JobLink, a.Status, a.AppliedDate, a.Notes, formatTime(a.UpdatedAt),
		a.ID, a.UserID,
	)
	if err != nil {
		return Application{}, fmt.Errorf("updating application: %w", err)
	}
	if err := expectRow(res); err != nil {
		return Application{}, err
	}
	return s.GetApplication(a.UserID, a.ID)
}

// DeleteApplication removes an application and its interview.
func (s *Store) DeleteApplication(userID, id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM interviews WHERE application_id IN (SELECT id FROM applications WHERE id = ? AND user_id = ?)`, id, userID); err != nil {
		return fmt.Errorf("deleting interview: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM applications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplicationStats counts userID's applications per status. Every allowed
// status is present in the result.
func (s *Store) ApplicationStats(userID int64) (map[string]int, error) {
	stats := make(map[string]int, len(AllowedStatuses))
	for _, st := range AllowedStatuses {
		stats[st] = 0
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM applications WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

// FollowUps returns applications still in Applied status whose applied date
// is at least age before now.
func (s *Store) FollowUps(userID int64, now time.Time, age time.Duration) ([]Application, error) {
	cutoff := now.Add(-age).Format(DateLayout)
	rows, err := s.db.Query(`SELECT `+applicationColumns+` FROM applications
		WHERE user_id = ? AND status = ? AND applied_date <= ?
		ORDER BY applied_date ASC, id ASC`, userID, StatusApplied, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListApplicationDetails returns userID's applications joined with their
// interviews, newest first.
func (s *Store) ListApplicationDetails(userID int64) ([]ApplicationDetail, error) {
	apps, err := s.ListApplications(userID, "")
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationDetail, 0, len(apps))
	for _, a := range apps {
		d := ApplicationDetail{Application: a}
		iv, err := s.GetInterview(userID, a.ID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		default:
			d.Interview = &iv
		}
		out = append(out, d)
	}
	return out, nil
}

func scanApplication(row rowScanner) (Application, error) {
	var a Application
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.Company, &a.Role, &a.Location, &a.JobLink, &a.Status,
		&a.AppliedDate, &a.Notes, &createdAt, &updatedAt); err != nil {
		return Application{}, err
	}
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return Application{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Application{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return a, nil
}
