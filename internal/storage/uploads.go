package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) SaveCVUpload(u CVUpload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO cv_uploads (id, user_id, filename, text, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.UserID, u.Filename, u.Text, u.Outcome, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving cv upload: %w", err)
	}
	return nil
}

func (s *Store) GetCVUpload(id string) (CVUpload, error) {
	var u CVUpload
	var createdAt string
	err := s.db.QueryRow(`SELECT id, user_id, filename, text, outcome, created_at FROM cv_uploads WHERE id = ?`, id).
		Scan(&u.ID, &u.UserID, &u.Filename, &u.Text, &u.Outcome, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CVUpload{}, ErrNotFound
	}
	if err != nil {
		return CVUpload{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return CVUpload{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

// SetCVUploadOutcome records how extraction of an upload ended.
func (s *Store) SetCVUploadOutcome(id, outcome string) error {
	res, err := s.db.Exec(`UPDATE cv_uploads SET outcome = ? WHERE id = ?`, outcome, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
