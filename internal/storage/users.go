package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateUser inserts a user. The e-mail is stored lower-cased and must be
// unique.
func (s *Store) CreateUser(name, email, passwordHash string) (User, error) {
	u := User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	res, err := s.db.Exec(`INSERT INTO users (name, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("user %s: %w", u.Email, ErrConflict)
	}
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanUser(row rowScanner) (User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
