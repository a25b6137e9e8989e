package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/apptrack/internal/profile"
)

// sectionColumns maps each profile section to its column. Sections are
// stored as JSON, except the summary which is plain text.
var sectionColumns = map[profile.Section]string{
	profile.SectionIdentity:            "identity_json",
	profile.SectionCareerIntent:        "career_intent_json",
	profile.SectionProfessionalSummary: "professional_summary",
	profile.SectionSkills:              "skills_json",
	profile.SectionExperience:          "experience_json",
	profile.SectionEducation:           "education_json",
	profile.SectionProjects:            "projects_json",
	profile.SectionAchievements:        "achievements_json",
}

// legacyColumns maps each legacy field to its column.
var legacyColumns = map[profile.LegacyField]string{
	profile.LegacyName:       "name",
	profile.LegacyEmail:      "email",
	profile.LegacyPhone:      "phone",
	profile.LegacyBio:        "bio",
	profile.LegacyLookingFor: "looking_for",
	profile.LegacySkills:     "skills",
}

// profileColumn is one readable/writable column of the profiles table.
type profileColumn struct {
	name    string
	section profile.Section
	legacy  profile.LegacyField
}

// columns returns the profile columns this database actually has, in a
// stable order.
func (s *Store) columns() []profileColumn {
	var cols []profileColumn
	for _, sec := range profile.Sections {
		if name := sectionColumns[sec]; s.profileColumns[name] {
			cols = append(cols, profileColumn{name: name, section: sec})
		}
	}
	for _, f := range profile.LegacyFields {
		if name := legacyColumns[f]; s.profileColumns[name] {
			cols = append(cols, profileColumn{name: name, legacy: f})
		}
	}
	return cols
}

// GetProfile returns the stored profile of userID. A user without a profile
// row gets a zero Record.
func (s *Store) GetProfile(userID int64) (profile.Record, error) {
	cols := s.columns()
	names := make([]string, len(cols))
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		dest[i] = &values[i]
	}

	err := s.db.QueryRow(
		`SELECT `+strings.Join(names, ", ")+` FROM profiles WHERE user_id = ?`, userID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Record{}, nil
	}
	if err != nil {
		return profile.Record{}, fmt.Errorf("reading profile: %w", err)
	}

	obj := make(map[string]any)
	legacy := make(map[string]any)
	for i, c := range cols {
		if !values[i].Valid {
			continue
		}
		switch {
		case c.legacy != "":
			legacy[string(c.legacy)] = values[i].String
		case c.section == profile.SectionProfessionalSummary:
			obj[string(c.section)] = values[i].String
		default:
			var v any
			if err := json.Unmarshal([]byte(values[i].String), &v); err != nil {
				return profile.Record{}, fmt.Errorf("decoding %s: %w", c.name, err)
			}
			obj[string(c.section)] = v
		}
	}
	obj["legacy"] = legacy

	return profile.RecordFromObject(obj), nil
}

// ApplyProfilePatch writes every entry of patch for userID in a single
// transaction, creating the profile row if needed. Entries whose column does
// not exist in this database are skipped.
func (s *Store) ApplyProfilePatch(userID int64, patch profile.Patch) error {
	var (
		sets []string
		args []any
	)
	for _, sec := range patch.Sections() {
		name := sectionColumns[sec]
		if !s.profileColumns[name] {
			continue
		}
		v, err := sectionValue(patch.Values, sec)
		if err != nil {
			return err
		}
		sets = append(sets, name+" = ?")
		args = append(args, v)
	}
	for _, f := range patch.LegacyFields() {
		name := legacyColumns[f]
		if !s.profileColumns[name] {
			continue
		}
		sets = append(sets, name+" = ?")
		args = append(args, patch.Legacy.Value(f))
	}
	if len(sets) == 0 {
		return nil
	}

	now := formatTime(time.Now())
	sets = append(sets, "updated_at = ?")
	args = append(args, now, userID)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO profiles (user_id, updated_at) VALUES (?, ?)`, userID, now); err != nil {
		return fmt.Errorf("creating profile row: %w", err)
	}
	if _, err := tx.Exec(`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return tx.Commit()
}

// SaveProfile replaces the whole stored profile of userID.
func (s *Store) SaveProfile(userID int64, r profile.Record) error {
	cols := s.columns()
	names := []string{"user_id", "updated_at"}
	args := []any{userID, formatTime(time.Now())}
	var updates []string
	for _, c := range cols {
		var v any
		if c.legacy != "" {
			v = r.Legacy.Value(c.legacy)
		} else {
			var err error
			if v, err = sectionValue(r.Profile, c.section); err != nil {
				return err
			}
		}
		names = append(names, c.name)
		args = append(args, v)
		updates = append(updates, c.name+" = excluded."+c.name)
	}
	updates = append(updates, "updated_at = excluded.updated_at")

	_, err := s.db.Exec(
		`INSERT INTO profiles (`+strings.Join(names, ", ")+`) VALUES (?`+strings.Repeat(", ?", len(names)-1)+`)
		ON CONFLICT(user_id) DO UPDATE SET `+strings.Join(updates, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// sectionValue renders one section for storage. Empty sections are stored
// as NULL.
func sectionValue(p profile.Profile, sec profile.Section) (any, error) {
	v := p.Section(sec)
	if profile.IsEmpty(v) {
		return nil, nil
	}
	if sec == profile.SectionProfessionalSummary {
		return strings.TrimSpace(*p.ProfessionalSummary), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", sec, err)
	}
	return string(b), nil
}
