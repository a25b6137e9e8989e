package profile

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store. A user without a stored profile yields a
// zero Record and no error.
type ProfileStore interface {
	GetProfile(userID int64) (Record, error)
	// ApplyProfilePatch must write every entry of the patch in one
	// transaction.
	ApplyProfilePatch(userID int64, patch Patch) error
	SaveProfile(userID int64, r Record) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	record   Record
	cachedAt time.Time
}

// Manager provides cached access to stored profiles and serializes every
// read-modify-write of a user's profile.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[int64]cacheEntry

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[int64]cacheEntry),
		locks: make(map[int64]*sync.Mutex),
	}
}

// Get returns the stored profile of userID, from cache when fresh.
func (m *Manager) Get(userID int64) (Record, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.fresh(e) {
		r := cloneRecord(e.record)
		m.mu.RUnlock()
		return r, nil
	}
	m.mu.RUnlock()

	// Slow path: write lock for cache miss.
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[userID]; ok && m.fresh(e) {
		return cloneRecord(e.record), nil
	}

	r, err := m.store.GetProfile(userID)
	if err != nil {
		return Record{}, fmt.Errorf("loading profile: %w", err)
	}
	m.cache[userID] = cacheEntry{record: r, cachedAt: m.clock.Now()}
	return cloneRecord(r), nil
}

func (m *Manager) fresh(e cacheEntry) bool {
	return m.clock.Now().Before(e.cachedAt.Add(m.ttl))
}

// Merge fills the empty parts of userID's profile from extracted and returns
// what was written. The read, reconcile and write happen under a per-user
// lock so two concurrent imports cannot both see the same empty section.
func (m *Manager) Merge(userID int64, extracted Profile) (Patch, error) {
	unlock := m.lockUser(userID)
	defer unlock()

	existing, err := m.store.GetProfile(userID)
	if err != nil {
		return Patch{}, fmt.Errorf("loading profile: %w", err)
	}

	patch := ReconcileRecord(existing, extracted)
	if patch.Empty() {
		slog.Debug("profile merge: nothing to fill", "user_id", userID)
		return patch, nil
	}
	if err := m.store.ApplyProfilePatch(userID, patch); err != nil {
		return Patch{}, fmt.Errorf("applying profile patch: %w", err)
	}
	m.invalidate(userID)

	slog.Info("profile merged", "user_id", userID, "sections", patch.Sections(), "legacy", patch.LegacyFields())
	return patch, nil
}

// Edit applies a manual edit. Every section named in fields is replaced,
// including with null to clear it; manual edits always win over extracted
// data. Values go through the same coercion as model output. Legacy columns
// are edited through a nested "legacy" object.
func (m *Manager) Edit(userID int64, fields map[string]any) (Record, error) {
	unlock := m.lockUser(userID)
	defer unlock()

	r, err := m.store.GetProfile(userID)
	if err != nil {
		return Record{}, fmt.Errorf("loading profile: %w", err)
	}

	edited := fromObject(fields)
	for _, s := range Sections {
		if _, ok := fields[string(s)]; ok {
			r.Profile.copySection(s, edited)
		}
	}
	if legacy, ok := object(fields["legacy"]); ok {
		for _, f := range LegacyFields {
			if v, ok := legacy[string(f)]; ok {
				*r.Legacy.field(f) = scalar(v)
			}
		}
	}

	if err := m.store.SaveProfile(userID, r); err != nil {
		return Record{}, fmt.Errorf("saving profile: %w", err)
	}
	m.invalidate(userID)
	return cloneRecord(r), nil
}

// Summary returns a compact text rendering of the profile suitable for
// injection into a prompt.
func (m *Manager) Summary(userID int64) (string, error) {
	r, err := m.Get(userID)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return Summarize(r), nil
}

func (m *Manager) invalidate(userID int64) {
	m.mu.Lock()
	delete(m.cache, userID)
	m.mu.Unlock()
}

func (m *Manager) lockUser(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

// Summarize renders r as prompt text. Structured sections are preferred and
// legacy columns fill in for missing ones.
func Summarize(r Record) string {
	var parts []string
	add := func(label string, v *string) {
		if !blank(v) {
			parts = append(parts, fmt.Sprintf("%s: %s", label, strings.TrimSpace(*v)))
		}
	}

	name, summary, lookingFor := r.Legacy.Name, r.Legacy.Bio, r.Legacy.LookingFor
	if r.Identity != nil && !blank(r.Identity.Name) {
		name = r.Identity.Name
	}
	if !blank(r.ProfessionalSummary) {
		summary = r.ProfessionalSummary
	}
	if r.CareerIntent != nil && len(r.CareerIntent.TargetRoles) > 0 {
		lookingFor = strPtr(strings.Join(r.CareerIntent.TargetRoles, ", "))
	}

	add("Name", name)
	add("Target role", lookingFor)
	add("Summary", summary)

	if r.Skills != nil && !r.Skills.IsEmpty() {
		var all []string
		all = append(all, r.Skills.Technical...)
		all = append(all, r.Skills.Tools...)
		all = append(all, r.Skills.Soft...)
		parts = append(parts, "Skills: "+strings.Join(all, ", "))
	} else {
		add("Skills", r.Legacy.Skills)
	}

	for _, e := range r.Experience {
		line := joinNonBlank(" at ", e.Role, e.Company)
		if !blank(e.Duration) {
			line += " (" + strings.TrimSpace(*e.Duration) + ")"
		}
		parts = append(parts, "Experience: "+line)
	}
	for _, e := range r.Education {
		parts = append(parts, "Education: "+joinNonBlank(", ", e.Degree, e.Institution, e.Year))
	}
	for _, p := range r.Projects {
		parts = append(parts, "Project: "+joinNonBlank(" - ", p.Name, p.TechStack, p.Impact))
	}
	if len(r.Achievements) > 0 {
		parts = append(parts, "Achievements: "+strings.Join(r.Achievements, "; "))
	}

	if len(parts) == 0 {
		return "Candidate profile: not yet configured."
	}

	summaryText := strings.Join(parts, "\n")
	if len(summaryText) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summaryText[end]) {
			end--
		}
		if idx := strings.LastIndexAny(summaryText[:end], " \n"); idx > 0 {
			summaryText = summaryText[:idx]
		} else {
			summaryText = summaryText[:end]
		}
	}
	return summaryText
}

func joinNonBlank(sep string, vals ...*string) string {
	var out []string
	for _, v := range vals {
		if !blank(v) {
			out = append(out, strings.TrimSpace(*v))
		}
	}
	return strings.Join(out, sep)
}
