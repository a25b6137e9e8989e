package profile

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// --- Mock store ---

type mockStore struct {
	mu      sync.Mutex
	records map[int64]Record

	getCalls   int
	applyCalls int
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[int64]Record)}
}

func (m *mockStore) GetProfile(userID int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	return cloneRecord(m.records[userID]), nil
}

func (m *mockStore) ApplyProfilePatch(userID int64, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	m.records[userID] = patch.Apply(m.records[userID])
	return nil
}

func (m *mockStore) SaveProfile(userID int64, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = cloneRecord(r)
	return nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func TestGet_Empty(t *testing.T) {
	mgr := NewManager(newMockStore())

	r, err := mgr.Get(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsEmpty() {
		t.Errorf("expected empty record, got %+v", r)
	}
}

func TestMerge_FillsOnlyEmptySections(t *testing.T) {
	store := newMockStore()
	store.records[1] = Record{Profile: Profile{ProfessionalSummary: strPtr("Experienced backend engineer.")}}
	mgr := NewManager(store)

	extracted := Profile{
		ProfessionalSummary: strPtr("Full-stack generalist."),
		Skills:              &Skills{Technical: []string{"Go", "Postgres"}},
	}
	patch, err := mgr.Merge(1, extracted)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if patch.Has(SectionProfessionalSummary) || !patch.Has(SectionSkills) {
		t.Errorf("unexpected patch sections: %v", patch.Sections())
	}

	r, _ := mgr.Get(1)
	if *r.ProfessionalSummary != "Experienced backend engineer." {
		t.Errorf("summary overwritten: %q", *r.ProfessionalSummary)
	}
	if r.Skills == nil || len(r.Skills.Technical) != 2 {
		t.Errorf("skills not filled: %+v", r.Skills)
	}
	if r.Legacy.Skills == nil || *r.Legacy.Skills != "Go, Postgres" {
		t.Errorf("legacy skills not filled: %v", r.Legacy.Skills)
	}
}

func TestMerge_NothingToFillSkipsWrite(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	patch, err := mgr.Merge(1, Profile{})
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if !patch.Empty() {
		t.Errorf("expected empty patch, got %v", patch.Sections())
	}
	if store.applyCalls != 0 {
		t.Errorf("expected no writes, got %d", store.applyCalls)
	}
}

func TestMerge_ConcurrentImportsDoNotOverwrite(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "first"
			if i%2 == 1 {
				name = "second"
			}
			if _, err := mgr.Merge(7, Profile{Identity: &Identity{Name: strPtr(name)}}); err != nil {
				t.Errorf("Merge error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if store.applyCalls != 1 {
		t.Errorf("expected exactly one write, got %d", store.applyCalls)
	}
}

func TestEdit_ManualEditsWin(t *testing.T) {
	store := newMockStore()
	store.records[1] = Record{Profile: Profile{
		Identity:     &Identity{Name: strPtr("Extracted Name")},
		Achievements: []string{"Old"},
	}}
	mgr := NewManager(store)

	r, err := mgr.Edit(1, map[string]any{
		"identity":     map[string]any{"name": "Manual Name"},
		"achievements": nil,
		"legacy":       map[string]any{"bio": " Hand-written bio "},
	})
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if *r.Identity.Name != "Manual Name" {
		t.Errorf("name = %q", *r.Identity.Name)
	}
	if r.Achievements != nil {
		t.Errorf("achievements should be cleared, got %v", r.Achievements)
	}
	if r.Legacy.Bio == nil || *r.Legacy.Bio != "Hand-written bio" {
		t.Errorf("bio = %v", r.Legacy.Bio)
	}

	// A later import must not undo the manual edit.
	patch, _ := mgr.Merge(1, Profile{Identity: &Identity{Name: strPtr("Extracted Again")}})
	if patch.Has(SectionIdentity) {
		t.Error("import overwrote a manually edited section")
	}
}

func TestSummary_Empty(t *testing.T) {
	mgr := NewManager(newMockStore())

	summary, err := mgr.Summary(1)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary == "" {
		t.Error("expected non-empty summary for empty profile")
	}
}

func TestSummary_Full(t *testing.T) {
	store := newMockStore()
	store.records[1] = Record{Profile: Profile{
		Identity:            &Identity{Name: strPtr("Jane Doe")},
		CareerIntent:        &CareerIntent{TargetRoles: []string{"Backend Engineer"}},
		ProfessionalSummary: strPtr("Builds reliable services."),
		Skills:              &Skills{Technical: []string{"Go"}, Tools: []string{"Docker"}},
		Experience:          []Experience{{Company: strPtr("Acme"), Role: strPtr("Engineer"), Duration: strPtr("3 years")}},
	}}
	mgr := NewManager(store)

	summary, _ := mgr.Summary(1)
	for _, want := range []string{"Jane Doe", "Backend Engineer", "Builds reliable services.", "Go, Docker", "Engineer at Acme (3 years)"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %s", want, summary)
		}
	}
}

func TestSummary_LegacyFallback(t *testing.T) {
	r := Record{Legacy: Legacy{Name: strPtr("Sam"), Skills: strPtr("Python, SQL")}}
	summary := Summarize(r)
	if !strings.Contains(summary, "Name: Sam") || !strings.Contains(summary, "Skills: Python, SQL") {
		t.Errorf("legacy columns not used: %s", summary)
	}
}

func TestSummary_TokenBudget(t *testing.T) {
	achievements := make([]string, 100)
	for i := range achievements {
		achievements[i] = "Delivered something very specific and detailed for testing the token budget"
	}
	summary := Summarize(Record{Profile: Profile{Achievements: achievements}})
	if tokens := len(summary) / 4; tokens >= 500 {
		t.Errorf("summary too long: %d estimated tokens (len=%d)", tokens, len(summary))
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	mgr.Get(1)
	mgr.Get(1)

	if store.getCalls != 1 {
		t.Errorf("expected 1 store call (cache hit on second), got %d", store.getCalls)
	}

	clock.Advance(61 * time.Second)
	mgr.Get(1)

	if store.getCalls != 2 {
		t.Errorf("expected 2 store calls (cache expired), got %d", store.getCalls)
	}
}

func TestCacheInvalidatedByMerge(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, time.Hour)

	mgr.Get(1)
	if _, err := mgr.Merge(1, Profile{Achievements: []string{"Speaker"}}); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	r, _ := mgr.Get(1)
	if len(r.Achievements) != 1 {
		t.Errorf("stale cache after merge: %+v", r)
	}
}
