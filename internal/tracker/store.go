package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unichart/unichart/internal/curriculum"
)

const persistTimeout = 5 * time.Second

// TemplateSource resolves built-in templates by id, typically backed by
// the template catalog.
type TemplateSource interface {
	Template(ctx context.Context, id string) (*curriculum.Template, error)
}

// Snapshot is an immutable view of the tracker state. Callers must treat
// it as read-only; every mutation produces a fresh snapshot.
type Snapshot struct {
	Template        *curriculum.Template  `json:"template"`
	Progress        curriculum.Progress   `json:"userProgress"`
	CustomTemplates []curriculum.Template `json:"customTemplates"`
	Loading         bool                  `json:"loading"`
}

// Config holds the Store's collaborators.
type Config struct {
	Source TemplateSource
	State  StateStore
	Logger *slog.Logger
}

// Store is the explicit state container for a tracking session. It owns
// the current template, the student's progress, and the custom template
// list, and notifies subscribers with a full snapshot after each change.
type Store struct {
	mu       sync.RWMutex
	template *curriculum.Template
	progress curriculum.Progress
	custom   []curriculum.Template
	loading  bool

	source TemplateSource
	state  StateStore
	logger *slog.Logger

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a store and rehydrates any persisted state. A missing
// or unreadable state store yields the defaults: no template, empty
// progress, no custom templates.
func NewStore(ctx context.Context, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := loadOrEmpty(ctx, cfg.State, logger)

	s := &Store{
		progress: state.Progress,
		custom:   state.CustomTemplates,
		source:   cfg.Source,
		state:    cfg.State,
		logger:   logger,
		subs:     make(map[int]chan Snapshot),
	}

	// Re-resolve the current template from the rehydrated custom list so a
	// restart lands the student back on their own version.
	if id := state.Progress.TemplateID; id != "" {
		for i := range s.custom {
			if s.custom[i].ID == id {
				s.template = s.custom[i].Clone()
				break
			}
		}
	}

	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Template: s.template.Clone(),
		Progress: s.progress.Clone(),
		Loading:  s.loading,
	}
	snap.CustomTemplates = make([]curriculum.Template, len(s.custom))
	for i := range s.custom {
		snap.CustomTemplates[i] = *s.custom[i].Clone()
	}
	return snap
}

// LoadTemplate adopts the template with the given id as current. Custom
// templates win over catalog templates with the same id. On failure the
// previous state is left untouched and the error is returned. Passed
// courses are retained across template switches.
func (s *Store) LoadTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	s.loading = true
	var local *curriculum.Template
	for i := range s.custom {
		if s.custom[i].ID == id {
			local = s.custom[i].Clone()
			break
		}
	}
	s.mu.Unlock()
	s.notify()

	var tmpl *curriculum.Template
	if local != nil {
		tmpl = local
	} else {
		if s.source == nil {
			s.clearLoading()
			return fmt.Errorf("template not found: %s", id)
		}
		fetched, err := s.source.Template(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load template", "template_id", id, "error", err)
			s.clearLoading()
			return fmt.Errorf("load template %s: %w", id, err)
		}
		tmpl = fetched.Clone()
	}

	s.mu.Lock()
	s.template = tmpl
	s.progress.TemplateID = id
	s.loading = false
	s.mu.Unlock()

	s.persist(ctx)
	s.notify()
	return nil
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// ToggleCourse marks a course as passed, or un-passes it if it is already
// in the passed list. The course id is taken as given; unknown ids are
// simply never joined against the template. Term defaults to 1.
func (s *Store) ToggleCourse(courseID string, term int) {
	if term <= 0 {
		term = 1
	}

	s.mu.Lock()
	removed := false
	kept := s.progress.PassedCourses[:0]
	for _, pc := range s.progress.PassedCourses {
		if pc.CourseID == courseID {
			removed = true
			continue
		}
		kept = append(kept, pc)
	}
	if removed {
		s.progress.PassedCourses = kept
	} else {
		s.progress.PassedCourses = append(s.progress.PassedCourses, curriculum.PassedCourse{
			CourseID: courseID,
			Term:     term,
		})
	}
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
}

// SaveTemplateVersion appends a new version of the template to the custom
// list and adopts it as current. The previous versions stay untouched.
// Structural validation (duplicate titles in particular) is the caller's
// responsibility and must happen before this call. The new version id is
// returned.
func (s *Store) SaveTemplateVersion(t *curriculum.Template) (string, error) {
	if t == nil || t.ID == "" {
		return "", fmt.Errorf("template id is required")
	}

	s.mu.Lock()
	existing := make([]string, 0, len(s.custom))
	for i := range s.custom {
		existing = append(existing, s.custom[i].ID)
	}

	versioned := t.Clone()
	versioned.ID = curriculum.NextVersionID(t.ID, existing)

	s.custom = append(s.custom, *versioned.Clone())
	s.template = versioned
	s.progress.TemplateID = versioned.ID
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
	return versioned.ID, nil
}

// ImportTemplate upserts a template into the custom list by id, replacing
// any existing entry outright, and adopts it as current.
func (s *Store) ImportTemplate(t *curriculum.Template) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("template id is required")
	}

	s.mu.Lock()
	replaced := false
	for i := range s.custom {
		if s.custom[i].ID == t.ID {
			s.custom[i] = *t.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.custom = append(s.custom, *t.Clone())
	}
	s.template = t.Clone()
	s.progress.TemplateID = t.ID
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
	return nil
}

// DeleteCustomTemplate removes a template from the custom list. The
// current template pointer is left alone even if it references the
// deleted id; dangling references are tolerated throughout.
func (s *Store) DeleteCustomTemplate(id string) {
	s.mu.Lock()
	kept := s.custom[:0]
	for _, t := range s.custom {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.custom = kept
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
}

// ResetProgress clears all passed courses while keeping the template
// reference.
func (s *Store) ResetProgress() {
	s.mu.Lock()
	s.progress.PassedCourses = []curriculum.PassedCourse{}
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
}

// SetProgress replaces the progress wholesale. Used by the progress
// import path after the template id has been validated against the
// current template.
func (s *Store) SetProgress(p curriculum.Progress) {
	s.mu.Lock()
	s.progress = p.Clone()
	s.mu.Unlock()

	s.persist(context.Background())
	s.notify()
}

// GroupProgress computes the unit progress of one group of the current
// template, overflow included.
func (s *Store) GroupProgress(groupID string) curriculum.GroupProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.template == nil {
		return curriculum.GroupProgress{}
	}
	return curriculum.ComputeGroupProgress(s.template, s.progress, groupID)
}

// Available returns every unpassed course of the current template with
// availability annotations.
func (s *Store) Available() []curriculum.AvailableCourse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return curriculum.AvailableCourses(s.template.Courses(), s.progress.PassedCourses)
}

// FullyAvailable returns the courses whose prerequisites are all met.
func (s *Store) FullyAvailable() []curriculum.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return curriculum.FullyAvailableCourses(s.template.Courses(), s.progress.PassedCourses)
}

// UnitsCompleted returns the total passed units of the current template.
func (s *Store) UnitsCompleted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return curriculum.UnitsCompleted(s.template.Courses(), s.progress.PassedCourses)
}

// UnitsByCategory returns passed units keyed by course category.
func (s *Store) UnitsByCategory() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return curriculum.UnitsByCategory(s.template.Courses(), s.progress.PassedCourses)
}

// Subscribe registers a snapshot channel. Every mutation delivers a fresh
// snapshot; slow consumers miss intermediate snapshots rather than block
// the store. The returned function cancels the subscription.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// persist saves the durable slice of state. Failures are logged and
// swallowed: in-memory state is the source of truth and a broken backend
// must not fail a mutation that already happened.
func (s *Store) persist(ctx context.Context) {
	if s.state == nil {
		return
	}

	s.mu.RLock()
	state := clonePersisted(PersistedState{
		Progress:        s.progress,
		CustomTemplates: s.custom,
	})
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.state.Save(ctx, state); err != nil {
		s.logger.Warn("failed to persist state", "error", err)
	}
}
