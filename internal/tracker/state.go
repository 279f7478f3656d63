// Package tracker owns the mutable session state of a curriculum tracker:
// the current template, the student's progress, and locally authored
// template versions. All mutations go through the Store.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/unichart/unichart/internal/curriculum"
)

// PersistedState is the durable slice of the tracker state. The current
// template pointer is not persisted; it is re-resolved from the progress
// template id on startup.
type PersistedState struct {
	Progress        curriculum.Progress   `json:"userProgress"`
	CustomTemplates []curriculum.Template `json:"customTemplates"`
}

// StateStore persists tracker state between sessions. Load returns
// (nil, nil) when no state has been saved yet.
type StateStore interface {
	Load(ctx context.Context) (*PersistedState, error)
	Save(ctx context.Context, state PersistedState) error
}

// MemoryStateStore keeps state in memory. Useful for tests and for
// running without durable storage.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *PersistedState
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Load(ctx context.Context) (*PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	cp := clonePersisted(*s.state)
	return &cp, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, state PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clonePersisted(state)
	s.state = &cp
	return nil
}

// stateFilename is the fixed name state is stored under, the file-system
// analog of the original browser storage key.
const stateFilename = "unichart-storage.json"

// FileStateStore persists state as an indented JSON file in a directory.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore creates a file-backed state store rooted at dir.
func NewFileStateStore(dir string) *FileStateStore {
	return &FileStateStore{path: filepath.Join(dir, stateFilename)}
}

func (s *FileStateStore) Load(ctx context.Context) (*PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return &state, nil
}

func (s *FileStateStore) Save(ctx context.Context, state PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated state file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// loadOrEmpty resolves persisted state, treating read failures as absence
// so a corrupted store never blocks startup.
func loadOrEmpty(ctx context.Context, store StateStore, logger *slog.Logger) PersistedState {
	if store == nil {
		return emptyState()
	}
	state, err := store.Load(ctx)
	if err != nil {
		logger.Warn("failed to load persisted state, starting fresh", "error", err)
		return emptyState()
	}
	if state == nil {
		return emptyState()
	}
	return clonePersisted(*state)
}

func emptyState() PersistedState {
	return PersistedState{
		Progress:        curriculum.Progress{PassedCourses: []curriculum.PassedCourse{}},
		CustomTemplates: []curriculum.Template{},
	}
}

func clonePersisted(state PersistedState) PersistedState {
	out := PersistedState{
		Progress:        state.Progress.Clone(),
		CustomTemplates: make([]curriculum.Template, len(state.CustomTemplates)),
	}
	for i := range state.CustomTemplates {
		out.CustomTemplates[i] = *state.CustomTemplates[i].Clone()
	}
	return out
}
