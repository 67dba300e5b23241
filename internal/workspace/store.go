package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tommyzliu/stickies/internal/codec"
	"github.com/tommyzliu/stickies/internal/persist"
)

// FileStore keeps the registry in a CBOR file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the registry file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the registry. found is false, with a fresh registry, when the
// file does not exist yet.
func (s *FileStore) Load() (reg *Registry, found bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to read workspace registry: %w", persist.ErrPersistence, err)
	}

	reg = NewRegistry()
	if err := codec.Unmarshal(data, reg); err != nil {
		return nil, false, fmt.Errorf("%w: failed to decode workspace registry: %w", persist.ErrPersistence, err)
	}
	if reg.Workspaces == nil {
		reg.Workspaces = make(map[string]*Workspace)
	}
	for _, ws := range reg.Workspaces {
		if ws.Avatars == nil {
			ws.Avatars = []string{}
		}
	}
	reg.ChangingToID = None

	if _, err := reg.lastID(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", persist.ErrPersistence, err)
	}
	return reg, true, nil
}

// Save writes reg atomically. Any in-flight transition is left out.
func (s *FileStore) Save(reg *Registry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create registry directory: %w", persist.ErrPersistence, err)
	}

	data, err := codec.Marshal(reg)
	if err != nil {
		return fmt.Errorf("%w: failed to encode workspace registry: %w", persist.ErrPersistence, err)
	}

	if err := persist.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", persist.ErrPersistence, err)
	}
	return nil
}

// Bootstrap makes sure at least one workspace exists and that the current
// id names one of them. On an empty registry it creates one named
// initialName and commits a transition to it; a registry whose current id
// is dangling, e.g. after a first run stopped between creating and
// switching, is moved to its lowest id.
func Bootstrap(m *Manager, initialName string) error {
	entries := m.List()
	if len(entries) == 0 {
		return switchTo(m, m.Create(initialName))
	}

	if _, err := m.CurrentWorkspace(); err == nil {
		return nil
	}

	m.logger.Warn("current workspace missing, switching to lowest id",
		"current", m.CurrentID(), "to", entries[0].ID)
	return switchTo(m, entries[0].ID)
}

func switchTo(m *Manager, id string) error {
	if err := m.BeginTransition(id); err != nil {
		return fmt.Errorf("failed to switch to workspace %s: %w", id, err)
	}
	return m.CommitTransition()
}
