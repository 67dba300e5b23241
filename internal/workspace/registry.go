package workspace

import (
	"fmt"
	"strconv"
)

// None is the ChangingToID of an idle registry.
const None = ""

// Workspace is a named collection of avatar URLs, in insertion order.
type Workspace struct {
	Name    string   `cbor:"name" json:"name"`
	Avatars []string `cbor:"avatars" json:"avatars"`
}

func (w *Workspace) clone() *Workspace {
	return &Workspace{
		Name:    w.Name,
		Avatars: append(make([]string, 0, len(w.Avatars)), w.Avatars...),
	}
}

// Registry holds every workspace together with the current, last allocated
// and in-flight ids. It is owned by exactly one Manager.
type Registry struct {
	Workspaces map[string]*Workspace `cbor:"workspaces"`
	CurrentID  string                `cbor:"currentId"`
	LastID     string                `cbor:"lastId"`

	// ChangingToID is never persisted; a restart always comes up idle.
	ChangingToID string `cbor:"-"`
}

// NewRegistry returns an empty registry with no transition in flight.
func NewRegistry() *Registry {
	return &Registry{
		Workspaces:   make(map[string]*Workspace),
		CurrentID:    "0",
		LastID:       "0",
		ChangingToID: None,
	}
}

func (r *Registry) clone() *Registry {
	c := &Registry{
		Workspaces:   make(map[string]*Workspace, len(r.Workspaces)),
		CurrentID:    r.CurrentID,
		LastID:       r.LastID,
		ChangingToID: r.ChangingToID,
	}
	for id, ws := range r.Workspaces {
		c.Workspaces[id] = ws.clone()
	}
	return c
}

// lastID parses LastID and checks no workspace was allocated beyond it.
func (r *Registry) lastID() (uint64, error) {
	last, err := strconv.ParseUint(r.LastID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid last workspace id %q: %w", r.LastID, err)
	}
	for id := range r.Workspaces {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid workspace id %q: %w", id, err)
		}
		if n > last {
			return 0, fmt.Errorf("workspace id %q exceeds last id %q", id, r.LastID)
		}
	}
	return last, nil
}
