package workspace

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tommyzliu/stickies/internal/clock"
)

// DefaultScheme prefixes workspace URLs when Options leaves it unset.
const DefaultScheme = "media"

// Saver persists the registry after every committed mutation.
type Saver interface {
	Save(reg *Registry) error
}

// Options configures a Manager.
type Options struct {
	Clock clock.Clock
	// TransitionTimeout bounds how long a transition may stay pending
	// before the next BeginTransition abandons it. Zero waits forever.
	TransitionTimeout time.Duration
	// Saver is optional; nil keeps the registry in memory only.
	Saver  Saver
	Scheme string
	Logger *slog.Logger
}

// Manager owns a Registry and implements the two-phase transition
// protocol. Mutating methods must be called from one goroutine at a time;
// the read methods may be called from anywhere and never block.
type Manager struct {
	reg     *Registry
	lastID  uint64
	beganAt time.Time

	clock   clock.Clock
	timeout time.Duration
	saver   Saver
	scheme  string
	logger  *slog.Logger

	view atomic.Pointer[Registry]

	errMu   sync.Mutex
	saveErr error
}

// NewManager creates a manager that takes ownership of reg.
func NewManager(reg *Registry, opts Options) (*Manager, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if reg.Workspaces == nil {
		reg.Workspaces = make(map[string]*Workspace)
	}

	last, err := reg.lastID()
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Scheme == "" {
		opts.Scheme = DefaultScheme
	}

	m := &Manager{
		reg:     reg,
		lastID:  last,
		clock:   opts.Clock,
		timeout: opts.TransitionTimeout,
		saver:   opts.Saver,
		scheme:  opts.Scheme,
		logger:  opts.Logger,
	}
	if reg.ChangingToID != None {
		m.beganAt = m.clock.Now()
	}
	m.publish()
	return m, nil
}

// Create allocates the next id for a new, empty workspace and returns it.
// The current workspace is unchanged.
func (m *Manager) Create(name string) string {
	m.lastID++
	id := strconv.FormatUint(m.lastID, 10)

	m.reg.Workspaces[id] = &Workspace{Name: name, Avatars: []string{}}
	m.reg.LastID = id

	m.logger.Info("workspace created", "id", id, "name", name)
	m.commit()
	return id
}

// BeginTransition marks targetID as the workspace being switched to. It
// fails with ErrBusy while another transition is pending, unless that
// transition is older than the configured timeout, in which case the
// stale one is abandoned first.
func (m *Manager) BeginTransition(targetID string) error {
	if m.reg.ChangingToID != None {
		if !m.expired() {
			return &Error{Op: "begin transition", ID: targetID, Err: ErrBusy}
		}
		m.logger.Warn("abandoning stale workspace transition",
			"changing_to", m.reg.ChangingToID,
			"pending_for", m.clock.Now().Sub(m.beganAt))
		m.reg.ChangingToID = None
	}

	if _, ok := m.reg.Workspaces[targetID]; !ok {
		m.publish()
		return &Error{Op: "begin transition", ID: targetID, Err: ErrWorkspaceNotFound}
	}

	m.reg.ChangingToID = targetID
	m.beganAt = m.clock.Now()
	m.logger.Info("workspace transition started", "from", m.reg.CurrentID, "to", targetID)
	m.publish()
	return nil
}

// CommitTransition makes the pending target current.
func (m *Manager) CommitTransition() error {
	if m.reg.ChangingToID == None {
		return &Error{Op: "commit transition", Err: ErrNoPendingTransition}
	}

	from := m.reg.CurrentID
	m.reg.CurrentID = m.reg.ChangingToID
	m.reg.ChangingToID = None

	m.logger.Info("workspace transition committed", "from", from, "to", m.reg.CurrentID)
	m.commit()
	return nil
}

// AbortTransition drops the pending transition and stays on the current
// workspace.
func (m *Manager) AbortTransition() error {
	if m.reg.ChangingToID == None {
		return &Error{Op: "abort transition", Err: ErrNoPendingTransition}
	}

	target := m.reg.ChangingToID
	m.reg.ChangingToID = None

	m.logger.Info("workspace transition aborted", "current", m.reg.CurrentID, "abandoned", target)
	m.publish()
	return nil
}

// AddAvatar appends url to the workspace's avatars. Duplicates are kept.
func (m *Manager) AddAvatar(id, url string) error {
	ws, ok := m.reg.Workspaces[id]
	if !ok {
		return &Error{Op: "add avatar", ID: id, Err: ErrWorkspaceNotFound}
	}

	ws.Avatars = append(ws.Avatars, url)
	m.commit()
	return nil
}

// RemoveAvatar deletes the first occurrence of url. An absent url is not
// an error.
func (m *Manager) RemoveAvatar(id, url string) error {
	ws, ok := m.reg.Workspaces[id]
	if !ok {
		return &Error{Op: "remove avatar", ID: id, Err: ErrWorkspaceNotFound}
	}

	for i, avatar := range ws.Avatars {
		if avatar == url {
			ws.Avatars = append(ws.Avatars[:i], ws.Avatars[i+1:]...)
			m.commit()
			return nil
		}
	}
	return nil
}

// CurrentWorkspace returns a copy of the current workspace.
func (m *Manager) CurrentWorkspace() (Workspace, error) {
	v := m.view.Load()
	ws, ok := v.Workspaces[v.CurrentID]
	if !ok {
		return Workspace{}, &Error{Op: "current workspace", ID: v.CurrentID, Err: ErrWorkspaceNotFound}
	}
	return *ws.clone(), nil
}

// Get returns a copy of the workspace with the given id.
func (m *Manager) Get(id string) (Workspace, error) {
	ws, ok := m.view.Load().Workspaces[id]
	if !ok {
		return Workspace{}, &Error{Op: "get workspace", ID: id, Err: ErrWorkspaceNotFound}
	}
	return *ws.clone(), nil
}

// Entry pairs a workspace with its id.
type Entry struct {
	ID string
	Workspace
}

// List returns every workspace ordered by numeric id.
func (m *Manager) List() []Entry {
	v := m.view.Load()

	entries := make([]Entry, 0, len(v.Workspaces))
	for id, ws := range v.Workspaces {
		entries = append(entries, Entry{ID: id, Workspace: *ws.clone()})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, _ := strconv.ParseUint(entries[i].ID, 10, 64)
		b, _ := strconv.ParseUint(entries[j].ID, 10, 64)
		return a < b
	})
	return entries
}

// CurrentID returns the id of the current workspace.
func (m *Manager) CurrentID() string {
	return m.view.Load().CurrentID
}

// LastID returns the most recently allocated id.
func (m *Manager) LastID() string {
	return m.view.Load().LastID
}

// ChangingToID returns the pending target, or None when idle.
func (m *Manager) ChangingToID() string {
	return m.view.Load().ChangingToID
}

// CurrentURL returns the namespace URL of the current workspace.
func (m *Manager) CurrentURL() string {
	return URL(m.scheme, m.CurrentID())
}

// Scheme returns the URL scheme used for workspace namespaces.
func (m *Manager) Scheme() string {
	return m.scheme
}

// SaveErr returns the last registry save failure, or nil once a later
// save has succeeded.
func (m *Manager) SaveErr() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.saveErr
}

func (m *Manager) expired() bool {
	return m.timeout > 0 && m.clock.Now().Sub(m.beganAt) >= m.timeout
}

// commit publishes the new view and saves the registry. A failed save
// keeps the in-memory change.
func (m *Manager) commit() {
	m.publish()

	if m.saver == nil {
		return
	}

	err := m.saver.Save(m.reg)

	m.errMu.Lock()
	m.saveErr = err
	m.errMu.Unlock()

	if err != nil {
		m.logger.Error("failed to save workspace registry", "error", err)
	}
}

func (m *Manager) publish() {
	m.view.Store(m.reg.clone())
}
