package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/persist"
)

// Options wires a Store to its collaborators.
type Options struct {
	// Source is read by Initialize. Nil means every key takes its default.
	Source persist.Source
	// Sink receives every changed key. Nil disables persistence.
	Sink persist.Sink
	// Catalog resolves message tables. Required.
	Catalog *i18n.Catalog
	// DefaultCardDir is used when no card dir has been persisted.
	DefaultCardDir string
	Logger         *slog.Logger
}

// Store owns GlobalState. Dispatch and Initialize assume a single caller
// at a time (the gateway serializes them); State may be called from any
// goroutine and never blocks.
type Store struct {
	current atomic.Pointer[State]

	source         persist.Source
	sink           persist.Sink
	catalog        *i18n.Catalog
	defaultCardDir string
	logger         *slog.Logger

	hooks []func(State)

	errMu      sync.Mutex
	persistErr error
}

// NewStore creates a Store holding an empty state. Call Initialize before
// serving requests.
func NewStore(opts Options) *Store {
	s := &Store{
		source:         opts.Source,
		sink:           opts.Sink,
		catalog:        opts.Catalog,
		defaultCardDir: opts.DefaultCardDir,
		logger:         opts.Logger,
	}
	s.current.Store(emptyState())
	return s
}

// OnChange registers fn to run after every dispatch that changes state.
// Hooks must be registered before the store is shared and must not block.
func (s *Store) OnChange(fn func(State)) {
	s.hooks = append(s.hooks, fn)
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	return s.current.Load().Clone()
}

// PersistErr returns the most recent persistence failure, or nil once a
// later write has succeeded.
func (s *Store) PersistErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.persistErr
}

// Message returns the active text for label with $1, $2, ... replaced by
// args. Unknown labels are returned verbatim.
func (s *Store) Message(label string, args ...string) string {
	text, ok := s.current.Load().I18n.Messages[label]
	if !ok {
		return label
	}
	return i18n.Format(text, args...)
}

// Initialize seeds every key from persistent storage, falling back to the
// defaults, and applies each through Dispatch so memory and disk agree.
// Read failures fall back to the default; they are logged and returned
// together once all keys are seeded.
func (s *Store) Initialize(preferredLanguage string) error {
	s.current.Store(emptyState())

	var errs []error
	load := func(key Key, fn func(persist.Source) error) {
		if s.source == nil {
			return
		}
		if err := fn(s.source); err != nil {
			s.logger.Warn("failed to load persisted setting, using default", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("failed to load %s: %w", key, err))
		}
	}

	cardDir := s.defaultCardDir
	load(KeyCardDir, func(src persist.Source) (err error) {
		cardDir, err = persist.Get(src, string(KeyCardDir), s.defaultCardDir)
		return err
	})
	s.Dispatch(SetCardDir{Dir: cardDir})

	lang := preferredLanguage
	load(KeyI18n, func(src persist.Source) (err error) {
		lang, err = persist.Get(src, string(KeyI18n), preferredLanguage)
		return err
	})
	s.Dispatch(SetLanguage{Language: lang})

	urls := []string{}
	load(KeyNavigationAllowedURLs, func(src persist.Source) (err error) {
		urls, err = persist.Get(src, string(KeyNavigationAllowedURLs), []string{})
		return err
	})
	s.Dispatch(UpdateNavigationAllowedURLs{Operation: OpAdd, URLs: urls})

	return errors.Join(errs...)
}

// Dispatch applies a, persists the affected key, notifies change hooks and
// returns the resulting state. Unknown actions return the state unchanged
// and trigger nothing.
func (s *Store) Dispatch(a Action) State {
	prev := s.current.Load()

	next, persisted, ok := s.reduce(prev, a)
	if !ok {
		s.logger.Debug("ignoring unknown action", "type", a.Key())
		return prev.Clone()
	}

	s.current.Store(next)
	s.persist(a.Key(), persisted)

	for _, hook := range s.hooks {
		hook(next.Clone())
	}
	return next.Clone()
}

// reduce computes the state after a without touching prev, which may be
// shared with readers. It returns the value to persist, and false for
// actions that are a no-op.
func (s *Store) reduce(prev *State, a Action) (*State, any, bool) {
	switch a := a.(type) {
	case SetCardDir:
		next := *prev
		next.CardDir = a.Dir
		return &next, a.Dir, true

	case SetLanguage:
		next := *prev
		next.I18n = I18n{
			Language: a.Language,
			Messages: s.catalog.Messages(a.Language),
		}
		return &next, a.Language, true

	case UpdateNavigationAllowedURLs:
		urls := append([]string(nil), prev.NavigationAllowedURLs...)
		switch a.Operation {
		case OpAdd:
			urls = append(urls, a.URLs...)
		case OpRemove:
			for _, url := range a.URLs {
				urls = removeFirst(urls, url)
			}
		default:
			s.logger.Warn("unknown navigationAllowedURLs operation", "operation", a.Operation)
		}
		if urls == nil {
			urls = []string{}
		}

		next := *prev
		next.NavigationAllowedURLs = urls
		return &next, append(make([]string, 0, len(urls)), urls...), true

	case Unknown:
		return prev, nil, false

	default:
		return prev, nil, false
	}
}

func (s *Store) persist(key Key, value any) {
	if s.sink == nil {
		return
	}

	err := s.sink.Set(string(key), value)

	s.errMu.Lock()
	s.persistErr = err
	s.errMu.Unlock()

	if err != nil {
		s.logger.Error("failed to persist setting, keeping in-memory value", "key", key, "error", err)
	}
}

// removeFirst deletes the first element equal to v, if any.
func removeFirst(list []string, v string) []string {
	for i, item := range list {
		if item == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
