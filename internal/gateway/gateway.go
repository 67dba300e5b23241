// Package gateway serializes every mutation of the settings store and the
// workspace manager onto one goroutine.
//
// Requests are closures queued on a channel and executed one at a time by
// Run. Reads bypass the queue: both stores publish immutable snapshots
// that can be loaded from any goroutine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/tommyzliu/stickies/internal/broadcast"
	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/settings"
	"github.com/tommyzliu/stickies/internal/workspace"
)

// DefaultQueueSize is the job queue length used when Options leaves it unset.
const DefaultQueueSize = 64

var (
	// ErrClosed is returned for requests made after Run has returned.
	ErrClosed = errors.New("gateway closed")
	// ErrInternal wraps a panic recovered while running a job.
	ErrInternal = errors.New("internal error")
)

// Options configures a Gateway.
type Options struct {
	QueueSize int
	Logger    *slog.Logger
}

// Gateway is the single writer in front of the stores.
type Gateway struct {
	settings   *settings.Store
	workspaces *workspace.Manager
	bus        *broadcast.Bus
	logger     *slog.Logger

	jobs chan func()
	done chan struct{}
}

// New creates a gateway and registers the broadcast bus as a change hook
// on store. Run must be started before any mutating request is made.
func New(store *settings.Store, workspaces *workspace.Manager, bus *broadcast.Bus, opts Options) *Gateway {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	g := &Gateway{
		settings:   store,
		workspaces: workspaces,
		bus:        bus,
		logger:     opts.Logger,
		jobs:       make(chan func(), opts.QueueSize),
		done:       make(chan struct{}),
	}
	store.OnChange(bus.Publish)
	return g
}

// Run executes queued jobs until ctx is cancelled. Jobs already queued
// when ctx ends are discarded.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.done)

	g.logger.Info("gateway started")
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("gateway stopped")
			return nil
		case job := <-g.jobs:
			job()
		}
	}
}

// Done is closed once Run has returned.
func (g *Gateway) Done() <-chan struct{} {
	return g.done
}

func (g *Gateway) enqueue(ctx context.Context, job func()) error {
	select {
	case <-g.done:
		return ErrClosed
	default:
	}

	select {
	case g.jobs <- job:
		return nil
	case <-g.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the gateway goroutine and waits for its result.
func call[T any](ctx context.Context, g *Gateway, op string, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	results := make(chan result, 1)

	err := g.enqueue(ctx, func() {
		var r result
		defer func() { results <- r }()
		defer func() {
			if p := recover(); p != nil {
				g.logger.Error("recovered panic in gateway job",
					"op", op, "panic", p, "stack", string(debug.Stack()))
				r.err = fmt.Errorf("%w: %s: %v", ErrInternal, op, p)
			}
		}()
		r.value, r.err = fn()
	})

	var zero T
	if err != nil {
		return zero, err
	}

	select {
	case r := <-results:
		return r.value, r.err
	case <-g.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Settings returns the current GlobalState snapshot.
func (g *Gateway) Settings() settings.State {
	return g.settings.State()
}

// I18n returns the active language and its message table.
func (g *Gateway) I18n() (string, i18n.Messages) {
	state := g.settings.State()
	return state.I18n.Language, state.I18n.Messages
}

// GlobalDispatch queues raw for the settings store and returns without
// waiting for it to be applied. Malformed actions are logged and rejected
// before anything is queued.
func (g *Gateway) GlobalDispatch(ctx context.Context, raw settings.RawAction) error {
	action, err := settings.ParseAction(raw)
	if err != nil {
		g.logger.Warn("dropping malformed action", "type", raw.Type, "error", err)
		return err
	}

	return g.enqueue(ctx, func() {
		defer g.recoverJob("globalDispatch")
		g.settings.Dispatch(action)
	})
}

// Dispatch applies actions in order as one job and returns the resulting
// state.
func (g *Gateway) Dispatch(ctx context.Context, actions ...settings.Action) (settings.State, error) {
	return call(ctx, g, "dispatch", func() (settings.State, error) {
		state := g.settings.State()
		for _, a := range actions {
			state = g.settings.Dispatch(a)
		}
		return state, nil
	})
}

// Subscribe registers w for globalStoreChanged events.
func (g *Gateway) Subscribe(w broadcast.Window) (unsubscribe func()) {
	return g.bus.Subscribe(w)
}

// CreateWorkspace allocates a new workspace and returns its id.
func (g *Gateway) CreateWorkspace(ctx context.Context, name string) (string, error) {
	return call(ctx, g, "workspace-create", func() (string, error) {
		return g.workspaces.Create(name), nil
	})
}

// BeginTransition starts switching to workspace id.
func (g *Gateway) BeginTransition(ctx context.Context, id string) error {
	return g.run(ctx, "workspace-begin", func() error {
		return g.workspaces.BeginTransition(id)
	})
}

// CommitTransition finishes the pending switch.
func (g *Gateway) CommitTransition(ctx context.Context) error {
	return g.run(ctx, "workspace-commit", g.workspaces.CommitTransition)
}

// AbortTransition cancels the pending switch.
func (g *Gateway) AbortTransition(ctx context.Context) error {
	return g.run(ctx, "workspace-abort", g.workspaces.AbortTransition)
}

// AddAvatar records url as an avatar of workspace id.
func (g *Gateway) AddAvatar(ctx context.Context, id, url string) error {
	return g.run(ctx, "avatar-add", func() error {
		return g.workspaces.AddAvatar(id, url)
	})
}

// RemoveAvatar forgets the first avatar of workspace id equal to url.
func (g *Gateway) RemoveAvatar(ctx context.Context, id, url string) error {
	return g.run(ctx, "avatar-remove", func() error {
		return g.workspaces.RemoveAvatar(id, url)
	})
}

// Workspaces returns every workspace ordered by id.
func (g *Gateway) Workspaces() []workspace.Entry {
	return g.workspaces.List()
}

// Registry describes the id bookkeeping of the workspace registry.
type Registry struct {
	CurrentID    string
	LastID       string
	ChangingToID string
}

// Registry returns the current, last and pending workspace ids.
func (g *Gateway) Registry() Registry {
	return Registry{
		CurrentID:    g.workspaces.CurrentID(),
		LastID:       g.workspaces.LastID(),
		ChangingToID: g.workspaces.ChangingToID(),
	}
}

// CurrentWorkspace returns the current workspace and its namespace URL.
func (g *Gateway) CurrentWorkspace() (workspace.Workspace, string, error) {
	ws, err := g.workspaces.CurrentWorkspace()
	if err != nil {
		return workspace.Workspace{}, "", err
	}
	return ws, g.workspaces.CurrentURL(), nil
}

func (g *Gateway) run(ctx context.Context, op string, fn func() error) error {
	_, err := call(ctx, g, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (g *Gateway) recoverJob(op string) {
	if p := recover(); p != nil {
		g.logger.Error("recovered panic in gateway job",
			"op", op, "panic", p, "stack", string(debug.Stack()))
	}
}
