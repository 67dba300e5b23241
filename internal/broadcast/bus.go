// Package broadcast pushes GlobalState snapshots to subscribed windows.
//
// Every subscription owns a buffered queue drained by its own goroutine,
// so delivery is FIFO per window while a slow or dead window never holds
// up Publish or the other windows. A window whose Send fails is dropped.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tommyzliu/stickies/internal/settings"
)

// DefaultBufferSize is the per-window queue length used when Options
// leaves it unset.
const DefaultBufferSize = 16

// Window receives snapshots. A non-nil error from Send means the window is
// gone and must not be sent to again.
type Window interface {
	Send(ctx context.Context, state settings.State) error
}

// StateSource provides the snapshot a new subscriber starts from.
type StateSource interface {
	State() settings.State
}

// Options tunes a Bus.
type Options struct {
	BufferSize int
	Logger     *slog.Logger
}

// Bus is the registry of subscribed windows.
type Bus struct {
	source     StateSource
	logger     *slog.Logger
	bufferSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	id     string
	window Window
	queue  chan settings.State

	// initial is the snapshot queued by Subscribe until the next Publish.
	// A store change that landed before Subscribe read the state is
	// published afterwards; that publish repeats initial and is skipped.
	initial *settings.State

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBus creates a Bus whose new subscribers start from source.State().
func NewBus(source StateSource, opts Options) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		source:     source,
		logger:     opts.Logger,
		bufferSize: opts.BufferSize,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]*subscription),
	}
}

// Subscribe registers w, queues the current snapshot for it, and delivers
// every later Publish until the returned function is called. The initial
// snapshot is queued under the registry lock so no publish can slip in
// ahead of it, and a first Publish equal to it is not delivered again.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(w Window) (unsubscribe func()) {
	sub := &subscription{
		id:     uuid.NewString(),
		window: w,
		queue:  make(chan settings.State, b.bufferSize),
		stop:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[sub.id] = sub
	initial := b.source.State()
	sub.initial = &initial
	sub.queue <- initial.Clone()
	b.wg.Add(1)
	go b.deliver(sub)
	total := len(b.subs)
	b.mu.Unlock()

	b.logger.Info("window subscribed", "subscription", sub.id, "total", total)

	return func() { b.remove(sub, "unsubscribed") }
}

// Publish queues state for every subscribed window without waiting for
// delivery. When a window's queue is full its oldest pending snapshot is
// discarded; the newer snapshot supersedes it.
func (b *Bus) Publish(state settings.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.initial != nil {
			repeat := sub.initial.Equal(state)
			sub.initial = nil
			if repeat {
				continue
			}
		}
		if !sub.enqueue(state.Clone()) {
			b.logger.Debug("window lagging, dropped stale snapshot", "subscription", sub.id)
		}
	}
}

// Len returns the number of subscribed windows.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes every window and waits for delivery goroutines to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	for id, sub := range b.subs {
		sub.halt()
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

func (b *Bus) remove(sub *subscription, reason string) {
	b.mu.Lock()
	_, present := b.subs[sub.id]
	delete(b.subs, sub.id)
	total := len(b.subs)
	b.mu.Unlock()

	sub.halt()
	if present {
		b.logger.Info("window removed", "subscription", sub.id, "reason", reason, "total", total)
	}
}

func (b *Bus) deliver(sub *subscription) {
	defer b.wg.Done()

	for {
		select {
		case <-sub.stop:
			return
		case state := <-sub.queue:
			// Unsubscribe may race with a queued snapshot.
			select {
			case <-sub.stop:
				return
			default:
			}

			if err := sub.window.Send(b.ctx, state); err != nil {
				b.logger.Warn("delivery failed, dropping window", "subscription", sub.id, "error", err)
				b.remove(sub, "delivery failed")
				return
			}
		}
	}
}

// enqueue must be called with the bus lock held. It reports false when
// an older snapshot had to be discarded to make room.
func (s *subscription) enqueue(state settings.State) bool {
	select {
	case s.queue <- state:
		return true
	default:
	}

	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- state:
	default:
	}
	return false
}

func (s *subscription) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}
