package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueFull is returned by Writer.Set when the write queue is saturated.
var ErrQueueFull = errors.New("write queue full")

// ErrWriterClosed is returned by Writer.Set after Close.
var ErrWriterClosed = errors.New("writer closed")

// WriterOptions tunes a Writer. Zero values select the defaults.
type WriterOptions struct {
	QueueSize   int           // default 64
	MaxAttempts int           // default 3
	Backoff     time.Duration // delay before the second attempt, doubled each retry; default 100ms

	// OnError is called from the writer goroutine when a write is
	// abandoned after MaxAttempts.
	OnError func(key string, err error)
}

type pendingWrite struct {
	key   string
	value any
}

// Writer moves writes off the caller's path: Set enqueues and returns,
// Run performs the writes in FIFO order with bounded retry. The in-memory
// state is authoritative, so a write that keeps failing is logged and
// dropped rather than blocking callers.
type Writer struct {
	sink   Sink
	logger *slog.Logger
	opts   WriterOptions

	mu     sync.RWMutex
	closed bool
	queue  chan pendingWrite

	// inflight counts queued or running writes per key.
	inflightMu sync.Mutex
	inflight   map[string]int

	// consumer is claimed by whichever of Run or Close drains the queue.
	consumer atomic.Bool
	done     chan struct{}
}

// NewWriter creates a Writer in front of sink.
func NewWriter(sink Sink, logger *slog.Logger, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}

	return &Writer{
		sink:     sink,
		logger:   logger,
		opts:     opts,
		queue:    make(chan pendingWrite, opts.QueueSize),
		inflight: make(map[string]int),
		done:     make(chan struct{}),
	}
}

// Set queues a write. It never blocks.
func (w *Writer) Set(key string, value any) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return fmt.Errorf("%w: %w", ErrPersistence, ErrWriterClosed)
	}

	w.track(key, 1)
	select {
	case w.queue <- pendingWrite{key: key, value: value}:
		return nil
	default:
		w.track(key, -1)
		return fmt.Errorf("%w: %w", ErrPersistence, ErrQueueFull)
	}
}

// Pending reports whether a write of key is queued or in progress.
func (w *Writer) Pending(key string) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	return w.inflight[key] > 0
}

func (w *Writer) track(key string, delta int) {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	if n := w.inflight[key] + delta; n > 0 {
		w.inflight[key] = n
	} else {
		delete(w.inflight, key)
	}
}

// Run drains the queue until Close is called. Cancelling ctx aborts
// retry backoff; queued writes still get one attempt each.
func (w *Writer) Run(ctx context.Context) error {
	if !w.consumer.CompareAndSwap(false, true) {
		return nil
	}
	defer close(w.done)

	for pending := range w.queue {
		w.write(ctx, pending)
	}
	return nil
}

// Close stops accepting writes and waits until queued writes are flushed.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	if !w.consumer.CompareAndSwap(false, true) {
		<-w.done
		return
	}

	// Run was never started: flush inline.
	for pending := range w.queue {
		w.write(context.Background(), pending)
	}
}

func (w *Writer) write(ctx context.Context, pending pendingWrite) {
	defer w.track(pending.key, -1)
	backoff := w.opts.Backoff

	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		if err = w.sink.Set(pending.key, pending.value); err == nil {
			return
		}

		w.logger.Warn("persist write failed",
			"key", pending.key,
			"attempt", attempt,
			"error", err,
		)

		if attempt == w.opts.MaxAttempts || ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
		backoff *= 2
	}

	w.logger.Error("persist write abandoned", "key", pending.key, "error", err)
	if w.opts.OnError != nil {
		w.opts.OnError(pending.key, err)
	}
}
