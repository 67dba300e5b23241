package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakySink fails the first failures calls, then records writes.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	writes   []string
}

func (s *flakySink) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("disk unavailable")
	}
	s.writes = append(s.writes, key)
	return nil
}

func TestWriterFlushesInOrder(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "settings.json"))
	w := NewWriter(f, discardLogger(), WriterOptions{})

	go w.Run(context.Background())

	require.NoError(t, w.Set("cardDir", "/first"))
	require.NoError(t, w.Set("cardDir", "/second"))
	require.NoError(t, w.Set("i18n", "ja"))
	w.Close()

	dir, err := Get(f, "cardDir", "")
	require.NoError(t, err)
	assert.Equal(t, "/second", dir)

	lang, err := Get(f, "i18n", "")
	require.NoError(t, err)
	assert.Equal(t, "ja", lang)
}

func TestWriterRetries(t *testing.T) {
	sink := &flakySink{failures: 2}
	w := NewWriter(sink, discardLogger(), WriterOptions{MaxAttempts: 3, Backoff: time.Millisecond})

	go w.Run(context.Background())
	require.NoError(t, w.Set("cardDir", "/cards"))
	w.Close()

	assert.Equal(t, 3, sink.calls)
	assert.Equal(t, []string{"cardDir"}, sink.writes)
}

func TestWriterReportsAbandonedWrites(t *testing.T) {
	sink := &flakySink{failures: 10}

	var mu sync.Mutex
	var abandoned []string
	w := NewWriter(sink, discardLogger(), WriterOptions{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		OnError: func(key string, err error) {
			mu.Lock()
			abandoned = append(abandoned, key)
			mu.Unlock()
		},
	})

	go w.Run(context.Background())
	require.NoError(t, w.Set("i18n", "en"))
	w.Close()

	assert.Equal(t, 2, sink.calls)
	assert.Equal(t, []string{"i18n"}, abandoned)
}

func TestWriterQueueFull(t *testing.T) {
	w := NewWriter(&flakySink{}, discardLogger(), WriterOptions{QueueSize: 1})

	require.NoError(t, w.Set("cardDir", "/a"))
	err := w.Set("cardDir", "/b")

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestWriterCloseWithoutRunFlushes(t *testing.T) {
	sink := &flakySink{}
	w := NewWriter(sink, discardLogger(), WriterOptions{})

	require.NoError(t, w.Set("cardDir", "/a"))
	w.Close()

	assert.Equal(t, []string{"cardDir"}, sink.writes)

	err := w.Set("cardDir", "/b")
	assert.True(t, errors.Is(err, ErrWriterClosed))

	// Closing twice is harmless.
	w.Close()
}

func TestWriterPendingTracksQueuedKeys(t *testing.T) {
	sink := &flakySink{}
	w := NewWriter(sink, discardLogger(), WriterOptions{QueueSize: 1})

	assert.False(t, w.Pending("cardDir"))

	require.NoError(t, w.Set("cardDir", "/a"))
	assert.True(t, w.Pending("cardDir"))
	assert.False(t, w.Pending("i18n"))

	// A rejected write is not pending.
	assert.Error(t, w.Set("i18n", "ja"))
	assert.False(t, w.Pending("i18n"))

	w.Close()
	assert.False(t, w.Pending("cardDir"))
}
