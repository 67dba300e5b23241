package gateway

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommyzliu/stickies/internal/broadcast"
	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/persist"
	"github.com/tommyzliu/stickies/internal/settings"
	"github.com/tommyzliu/stickies/internal/workspace"
)

func TestDiffActions(t *testing.T) {
	current := settings.State{
		CardDir:               "/cards",
		I18n:                  settings.I18n{Language: "en"},
		NavigationAllowedURLs: []string{"https://a.com"},
	}

	tests := []struct {
		name string
		disk map[string]json.RawMessage
		want []settings.Action
	}{
		{
			name: "unchanged",
			disk: map[string]json.RawMessage{
				"cardDir":               json.RawMessage(`"/cards"`),
				"i18n":                  json.RawMessage(`"en"`),
				"navigationAllowedURLs": json.RawMessage(`["https://a.com"]`),
			},
		},
		{
			name: "missing keys are left alone",
			disk: map[string]json.RawMessage{},
		},
		{
			name: "card dir and language",
			disk: map[string]json.RawMessage{
				"cardDir": json.RawMessage(`"/elsewhere"`),
				"i18n":    json.RawMessage(`"ja"`),
			},
			want: []settings.Action{
				settings.SetCardDir{Dir: "/elsewhere"},
				settings.SetLanguage{Language: "ja"},
			},
		},
		{
			name: "url list replaced",
			disk: map[string]json.RawMessage{
				"navigationAllowedURLs": json.RawMessage(`["https://b.com","https://c.com"]`),
			},
			want: []settings.Action{
				settings.UpdateNavigationAllowedURLs{Operation: settings.OpRemove, URLs: []string{"https://a.com"}},
				settings.UpdateNavigationAllowedURLs{Operation: settings.OpAdd, URLs: []string{"https://b.com", "https://c.com"}},
			},
		},
		{
			name: "url list cleared",
			disk: map[string]json.RawMessage{
				"navigationAllowedURLs": json.RawMessage(`[]`),
			},
			want: []settings.Action{
				settings.UpdateNavigationAllowedURLs{Operation: settings.OpRemove, URLs: []string{"https://a.com"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := diffActions(current, tt.disk)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffActionsReportsBadValues(t *testing.T) {
	current := settings.State{CardDir: "/cards", I18n: settings.I18n{Language: "en"}}

	got, err := diffActions(current, map[string]json.RawMessage{
		"cardDir": json.RawMessage(`12`),
		"i18n":    json.RawMessage(`"ja"`),
	})

	assert.Error(t, err)
	assert.Equal(t, []settings.Action{settings.SetLanguage{Language: "ja"}}, got)
}

func TestReloadIgnoresOwnWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gateway.Dispatch(ctx, settings.SetCardDir{Dir: "/mine"})
	require.NoError(t, err)

	require.NoError(t, h.gateway.reload(ctx, h.file, nil))
	assert.Equal(t, "/mine", h.gateway.Settings().CardDir)
}

func TestReloadAppliesExternalEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rec := &recorder{}
	h.gateway.Subscribe(rec)

	edited := []byte(`{
  // edited by hand
  "cardDir": "/hand/edited",
  "i18n": "ja",
  "navigationAllowedURLs": ["https://x.com",],
}`)
	require.NoError(t, os.WriteFile(h.file.Path(), edited, 0644))

	require.NoError(t, h.gateway.reload(ctx, h.file, nil))

	state := h.gateway.Settings()
	assert.Equal(t, "/hand/edited", state.CardDir)
	assert.Equal(t, "ja", state.I18n.Language)
	assert.Equal(t, []string{"https://x.com"}, state.NavigationAllowedURLs)

	assert.Eventually(t, func() bool {
		return rec.count() > 1 && rec.last().CardDir == "/hand/edited" &&
			len(rec.last().NavigationAllowedURLs) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatchSettingsPicksUpEdits(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.gateway.WatchSettings(ctx, h.file, nil) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before editing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(h.file.Path(), []byte(`{"cardDir": "/from/editor"}`), 0644))

	assert.Eventually(t, func() bool {
		return h.gateway.Settings().CardDir == "/from/editor"
	}, 5*time.Second, 10*time.Millisecond)
}

// gatedSink holds writes of one key until release is closed.
type gatedSink struct {
	*persist.File
	key     string
	release chan struct{}
}

func (s *gatedSink) Set(key string, value any) error {
	if key == s.key {
		<-s.release
	}
	return s.File.Set(key, value)
}

func TestReloadKeepsDispatchWithQueuedWrite(t *testing.T) {
	logger := discardLogger()
	catalog, err := i18n.NewCatalog()
	require.NoError(t, err)

	file := persist.NewFile(filepath.Join(t.TempDir(), "settings.json"))
	sink := &gatedSink{File: file, key: "cardDir", release: make(chan struct{})}
	writer := persist.NewWriter(sink, logger, persist.WriterOptions{})

	store := settings.NewStore(settings.Options{
		Source:         file,
		Sink:           writer,
		Catalog:        catalog,
		DefaultCardDir: "/old",
		Logger:         logger,
	})
	manager, err := workspace.NewManager(workspace.NewRegistry(), workspace.Options{Logger: logger})
	require.NoError(t, err)
	bus := broadcast.NewBus(store, broadcast.Options{Logger: logger})
	g := New(store, manager, bus, Options{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	go writer.Run(ctx)
	defer func() {
		cancel()
		<-g.Done()
		close(sink.release)
		writer.Close()
		bus.Close()
	}()

	// Let the initial cardDir write through, then hold the next one.
	go func() { sink.release <- struct{}{} }()
	require.NoError(t, store.Initialize("en"))
	require.Eventually(t, func() bool {
		return !writer.Pending("cardDir") && !writer.Pending("i18n") && !writer.Pending("navigationAllowedURLs")
	}, 2*time.Second, 5*time.Millisecond)

	_, err = g.Dispatch(ctx, settings.SetCardDir{Dir: "/new"})
	require.NoError(t, err)
	require.True(t, writer.Pending("cardDir"))

	// Another process changes the language while our cardDir write waits.
	require.NoError(t, os.WriteFile(file.Path(),
		[]byte(`{"cardDir":"/old","i18n":"ja","navigationAllowedURLs":[]}`), 0644))
	require.NoError(t, g.reload(ctx, file, writer))

	state := g.Settings()
	assert.Equal(t, "/new", state.CardDir)
	assert.Equal(t, "ja", state.I18n.Language)

	// A foreign value for the held key loses to the queued dispatch.
	require.NoError(t, os.WriteFile(file.Path(),
		[]byte(`{"cardDir":"/theirs","i18n":"ja","navigationAllowedURLs":[]}`), 0644))
	require.NoError(t, g.reload(ctx, file, writer))
	assert.Equal(t, "/new", g.Settings().CardDir)
}
