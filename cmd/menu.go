package cmd

import (
	"log/slog"
	"sync"

	"github.com/tommyzliu/stickies/internal/settings"
)

// messenger resolves a label in the active language.
type messenger interface {
	Message(label string, args ...string) string
}

// trayMenu keeps the localized tray labels in step with the settings
// store. Rendering is left to the desktop shell; the daemon only holds
// the current labels.
type trayMenu struct {
	messages messenger
	logger   *slog.Logger

	mu      sync.Mutex
	tooltip string
	items   []string
}

func newTrayMenu(messages messenger, logger *slog.Logger) *trayMenu {
	return &trayMenu{messages: messages, logger: logger}
}

// refresh is registered as a store change hook. It runs after the store
// has switched to state, so Message already answers in its language.
func (m *trayMenu) refresh(state settings.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tooltip = m.messages.Message("trayToolTip")
	m.items = []string{m.messages.Message("settings"), m.messages.Message("exit")}

	m.logger.Debug("tray menu refreshed", "language", state.I18n.Language, "items", m.items)
}

// labels returns the tooltip and the menu items.
func (m *trayMenu) labels() (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tooltip, append([]string(nil), m.items...)
}
