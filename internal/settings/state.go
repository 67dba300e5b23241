// Package settings holds GlobalState, the settings shared by every card
// window, and the Store that is its single mutation entry point.
package settings

import (
	"maps"
	"slices"

	"github.com/tommyzliu/stickies/internal/i18n"
)

// Key names a GlobalState field. Keys double as persisted keys and as the
// "type" of wire actions.
type Key string

const (
	KeyCardDir               Key = "cardDir"
	KeyI18n                  Key = "i18n"
	KeyNavigationAllowedURLs Key = "navigationAllowedURLs"
)

// I18n is the active language and its resolved message table.
type I18n struct {
	Language string        `json:"language"`
	Messages i18n.Messages `json:"messages"`
}

// State is GlobalState. Values handed out by Store are snapshots: deep
// copies that callers may keep or modify freely.
type State struct {
	CardDir               string   `json:"cardDir"`
	I18n                  I18n     `json:"i18n"`
	NavigationAllowedURLs []string `json:"navigationAllowedURLs"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.I18n.Messages = s.I18n.Messages.Clone()
	out.NavigationAllowedURLs = append(make([]string, 0, len(s.NavigationAllowedURLs)), s.NavigationAllowedURLs...)
	return out
}

// Equal reports whether s and o hold the same settings.
func (s State) Equal(o State) bool {
	return s.CardDir == o.CardDir &&
		s.I18n.Language == o.I18n.Language &&
		maps.Equal(s.I18n.Messages, o.I18n.Messages) &&
		slices.Equal(s.NavigationAllowedURLs, o.NavigationAllowedURLs)
}

func emptyState() *State {
	return &State{
		I18n:                  I18n{Messages: i18n.Messages{}},
		NavigationAllowedURLs: []string{},
	}
}
