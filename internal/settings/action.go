package settings

import (
	"errors"
	"fmt"
)

// ErrInvalidAction is returned by ParseAction when a known action type
// carries a payload of the wrong shape.
var ErrInvalidAction = errors.New("invalid action")

// Action is one requested settings mutation. The set of variants is
// closed: SetCardDir, SetLanguage, UpdateNavigationAllowedURLs and
// Unknown, which Dispatch treats as an explicit no-op.
type Action interface {
	// Key names the GlobalState field (and persisted key) the action targets.
	Key() Key
	action()
}

// SetCardDir replaces the card data directory.
type SetCardDir struct {
	Dir string
}

// SetLanguage switches the active language and its message table.
type SetLanguage struct {
	Language string
}

// Operation selects how UpdateNavigationAllowedURLs edits the list.
type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
)

// UpdateNavigationAllowedURLs appends or removes a batch of URLs.
type UpdateNavigationAllowedURLs struct {
	Operation Operation
	URLs      []string
}

// Unknown is an action whose type this store does not recognise.
type Unknown struct {
	Type string
}

func (SetCardDir) Key() Key                  { return KeyCardDir }
func (SetLanguage) Key() Key                 { return KeyI18n }
func (UpdateNavigationAllowedURLs) Key() Key { return KeyNavigationAllowedURLs }
func (u Unknown) Key() Key                   { return Key(u.Type) }

func (SetCardDir) action()                  {}
func (SetLanguage) action()                 {}
func (UpdateNavigationAllowedURLs) action() {}
func (Unknown) action()                     {}

// RawAction is the wire form of an action sent by windows:
// { type, operation?, payload }. Payload is a string or a list of strings.
type RawAction struct {
	Type      string `json:"type"`
	Operation string `json:"operation,omitempty"`
	Payload   any    `json:"payload"`
}

// ParseAction converts a RawAction into an Action. Unrecognised types map
// to Unknown without error.
func ParseAction(raw RawAction) (Action, error) {
	switch Key(raw.Type) {
	case KeyCardDir:
		dir, ok := raw.Payload.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cardDir payload must be a string, got %T", ErrInvalidAction, raw.Payload)
		}
		return SetCardDir{Dir: dir}, nil

	case KeyI18n:
		lang, ok := raw.Payload.(string)
		if !ok {
			return nil, fmt.Errorf("%w: i18n payload must be a string, got %T", ErrInvalidAction, raw.Payload)
		}
		return SetLanguage{Language: lang}, nil

	case KeyNavigationAllowedURLs:
		urls, err := stringList(raw.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: navigationAllowedURLs payload: %w", ErrInvalidAction, err)
		}
		return UpdateNavigationAllowedURLs{Operation: Operation(raw.Operation), URLs: urls}, nil

	default:
		return Unknown{Type: raw.Type}, nil
	}
}

// stringList accepts one URL or a sequence of URLs.
func stringList(payload any) ([]string, error) {
	switch v := payload.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings, got %T", payload)
	}
}

// ToRaw converts an Action back to its wire form.
func ToRaw(a Action) RawAction {
	switch a := a.(type) {
	case SetCardDir:
		return RawAction{Type: string(KeyCardDir), Payload: a.Dir}
	case SetLanguage:
		return RawAction{Type: string(KeyI18n), Payload: a.Language}
	case UpdateNavigationAllowedURLs:
		return RawAction{Type: string(KeyNavigationAllowedURLs), Operation: string(a.Operation), Payload: append([]string(nil), a.URLs...)}
	case Unknown:
		return RawAction{Type: a.Type}
	default:
		return RawAction{Type: string(a.Key())}
	}
}
