// ABOUTME: Global state keys, enums and validation for the widget state bridge.
// ABOUTME: Defines the openai:set_globals event and its {"globals": {...}} payload.

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Key names a global the host can push to widget code.
type Key string

const (
	KeyToolOutput  Key = "toolOutput"
	KeyTheme       Key = "theme"
	KeyDisplayMode Key = "displayMode"
	KeyWidgetState Key = "widgetState"
	KeyLocale      Key = "locale"
)

// EventSetGlobals is the single event name the host dispatches.
const EventSetGlobals = "openai:set_globals"

// MaxWidgetStateBytes bounds the JSON encoding of widgetState.
const MaxWidgetStateBytes = 4096

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type DisplayMode string

const (
	DisplayInline     DisplayMode = "inline"
	DisplayPIP        DisplayMode = "pip"
	DisplayFullscreen DisplayMode = "fullscreen"
)

var (
	ErrUnknownKey          = errors.New("unknown global key")
	ErrInvalidValue        = errors.New("invalid global value")
	ErrWidgetStateTooLarge = errors.New("widget state too large")
)

// Globals is a change-set: only the keys present are updated.
type Globals map[Key]any

// SetGlobalsEvent is the payload of EventSetGlobals.
type SetGlobalsEvent struct {
	Globals map[string]json.RawMessage `json:"globals"`
}

func knownKey(k Key) bool {
	switch k {
	case KeyToolOutput, KeyTheme, KeyDisplayMode, KeyWidgetState, KeyLocale:
		return true
	}
	return false
}

// normalize validates one key/value pair and returns the value to store.
// Enum values are accepted as their typed or plain string form.
func normalize(k Key, v any) (any, error) {
	switch k {
	case KeyTheme:
		var s string
		switch t := v.(type) {
		case Theme:
			s = string(t)
		case string:
			s = t
		default:
			return nil, fmt.Errorf("%w: theme must be a string, got %T", ErrInvalidValue, v)
		}
		if th := Theme(s); th != ThemeLight && th != ThemeDark {
			return nil, fmt.Errorf("%w: theme %q", ErrInvalidValue, s)
		}
		return Theme(s), nil

	case KeyDisplayMode:
		var s string
		switch t := v.(type) {
		case DisplayMode:
			s = string(t)
		case string:
			s = t
		default:
			return nil, fmt.Errorf("%w: displayMode must be a string, got %T", ErrInvalidValue, v)
		}
		switch DisplayMode(s) {
		case DisplayInline, DisplayPIP, DisplayFullscreen:
			return DisplayMode(s), nil
		}
		return nil, fmt.Errorf("%w: displayMode %q", ErrInvalidValue, s)

	case KeyLocale:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: locale must be a string, got %T", ErrInvalidValue, v)
		}
		return s, nil

	case KeyWidgetState:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: widgetState: %v", ErrInvalidValue, err)
		}
		if len(data) > MaxWidgetStateBytes {
			return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrWidgetStateTooLarge, len(data), MaxWidgetStateBytes)
		}
		return v, nil

	case KeyToolOutput:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
}
