// ABOUTME: Typed accessors over a Reader for each well-known global.

package bridge

import (
	"encoding/json"
	"fmt"
)

func CurrentToolOutput(r Reader) (any, bool) {
	return r.CurrentValue(KeyToolOutput)
}

func CurrentTheme(r Reader) (Theme, bool) {
	v, ok := r.CurrentValue(KeyTheme)
	if !ok {
		return "", false
	}
	t, ok := v.(Theme)
	return t, ok
}

func CurrentDisplayMode(r Reader) (DisplayMode, bool) {
	v, ok := r.CurrentValue(KeyDisplayMode)
	if !ok {
		return "", false
	}
	m, ok := v.(DisplayMode)
	return m, ok
}

func CurrentWidgetState(r Reader) (any, bool) {
	return r.CurrentValue(KeyWidgetState)
}

func CurrentLocale(r Reader) (string, bool) {
	v, ok := r.CurrentValue(KeyLocale)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DecodeToolOutput converts the current toolOutput into dst via a JSON
// round trip. Returns false if no output has been pushed.
func DecodeToolOutput(r Reader, dst any) (bool, error) {
	v, ok := r.CurrentValue(KeyToolOutput)
	if !ok {
		return false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return true, fmt.Errorf("encode toolOutput: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode toolOutput: %w", err)
	}
	return true, nil
}
