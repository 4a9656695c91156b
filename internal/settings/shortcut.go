package settings

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidShortcut is returned for unparseable hotkey strings.
var ErrInvalidShortcut = errors.New("invalid shortcut")

// Modifier is a bit set of hotkey modifiers.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModMeta
)

// Shortcut is a parsed global hotkey.
type Shortcut struct {
	Modifiers Modifier
	Key       string
}

// String renders the shortcut in canonical "Ctrl+Alt+Shift+Meta+Key" order.
func (s Shortcut) String() string {
	var parts []string
	for _, m := range []struct {
		bit  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModMeta, "Meta"}} {
		if s.Modifiers&m.bit != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, s.Key), "+")
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"shift":   ModShift,
	"win":     ModMeta,
	"meta":    ModMeta,
	"super":   ModMeta,
	"cmd":     ModMeta,
	"command": ModMeta,
}

// keyNames maps accepted spellings to the canonical key name.
var keyNames = func() map[string]string {
	keys := map[string]string{
		"space": "Space", "enter": "Enter", "return": "Enter", "tab": "Tab",
		"escape": "Escape", "esc": "Escape", "backspace": "Backspace",
		"delete": "Delete", "del": "Delete", "insert": "Insert", "ins": "Insert",
		"home": "Home", "end": "End", "pageup": "PageUp", "pgup": "PageUp",
		"pagedown": "PageDown", "pgdn": "PageDown",
		"up": "Up", "arrowup": "Up", "down": "Down", "arrowdown": "Down",
		"left": "Left", "arrowleft": "Left", "right": "Right", "arrowright": "Right",
		"`": "`", "-": "-", "=": "=", "[": "[", "]": "]", `\`: `\`,
		";": ";", "'": "'", ",": ",", ".": ".", "/": "/",
	}
	for c := 'a'; c <= 'z'; c++ {
		keys[string(c)] = strings.ToUpper(string(c))
	}
	for d := '0'; d <= '9'; d++ {
		keys[string(d)] = string(d)
		keys["digit"+string(d)] = string(d)
	}
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		keys[strings.ToLower(name)] = name
	}
	return keys
}()

// ParseShortcut parses a "Modifier+...+Key" string. At least one modifier and
// exactly one key are required; parts are case-insensitive.
func ParseShortcut(s string) (Shortcut, error) {
	if strings.TrimSpace(s) == "" {
		return Shortcut{}, fmt.Errorf("%w: empty shortcut", ErrInvalidShortcut)
	}

	var sc Shortcut
	for _, raw := range strings.Split(s, "+") {
		part := strings.ToLower(strings.TrimSpace(raw))
		if part == "" {
			return Shortcut{}, fmt.Errorf("%w: empty key in %q", ErrInvalidShortcut, s)
		}
		if mod, ok := modifierNames[part]; ok {
			sc.Modifiers |= mod
			continue
		}
		key, ok := keyNames[part]
		if !ok {
			return Shortcut{}, fmt.Errorf("%w: unknown key %q", ErrInvalidShortcut, strings.TrimSpace(raw))
		}
		if sc.Key != "" {
			return Shortcut{}, fmt.Errorf("%w: more than one key in %q", ErrInvalidShortcut, s)
		}
		sc.Key = key
	}

	if sc.Modifiers == 0 {
		return Shortcut{}, fmt.Errorf("%w: %q needs at least one modifier", ErrInvalidShortcut, s)
	}
	if sc.Key == "" {
		return Shortcut{}, fmt.Errorf("%w: %q has no key", ErrInvalidShortcut, s)
	}
	return sc, nil
}
