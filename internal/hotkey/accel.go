package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by New on platforms without a global hotkey
// implementation.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

func (m Modifier) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if m&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if m&ModSuper != 0 {
		parts = append(parts, "Super")
	}
	return strings.Join(parts, "+")
}

// Accelerator is a parsed key combination such as "Ctrl+Alt+S".
type Accelerator struct {
	Mods Modifier
	// Key is the canonical key name: "A".."Z", "0".."9", "F1".."F12",
	// "Space", "Escape" or "Return".
	Key string
}

func (a Accelerator) String() string {
	if a.Mods == 0 {
		return a.Key
	}
	return a.Mods.String() + "+" + a.Key
}

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

var namedKeys = map[string]string{
	"space":  "Space",
	"escape": "Escape",
	"esc":    "Escape",
	"return": "Return",
	"enter":  "Return",
}

// Parse reads an accelerator like "Ctrl+Alt+S". Modifier names are case
// insensitive; exactly one non-modifier key is required.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	if strings.TrimSpace(accel) == "" {
		return a, fmt.Errorf("empty accelerator")
	}

	for _, part := range strings.Split(accel, "+") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: empty key", accel)
		}
		if m, ok := modifierNames[tok]; ok {
			a.Mods |= m
			continue
		}
		if a.Key != "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: more than one key", accel)
		}
		key, err := canonicalKey(tok)
		if err != nil {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: %w", accel, err)
		}
		a.Key = key
	}

	if a.Key == "" {
		return Accelerator{}, fmt.Errorf("invalid accelerator %q: no key", accel)
	}
	return a, nil
}

func canonicalKey(tok string) (string, error) {
	if k, ok := namedKeys[tok]; ok {
		return k, nil
	}
	if len(tok) == 1 {
		c := tok[0]
		if c >= 'a' && c <= 'z' {
			return strings.ToUpper(tok), nil
		}
		if c >= '0' && c <= '9' {
			return tok, nil
		}
	}
	if tok[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(tok, "f%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprintf("f%d", n) == tok {
			return fmt.Sprintf("F%d", n), nil
		}
	}
	return "", fmt.Errorf("unknown key %q", tok)
}
