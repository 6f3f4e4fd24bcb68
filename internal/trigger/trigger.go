// Package trigger provides the activation sources that start a command
// cycle: a global key chord or a control socket poked by aayuctl.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by Wait once the trigger has been closed.
var ErrClosed = errors.New("trigger closed")

// Trigger blocks until the user asks the assistant to listen.
type Trigger interface {
	Wait(ctx context.Context) error
	Close() error
}

// Chord is a parsed key combination such as "ctrl+space".
type Chord struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string // "space", "a".."z", "0".."9" or "f1".."f12"
}

func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Spoken renders the chord for the startup greeting, e.g. "control and space".
func (c Chord) Spoken() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "control")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	key := c.Key
	if len(key) > 1 && key[0] == 'f' {
		key = strings.ToUpper(key)
	}
	return strings.Join(append(parts, key), " and ")
}

// ParseChord parses a "+"-separated chord. Exactly one non-modifier key is
// required and at least one modifier, so plain typing never activates.
func ParseChord(s string) (Chord, error) {
	var c Chord
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "":
			return Chord{}, fmt.Errorf("invalid chord %q: empty key", s)
		default:
			if c.Key != "" {
				return Chord{}, fmt.Errorf("invalid chord %q: more than one key", s)
			}
			if !validKey(part) {
				return Chord{}, fmt.Errorf("invalid chord %q: unsupported key %q", s, part)
			}
			c.Key = part
		}
	}
	if c.Key == "" {
		return Chord{}, fmt.Errorf("invalid chord %q: missing key", s)
	}
	if !c.Ctrl && !c.Shift && !c.Alt {
		return Chord{}, fmt.Errorf("invalid chord %q: at least one modifier is required", s)
	}
	return c, nil
}

func validKey(k string) bool {
	if k == "space" {
		return true
	}
	if len(k) == 1 {
		return (k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')
	}
	switch k {
	case "f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12":
		return true
	}
	return false
}
