// Package hotkey registers the activation chord as a system-wide hotkey.
// On macOS the caller must run the program under mainthread.Init.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.design/x/hotkey"

	"github.com/agalue/aayu/internal/trigger"
)

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"a":     hotkey.KeyA,
	"b":     hotkey.KeyB,
	"c":     hotkey.KeyC,
	"d":     hotkey.KeyD,
	"e":     hotkey.KeyE,
	"f":     hotkey.KeyF,
	"g":     hotkey.KeyG,
	"h":     hotkey.KeyH,
	"i":     hotkey.KeyI,
	"j":     hotkey.KeyJ,
	"k":     hotkey.KeyK,
	"l":     hotkey.KeyL,
	"m":     hotkey.KeyM,
	"n":     hotkey.KeyN,
	"o":     hotkey.KeyO,
	"p":     hotkey.KeyP,
	"q":     hotkey.KeyQ,
	"r":     hotkey.KeyR,
	"s":     hotkey.KeyS,
	"t":     hotkey.KeyT,
	"u":     hotkey.KeyU,
	"v":     hotkey.KeyV,
	"w":     hotkey.KeyW,
	"x":     hotkey.KeyX,
	"y":     hotkey.KeyY,
	"z":     hotkey.KeyZ,
	"0":     hotkey.Key0,
	"1":     hotkey.Key1,
	"2":     hotkey.Key2,
	"3":     hotkey.Key3,
	"4":     hotkey.Key4,
	"5":     hotkey.Key5,
	"6":     hotkey.Key6,
	"7":     hotkey.Key7,
	"8":     hotkey.Key8,
	"9":     hotkey.Key9,
	"f1":    hotkey.KeyF1,
	"f2":    hotkey.KeyF2,
	"f3":    hotkey.KeyF3,
	"f4":    hotkey.KeyF4,
	"f5":    hotkey.KeyF5,
	"f6":    hotkey.KeyF6,
	"f7":    hotkey.KeyF7,
	"f8":    hotkey.KeyF8,
	"f9":    hotkey.KeyF9,
	"f10":   hotkey.KeyF10,
	"f11":   hotkey.KeyF11,
	"f12":   hotkey.KeyF12,
}

// Listener is a trigger.Trigger backed by a registered global hotkey.
type Listener struct {
	hk     *hotkey.Hotkey
	chord  trigger.Chord
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// Register grabs the chord for the whole desktop session.
func Register(chord trigger.Chord, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key, ok := keys[chord.Key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", chord.Key)
	}

	var mods []hotkey.Modifier
	if chord.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if chord.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if chord.Alt {
		mods = append(mods, modAlt)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("register hotkey %s: %w", chord, err)
	}
	logger.Debug("⌨️  Hotkey registered", "chord", chord.String())
	return &Listener{hk: hk, chord: chord, logger: logger, done: make(chan struct{})}, nil
}

// Wait blocks until the chord is pressed. Presses made while no one was
// waiting are discarded so a cycle is never started twice by one press.
func (l *Listener) Wait(ctx context.Context) error {
	for drained := false; !drained; {
		select {
		case <-l.hk.Keydown():
		default:
			drained = true
		}
	}

	select {
	case <-l.hk.Keydown():
		l.logger.Debug("⌨️  Hotkey pressed", "chord", l.chord.String())
		return nil
	case <-l.done:
		return trigger.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the hotkey.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.hk.Unregister()
	})
	return err
}
