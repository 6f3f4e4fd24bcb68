//go:build linux

package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt on X11.
const modAlt = hotkey.Mod1
