// Package notify shows desktop notifications when the assistant starts listening.
package notify

import "github.com/gen2brain/beeep"

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	Icon string // optional path to an icon
}

// Notify shows title and message.
func (d Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, d.Icon)
}
