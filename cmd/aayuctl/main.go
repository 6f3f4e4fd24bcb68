// Aayuctl pokes a running aayu daemon over its control socket, for desktops
// where the global hotkey cannot be grabbed (e.g. Wayland). Bind
// "aayuctl trigger" to a shortcut in the desktop settings.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/agalue/aayu/internal/trigger"
)

func main() {
	socket := pflag.StringP("socket", "s", trigger.DefaultSocketPath(), "Control socket of the aayu daemon")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [trigger|quit]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cmd := trigger.CmdTrigger
	switch pflag.NArg() {
	case 0:
	case 1:
		cmd = pflag.Arg(0)
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if cmd != trigger.CmdTrigger && cmd != trigger.CmdQuit {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := trigger.SendCommand(ctx, *socket, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "aayuctl:", err)
		os.Exit(1)
	}
}
