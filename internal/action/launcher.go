package action

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/browser"

	"github.com/agalue/aayu/internal/intent"
)

// Launcher starts desktop applications.
type Launcher interface {
	Launch(app intent.Target) error
}

// Browser opens URLs in the default browser.
type Browser interface {
	OpenURL(url string) error
}

// DefaultAppCommands returns the command line used for each application on
// the given GOOS.
func DefaultAppCommands(goos string) map[intent.Target]string {
	switch goos {
	case "windows":
		return map[intent.Target]string{intent.Notepad: "notepad.exe", intent.Calculator: "calc.exe"}
	case "darwin":
		return map[intent.Target]string{intent.Notepad: "open -a TextEdit", intent.Calculator: "open -a Calculator"}
	default:
		return map[intent.Target]string{intent.Notepad: "gnome-text-editor", intent.Calculator: "gnome-calculator"}
	}
}

// ProcessLauncher runs a configured command per application and does not
// wait for it beyond reaping the child.
type ProcessLauncher struct {
	commands map[intent.Target][]string
	logger   *slog.Logger
}

// NewProcessLauncher splits each command line on whitespace. Missing entries
// fall back to DefaultAppCommands for the running OS.
func NewProcessLauncher(commands map[intent.Target]string, logger *slog.Logger) *ProcessLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	l := &ProcessLauncher{commands: map[intent.Target][]string{}, logger: logger}
	for app, line := range DefaultAppCommands(runtime.GOOS) {
		l.commands[app] = strings.Fields(line)
	}
	for app, line := range commands {
		if fields := strings.Fields(line); len(fields) > 0 {
			l.commands[app] = fields
		}
	}
	return l
}

// Launch starts the application.
func (l *ProcessLauncher) Launch(app intent.Target) error {
	argv, ok := l.commands[app]
	if !ok {
		return fmt.Errorf("no command configured for %q", app)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Debug("Launched process exited", "command", argv[0], "error", err)
		}
	}()
	return nil
}

// SystemBrowser opens URLs with the platform's default handler.
type SystemBrowser struct{}

// OpenURL hands url to the desktop.
func (SystemBrowser) OpenURL(url string) error {
	return browser.OpenURL(url)
}
