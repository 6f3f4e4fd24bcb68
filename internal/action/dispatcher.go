// Package action performs the side effects of resolved commands and speaks
// the matching confirmation.
package action

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/agalue/aayu/internal/intent"
)

// Spoken replies.
const (
	ReplyStop           = "Okay."
	ReplyNotUnderstood  = "I did not understand that."
	replyOpenNotepad    = "Opening notepad."
	replyOpenCalculator = "Opening calculator."
	replyOpenYouTube    = "Opening YouTube."
	replyOpenGoogle     = "Opening Google."
)

// Site URLs.
const (
	YouTubeURL   = "https://www.youtube.com"
	GoogleURL    = "https://www.google.com"
	GoogleSearch = "https://www.google.com/search?q="
)

// Speaker says a line and returns when it has been heard.
type Speaker interface {
	Speak(text string) error
}

// Options tune a Dispatcher.
type Options struct {
	// EscapeQuery percent-encodes search queries. Off by default, which
	// appends the query to the search URL exactly as spoken.
	EscapeQuery bool
	// Now returns the current time; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Dispatcher maps (intent, target) pairs to effects. Every effect is
// attempted once; failures are logged and never returned.
type Dispatcher struct {
	speaker  Speaker
	launcher Launcher
	browser  Browser
	escape   bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewDispatcher wires the dispatcher to its effect sinks.
func NewDispatcher(speaker Speaker, launcher Launcher, browser Browser, opts Options) *Dispatcher {
	d := &Dispatcher{
		speaker:  speaker,
		launcher: launcher,
		browser:  browser,
		escape:   opts.EscapeQuery,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch performs the action.
func (d *Dispatcher) Dispatch(a intent.Action) {
	d.logger.Info("⚡ Dispatching", "action", a.String())

	switch {
	case a.Intent == intent.Stop:
		d.say(ReplyStop)

	case a.Intent == intent.OpenApp && a.Target == intent.Notepad:
		d.say(replyOpenNotepad)
		d.launch(a.Target)

	case a.Intent == intent.OpenApp && a.Target == intent.Calculator:
		d.say(replyOpenCalculator)
		d.launch(a.Target)

	case a.Intent == intent.OpenWebsite && a.Target == intent.YouTube:
		d.say(replyOpenYouTube)
		d.open(YouTubeURL)

	case a.Intent == intent.OpenWebsite && a.Target == intent.Google:
		d.say(replyOpenGoogle)
		d.open(GoogleURL)

	case a.Intent == intent.GetTime:
		d.say(TimeReply(d.now()))

	case a.Intent == intent.GetDate:
		d.say(DateReply(d.now()))

	case a.Intent == intent.Search && a.Target != intent.NoTarget:
		query := string(a.Target)
		d.say("Searching " + query)
		d.open(SearchURL(query, d.escape))

	default:
		d.say(ReplyNotUnderstood)
	}
}

// TimeReply formats t as a 12-hour clock, e.g. "The time is 03:04 PM".
func TimeReply(t time.Time) string {
	return "The time is " + t.Format("03:04 PM")
}

// DateReply formats t as e.g. "Today is Monday, 02 January 2006".
func DateReply(t time.Time) string {
	return "Today is " + t.Format("Monday, 02 January 2006")
}

// SearchURL builds the Google search URL for query.
func SearchURL(query string, escape bool) string {
	if escape {
		query = url.QueryEscape(query)
	}
	return GoogleSearch + query
}

func (d *Dispatcher) say(text string) {
	if err := d.speaker.Speak(text); err != nil {
		d.logger.Error("❌ Speech failed", "error", err)
	}
}

func (d *Dispatcher) launch(app intent.Target) {
	if err := d.launcher.Launch(app); err != nil {
		d.logger.Error("❌ Failed to launch application", "app", app, "error", err)
	}
}

func (d *Dispatcher) open(u string) {
	if err := d.browser.OpenURL(u); err != nil {
		d.logger.Error("❌ Failed to open browser", "url", u, "error", err)
	}
}
