package action

import (
	"errors"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/aayu/internal/intent"
)

type recorder struct {
	spoken   []string
	launched []intent.Target
	opened   []string
	err      error
}

func (r *recorder) Speak(text string) error {
	r.spoken = append(r.spoken, text)
	return r.err
}

func (r *recorder) Launch(app intent.Target) error {
	r.launched = append(r.launched, app)
	return r.err
}

func (r *recorder) OpenURL(url string) error {
	r.opened = append(r.opened, url)
	return r.err
}

var fixedNow = time.Date(2024, time.March, 5, 15, 4, 0, 0, time.Local)

func newTestDispatcher(rec *recorder, escape bool) *Dispatcher {
	return NewDispatcher(rec, rec, rec, Options{
		EscapeQuery: escape,
		Now:         func() time.Time { return fixedNow },
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name     string
		action   intent.Action
		spoken   string
		launched []intent.Target
		opened   []string
	}{
		{"stop", intent.Action{Intent: intent.Stop}, "Okay.", nil, nil},
		{"notepad", intent.Action{Intent: intent.OpenApp, Target: intent.Notepad}, "Opening notepad.", []intent.Target{intent.Notepad}, nil},
		{"calculator", intent.Action{Intent: intent.OpenApp, Target: intent.Calculator}, "Opening calculator.", []intent.Target{intent.Calculator}, nil},
		{"youtube", intent.Action{Intent: intent.OpenWebsite, Target: intent.YouTube}, "Opening YouTube.", nil, []string{"https://www.youtube.com"}},
		{"google", intent.Action{Intent: intent.OpenWebsite, Target: intent.Google}, "Opening Google.", nil, []string{"https://www.google.com"}},
		{"time", intent.Action{Intent: intent.GetTime}, "The time is 03:04 PM", nil, nil},
		{"date", intent.Action{Intent: intent.GetDate}, "Today is Tuesday, 05 March 2024", nil, nil},
		{
			"search", intent.Action{Intent: intent.Search, Target: "rust programming"},
			"Searching rust programming", nil, []string{"https://www.google.com/search?q=rust programming"},
		},
		{"none", intent.Action{Intent: intent.None}, "I did not understand that.", nil, nil},
		{"app with site target", intent.Action{Intent: intent.OpenApp, Target: intent.YouTube}, "I did not understand that.", nil, nil},
		{"site with app target", intent.Action{Intent: intent.OpenWebsite, Target: intent.Notepad}, "I did not understand that.", nil, nil},
		{"empty search", intent.Action{Intent: intent.Search}, "I did not understand that.", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			newTestDispatcher(rec, false).Dispatch(tt.action)

			assert.Equal(t, []string{tt.spoken}, rec.spoken)
			assert.Equal(t, tt.launched, rec.launched)
			assert.Equal(t, tt.opened, rec.opened)
		})
	}
}

func TestDispatchEscapedSearch(t *testing.T) {
	rec := &recorder{}
	newTestDispatcher(rec, true).Dispatch(intent.Action{Intent: intent.Search, Target: "c++ & go"})
	assert.Equal(t, []string{"https://www.google.com/search?q=c%2B%2B+%26+go"}, rec.opened)
}

func TestDispatchSwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	d := newTestDispatcher(rec, false)

	assert.NotPanics(t, func() { d.Dispatch(intent.Action{Intent: intent.OpenApp, Target: intent.Notepad}) })
	assert.Equal(t, []intent.Target{intent.Notepad}, rec.launched)
}

func TestReplies(t *testing.T) {
	morning := time.Date(2024, time.December, 25, 9, 7, 0, 0, time.UTC)
	assert.Equal(t, "The time is 09:07 AM", TimeReply(morning))
	assert.Equal(t, "Today is Wednesday, 25 December 2024", DateReply(morning))
}

func TestDefaultAppCommands(t *testing.T) {
	assert.Equal(t, "notepad.exe", DefaultAppCommands("windows")[intent.Notepad])
	assert.Equal(t, "calc.exe", DefaultAppCommands("windows")[intent.Calculator])
	assert.Equal(t, "open -a Calculator", DefaultAppCommands("darwin")[intent.Calculator])
	assert.Equal(t, "gnome-text-editor", DefaultAppCommands("linux")[intent.Notepad])
}

func TestProcessLauncher(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX command")
	}
	l := NewProcessLauncher(map[intent.Target]string{intent.Notepad: "true --ignored", intent.Calculator: "  "}, nil)

	require.NoError(t, l.Launch(intent.Notepad))
	assert.Equal(t, []string{"true", "--ignored"}, l.commands[intent.Notepad])
	assert.NotEmpty(t, l.commands[intent.Calculator], "blank override keeps the default")

	assert.Error(t, l.Launch(intent.YouTube))
}
