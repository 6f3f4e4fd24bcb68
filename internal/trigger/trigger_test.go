package trigger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{in: "ctrl+space", want: Chord{Ctrl: true, Key: "space"}},
		{in: " Control + Shift + A ", want: Chord{Ctrl: true, Shift: true, Key: "a"}},
		{in: "alt+f5", want: Chord{Alt: true, Key: "f5"}},
		{in: "ctrl+9", want: Chord{Ctrl: true, Key: "9"}},
		{in: "space", wantErr: true},
		{in: "ctrl+shift", wantErr: true},
		{in: "ctrl+a+b", wantErr: true},
		{in: "ctrl+", wantErr: true},
		{in: "ctrl+enter", wantErr: true},
		{in: "ctrl+f13", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChord(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChordString(t *testing.T) {
	assert.Equal(t, "ctrl+shift+space", Chord{Ctrl: true, Shift: true, Key: "space"}.String())
	assert.Equal(t, "control and space", Chord{Ctrl: true, Key: "space"}.Spoken())
	assert.Equal(t, "alt and F5", Chord{Alt: true, Key: "f5"}.Spoken())
}

func newTestSocket(t *testing.T) (*Socket, string) {
	t.Helper()
	// Unix socket paths are length limited, so avoid t.TempDir on macOS.
	dir, err := os.MkdirTemp("", "aayu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "ctl.sock")
	s, err := ListenSocket(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSocketBusyWhenNotWaiting(t *testing.T) {
	_, path := newTestSocket(t)

	err := SendCommand(context.Background(), path, CmdTrigger)
	assert.EqualError(t, err, "busy")
}

func TestSocketTrigger(t *testing.T) {
	s, path := newTestSocket(t)

	done := make(chan error, 1)
	go func() { done <- s.Wait(context.Background()) }()

	require.Eventually(t, func() bool {
		return SendCommand(context.Background(), path, CmdTrigger) == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestSocketWaitDropsStaleTrigger(t *testing.T) {
	s, _ := newTestSocket(t)
	// Accepted just as an earlier Wait returned.
	s.pending <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
	assert.Empty(t, s.pending)
}

func TestSocketQuit(t *testing.T) {
	s, path := newTestSocket(t)

	require.NoError(t, SendCommand(context.Background(), path, CmdQuit))
	select {
	case <-s.Quit():
	case <-time.After(time.Second):
		t.Fatal("quit not signalled")
	}
	// A second quit is harmless.
	require.NoError(t, SendCommand(context.Background(), path, CmdQuit))
}

func TestSocketUnknownCommand(t *testing.T) {
	_, path := newTestSocket(t)
	assert.ErrorContains(t, SendCommand(context.Background(), path, "dance"), "unknown command")
}

func TestSocketWaitCancelAndClose(t *testing.T) {
	s, path := newTestSocket(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Wait(context.Background()), ErrClosed)
	assert.NoFileExists(t, path)
	assert.Error(t, SendCommand(context.Background(), path, CmdTrigger))
}
