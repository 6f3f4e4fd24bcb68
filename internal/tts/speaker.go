package tts

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agalue/aayu/internal/audio"
)

// Engine renders text to audio.
type Engine interface {
	Synthesize(text string) (audio.AudioBuffer, error)
}

// Output plays a buffer, returning once it has been heard.
type Output interface {
	Play(buffer audio.AudioBuffer) error
}

// Speaker says one line at a time and blocks until playback finishes, so the
// microphone never picks up the assistant's own voice.
type Speaker struct {
	name   string
	engine Engine
	output Output
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSpeaker returns a speaker that logs replies under the assistant's name.
func NewSpeaker(name string, engine Engine, output Output, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{name: name, engine: engine, output: output, logger: logger}
}

// Speak synthesizes text and plays it. Blank text is a no-op.
func (s *Speaker) Speak(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(fmt.Sprintf("🗣️  %s: %s", s.name, text))

	buf, err := s.engine.Synthesize(text)
	if err != nil {
		return fmt.Errorf("synthesize %q: %w", text, err)
	}
	if err := s.output.Play(buf); err != nil {
		return fmt.Errorf("play %q: %w", text, err)
	}
	return nil
}
