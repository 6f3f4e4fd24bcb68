// Package tts speaks assistant replies with a Kokoro voice.
package tts

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/agalue/aayu/internal/audio"
	"github.com/agalue/aayu/internal/sherpa"
)

// Config holds TTS configuration.
type Config struct {
	Model     string // model.onnx
	Voices    string // voices.bin
	Tokens    string // tokens.txt
	DataDir   string // espeak-ng-data directory
	Lexicon   string // optional
	Language  string // espeak code, e.g. "en-us" or "hi"
	SpeakerID int
	Speed     float32
	Provider  string
	Threads   int
	Verbose   bool
	Logger    *slog.Logger
}

// Synthesizer generates audio for a line of text.
type Synthesizer struct {
	mu        sync.Mutex
	tts       *sherpa.OfflineTts
	speakerID int
	speed     float32
	logger    *slog.Logger
}

// NewSynthesizer loads the Kokoro model.
func NewSynthesizer(cfg *Config) (*Synthesizer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 2
	}

	ttsConfig := &sherpa.OfflineTtsConfig{}
	ttsConfig.Model.Kokoro.Model = cfg.Model
	ttsConfig.Model.Kokoro.Voices = cfg.Voices
	ttsConfig.Model.Kokoro.Tokens = cfg.Tokens
	ttsConfig.Model.Kokoro.DataDir = cfg.DataDir
	ttsConfig.Model.Kokoro.Lexicon = cfg.Lexicon
	ttsConfig.Model.Kokoro.Lang = cfg.Language
	ttsConfig.Model.Kokoro.LengthScale = 1.0 / speed
	ttsConfig.Model.NumThreads = threads
	ttsConfig.Model.Provider = cfg.Provider
	ttsConfig.MaxNumSentences = 1
	if cfg.Verbose {
		ttsConfig.Model.Debug = 1
	}

	tts := sherpa.NewOfflineTts(ttsConfig)
	if tts == nil {
		return nil, errors.New("failed to create TTS synthesizer")
	}

	return &Synthesizer{tts: tts, speakerID: cfg.SpeakerID, speed: speed, logger: logger}, nil
}

// Synthesize renders text to mono samples.
func (s *Synthesizer) Synthesize(text string) (audio.AudioBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tts == nil {
		return audio.AudioBuffer{}, errors.New("synthesizer closed")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.AudioBuffer{}, errors.New("empty text")
	}

	generated := s.tts.Generate(text, s.speakerID, s.speed)
	if generated == nil || len(generated.Samples) == 0 {
		return audio.AudioBuffer{}, errors.New("TTS generation failed")
	}

	s.logger.Debug("🎵 Generated speech", "samples", len(generated.Samples), "sample_rate", generated.SampleRate)
	return audio.AudioBuffer{Samples: generated.Samples, SampleRate: int(generated.SampleRate)}, nil
}

// Close releases the model.
func (s *Synthesizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tts != nil {
		sherpa.DeleteOfflineTts(s.tts)
		s.tts = nil
	}
}
