// Package stt turns a stream of PCM frames into utterance transcripts using
// a Silero VAD to find the end of speech and Whisper to transcribe it.
package stt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agalue/aayu/internal/audio"
	"github.com/agalue/aayu/internal/sherpa"
)

// VAD tuning.
const (
	// VADMinSpeechDuration lets one-word commands like "stop" through.
	VADMinSpeechDuration = 0.1

	// VADMaxSpeechDuration forces a segment boundary on long speech.
	VADMaxSpeechDuration = 15.0

	// VADWindowSize is the Silero window (32ms at 16kHz).
	VADWindowSize = 512

	// VADBufferSize is how many seconds of audio the detector may hold.
	VADBufferSize = 30.0
)

// Config holds decoder configuration.
type Config struct {
	VADModel           string
	VADThreshold       float32
	VADSilenceDuration float32 // seconds of silence that end an utterance
	WhisperEncoder     string
	WhisperDecoder     string
	WhisperTokens      string
	SampleRate         int
	Provider           string
	Language           string // "hi", "en" or "auto"
	VADThreads         int
	STTThreads         int
	Verbose            bool
	Logger             *slog.Logger
}

// voiceDetector is the subset of the sherpa VAD the decoder drives.
type voiceDetector interface {
	AcceptWaveform(samples []float32)
	IsSpeech() bool
	IsEmpty() bool
	Front() *sherpa.SpeechSegment
	Pop()
	Clear()
}

// Decoder accepts PCM frames one at a time and reports when an utterance is
// complete. It is not safe for use by more than one session at a time.
type Decoder struct {
	vad        voiceDetector
	transcribe func(samples []float32) (string, error)
	release    func()
	sampleRate int
	logger     *slog.Logger

	mu          sync.Mutex
	window      []float32 // samples not yet fed to the VAD
	segment     []float32 // completed speech waiting for Result
	speaking    bool
	speechStart time.Time
}

// NewDecoder loads the VAD and Whisper models.
func NewDecoder(cfg *Config) (*Decoder, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debug := 0
	if cfg.Verbose {
		debug = 1
	}

	vadConfig := &sherpa.VadModelConfig{}
	vadConfig.SileroVad.Model = cfg.VADModel
	vadConfig.SileroVad.Threshold = cfg.VADThreshold
	vadConfig.SileroVad.MinSilenceDuration = cfg.VADSilenceDuration
	vadConfig.SileroVad.MinSpeechDuration = VADMinSpeechDuration
	vadConfig.SileroVad.MaxSpeechDuration = VADMaxSpeechDuration
	vadConfig.SileroVad.WindowSize = VADWindowSize
	vadConfig.SampleRate = cfg.SampleRate
	vadConfig.NumThreads = cfg.VADThreads
	vadConfig.Debug = debug

	vad := sherpa.NewVoiceActivityDetector(vadConfig, VADBufferSize)
	if vad == nil {
		return nil, errors.New("failed to create VAD")
	}

	language := cfg.Language
	if strings.EqualFold(language, "auto") {
		language = ""
	}

	recConfig := &sherpa.OfflineRecognizerConfig{}
	recConfig.ModelConfig.Whisper.Encoder = cfg.WhisperEncoder
	recConfig.ModelConfig.Whisper.Decoder = cfg.WhisperDecoder
	recConfig.ModelConfig.Whisper.Language = language
	recConfig.ModelConfig.Whisper.Task = "transcribe"
	recConfig.ModelConfig.Whisper.TailPaddings = -1
	recConfig.ModelConfig.Tokens = cfg.WhisperTokens
	recConfig.ModelConfig.NumThreads = cfg.STTThreads
	recConfig.ModelConfig.Provider = cfg.Provider
	recConfig.ModelConfig.Debug = debug
	recConfig.DecodingMethod = "greedy_search"

	recognizer := sherpa.NewOfflineRecognizer(recConfig)
	if recognizer == nil {
		sherpa.DeleteVoiceActivityDetector(vad)
		return nil, errors.New("failed to create offline recognizer")
	}

	sampleRate := cfg.SampleRate
	return &Decoder{
		vad:        vad,
		sampleRate: sampleRate,
		logger:     logger,
		transcribe: func(samples []float32) (string, error) {
			stream := sherpa.NewOfflineStream(recognizer)
			if stream == nil {
				return "", errors.New("failed to create offline stream")
			}
			defer sherpa.DeleteOfflineStream(stream)

			stream.AcceptWaveform(sampleRate, samples)
			recognizer.Decode(stream)
			return stream.GetResult().Text, nil
		},
		release: func() {
			sherpa.DeleteVoiceActivityDetector(vad)
			sherpa.DeleteOfflineRecognizer(recognizer)
		},
	}, nil
}

// Reset discards buffered audio and detector state before a new activation.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.vad.Clear()
	d.window = d.window[:0]
	d.segment = d.segment[:0]
	d.speaking = false
}

// AcceptWaveform feeds one frame of little-endian PCM16 audio. It returns
// true once the detector has closed an utterance; Result then yields its text.
func (d *Decoder) AcceptWaveform(pcm []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.window = append(d.window, audio.PCM16ToFloat32(pcm)...)

	fed := 0
	for ; fed+VADWindowSize <= len(d.window); fed += VADWindowSize {
		d.vad.AcceptWaveform(d.window[fed : fed+VADWindowSize])
		d.trackSpeech()

		for !d.vad.IsEmpty() {
			if seg := d.vad.Front(); seg != nil {
				d.segment = append(d.segment, seg.Samples...)
			}
			d.vad.Pop()
		}
	}
	d.window = append(d.window[:0], d.window[fed:]...)

	return len(d.segment) > 0
}

func (d *Decoder) trackSpeech() {
	speaking := d.vad.IsSpeech()
	switch {
	case speaking && !d.speaking:
		d.speechStart = time.Now()
		d.logger.Debug("🎤 Speech started")
	case !speaking && d.speaking:
		d.logger.Debug("🎤 Speech ended", "duration", time.Since(d.speechStart).Round(100*time.Millisecond))
	}
	d.speaking = speaking
}

// Result transcribes the completed utterance and clears it. An empty string
// means nothing intelligible was heard.
func (d *Decoder) Result() string {
	d.mu.Lock()
	samples := d.segment
	d.segment = nil
	d.mu.Unlock()

	if len(samples) == 0 {
		return ""
	}

	d.logger.Debug("[STT] Transcribing segment", "seconds", fmt.Sprintf("%.2f", float64(len(samples))/float64(d.sampleRate)))

	text, err := d.transcribe(samples)
	if err != nil {
		d.logger.Error("❌ Transcription failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Close releases the models.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release != nil {
		d.release()
		d.release = nil
	}
}
