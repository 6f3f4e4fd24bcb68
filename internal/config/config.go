// Package config loads assistant settings from defaults, an optional .env
// file, AAYU_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/agalue/aayu/internal/sherpa"
	"github.com/agalue/aayu/internal/trigger"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AAYU_"

// Activation modes.
const (
	ActivationHotkey = "hotkey"
	ActivationSocket = "socket"
)

// Audio backends.
const (
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
)

// Config holds all settings of the assistant.
type Config struct {
	AssistantName string `env:"NAME"`

	// Models
	ModelDir     string `env:"MODEL_DIR"`
	WhisperModel string `env:"WHISPER_MODEL"` // tiny, base, small...
	Provider     string `env:"PROVIDER"`      // cpu, cuda, coreml or auto
	NumThreads   int    `env:"NUM_THREADS"`
	VADThreads   int    `env:"VAD_THREADS"`
	STTThreads   int    `env:"STT_THREADS"`
	TTSThreads   int    `env:"TTS_THREADS"`

	// Speech recognition
	STTLanguage        string  `env:"STT_LANGUAGE"`
	VADThreshold       float32 `env:"VAD_THRESHOLD"`
	VADSilenceDuration float32 `env:"VAD_SILENCE_DURATION"`
	VocabularyFile     string  `env:"VOCABULARY_FILE"`

	// Speech synthesis
	TTSVoice string  `env:"TTS_VOICE"`
	TTSSpeed float32 `env:"TTS_SPEED"`

	// Audio
	AudioBackend  string `env:"AUDIO_BACKEND"`
	AudioFile     string `env:"AUDIO_FILE"` // replay a WAV instead of the microphone
	SampleRate    int    `env:"SAMPLE_RATE"`
	FrameSamples  int    `env:"FRAME_SAMPLES"`
	AudioBufferMs uint32 `env:"AUDIO_BUFFER_MS"`
	RecordDir     string `env:"RECORD_DIR"`

	// Brain
	OllamaURL       string        `env:"OLLAMA_URL"`
	OllamaModel     string        `env:"OLLAMA_MODEL"`
	OllamaTimeout   time.Duration `env:"OLLAMA_TIMEOUT"`
	OllamaProxy     string        `env:"OLLAMA_PROXY"`
	MinConfidence   float64       `env:"MIN_CONFIDENCE"`
	BreakerFailures uint32        `env:"BREAKER_FAILURES"`
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN"`

	// Activation
	Activation string `env:"ACTIVATION"`
	Chord      string `env:"CHORD"`
	SocketPath string `env:"SOCKET"`

	// Actions
	AppCommands  map[string]string `env:"APP_COMMANDS"`
	EscapeSearch bool              `env:"ESCAPE_SEARCH"`

	// Extras
	Notify      bool   `env:"NOTIFY"`
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL"`
	Verbose     bool   `env:"VERBOSE"`

	// One-shot commands, flags only.
	ListVoices bool
	VoiceInfo  string

	// Derived in resolve.
	VADModel       string
	WhisperEncoder string
	WhisperDecoder string
	WhisperTokens  string
	TTSModel       string
	TTSVoices      string
	TTSTokens      string
	TTSData        string
	TTSLexicon     string
	TTSLanguage    string
	TTSSpeakerID   int
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		AssistantName:      "Aayu",
		ModelDir:           filepath.Join(home, ".aayu", "models"),
		WhisperModel:       "small",
		Provider:           "auto",
		STTLanguage:        "hi",
		VADThreshold:       0.5,
		VADSilenceDuration: 0.8,
		TTSVoice:           "af_bella",
		TTSSpeed:           0.85,
		AudioBackend:       BackendMalgo,
		SampleRate:         16000,
		FrameSamples:       4000,
		OllamaURL:          "http://localhost:11434/api/generate",
		OllamaModel:        "tinyllama",
		OllamaTimeout:      30 * time.Second,
		MinConfidence:      0.5,
		BreakerFailures:    3,
		BreakerCooldown:    30 * time.Second,
		Activation:         ActivationHotkey,
		Chord:              "ctrl+space",
		SocketPath:         trigger.DefaultSocketPath(),
		LogLevel:           "info",
	}
}

// Load builds the configuration for args (without the program name).
// It returns pflag.ErrHelp when help was requested.
func Load(args []string) (*Config, error) {
	envFile := ".env"
	pre := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	pre.StringVar(&envFile, "env-file", envFile, "")
	_ = pre.Parse(args)

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := DefaultConfig()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	flags := cfg.flagSet(&envFile)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg.resolve()
	return cfg, nil
}

func (c *Config) flagSet(envFile *string) *pflag.FlagSet {
	f := pflag.NewFlagSet("aayu", pflag.ContinueOnError)
	f.SortFlags = false

	f.StringVar(envFile, "env-file", *envFile, "Env file with AAYU_* variables")
	f.StringVar(&c.AssistantName, "name", c.AssistantName, "Assistant name used in greetings and the prompt")

	f.StringVar(&c.ModelDir, "model-dir", c.ModelDir, "Directory containing the VAD, Whisper and Kokoro models")
	f.StringVar(&c.WhisperModel, "whisper-model", c.WhisperModel, "Whisper model size (tiny, base, small, medium)")
	f.StringVar(&c.Provider, "provider", c.Provider, "Execution provider (cpu, cuda, coreml, auto)")
	f.IntVar(&c.NumThreads, "num-threads", c.NumThreads, "Threads for all models (0 = cores/3)")
	f.IntVar(&c.VADThreads, "vad-threads", c.VADThreads, "VAD threads (0 = 1)")
	f.IntVar(&c.STTThreads, "stt-threads", c.STTThreads, "Whisper threads (0 = num-threads)")
	f.IntVar(&c.TTSThreads, "tts-threads", c.TTSThreads, "Kokoro threads (0 = num-threads)")

	f.StringVar(&c.STTLanguage, "stt-language", c.STTLanguage, "Recognition language (hi, en, auto)")
	f.Float32Var(&c.VADThreshold, "vad-threshold", c.VADThreshold, "Voice activity threshold (0.0-1.0)")
	f.Float32Var(&c.VADSilenceDuration, "vad-silence-duration", c.VADSilenceDuration, "Seconds of silence that end an utterance")
	f.StringVar(&c.VocabularyFile, "vocabulary", c.VocabularyFile, "YAML file with extra replacements and stop phrases")

	f.StringVar(&c.TTSVoice, "tts-voice", c.TTSVoice, "Kokoro voice (see --list-voices)")
	f.Float32Var(&c.TTSSpeed, "tts-speed", c.TTSSpeed, "Speech rate multiplier")

	f.StringVar(&c.AudioBackend, "audio-backend", c.AudioBackend, "Capture backend (malgo, portaudio)")
	f.StringVar(&c.AudioFile, "audio-file", c.AudioFile, "Replay this WAV file instead of the microphone")
	f.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "Capture sample rate in Hz")
	f.IntVar(&c.FrameSamples, "frame-samples", c.FrameSamples, "Samples per capture read")
	f.Uint32Var(&c.AudioBufferMs, "audio-buffer-ms", c.AudioBufferMs, "Playback buffer in ms (0 = 100ms for Bluetooth, 20 for wired)")
	f.StringVar(&c.RecordDir, "record-dir", c.RecordDir, "Save the audio of every activation as WAV here")

	f.StringVar(&c.OllamaURL, "ollama-url", c.OllamaURL, "Ollama URL")
	f.StringVar(&c.OllamaModel, "ollama-model", c.OllamaModel, "Ollama model used to classify commands")
	f.DurationVar(&c.OllamaTimeout, "ollama-timeout", c.OllamaTimeout, "Classification request timeout")
	f.StringVar(&c.OllamaProxy, "ollama-proxy", c.OllamaProxy, "SOCKS5 proxy (host:port) for a remote Ollama")
	f.Float64Var(&c.MinConfidence, "min-confidence", c.MinConfidence, "Reject model answers below this confidence")
	f.Uint32Var(&c.BreakerFailures, "breaker-failures", c.BreakerFailures, "Consecutive Ollama failures that pause classification (0 = off)")
	f.DurationVar(&c.BreakerCooldown, "breaker-cooldown", c.BreakerCooldown, "How long classification stays paused")

	f.StringVar(&c.Activation, "activation", c.Activation, "Activation source (hotkey, socket)")
	f.StringVar(&c.Chord, "chord", c.Chord, "Global hotkey chord")
	f.StringVar(&c.SocketPath, "socket", c.SocketPath, "Control socket path used by aayuctl")

	f.StringToStringVar(&c.AppCommands, "app-command", c.AppCommands, "Command per app, e.g. notepad=gedit,calculator=kcalc")
	f.BoolVar(&c.EscapeSearch, "escape-search", c.EscapeSearch, "Percent-encode search queries")

	f.BoolVar(&c.Notify, "notify", c.Notify, "Show a desktop notification when listening")
	f.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")
	f.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	f.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Verbose logging, including model internals")

	f.BoolVar(&c.ListVoices, "list-voices", false, "List TTS voices and exit")
	f.StringVar(&c.VoiceInfo, "voice-info", "", "Show one TTS voice and exit")
	return f
}

// resolve fills derived settings.
func (c *Config) resolve() {
	c.Provider = sherpa.ResolveProvider(c.Provider)

	if c.NumThreads <= 0 {
		c.NumThreads = max(1, runtime.NumCPU()/3)
	}
	if c.VADThreads <= 0 {
		c.VADThreads = 1
	}
	if c.STTThreads <= 0 {
		c.STTThreads = c.NumThreads
	}
	if c.TTSThreads <= 0 {
		c.TTSThreads = c.NumThreads
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}

	c.VADModel = filepath.Join(c.ModelDir, "silero_vad.onnx")
	whisperDir := filepath.Join(c.ModelDir, "whisper")
	c.WhisperEncoder = filepath.Join(whisperDir, fmt.Sprintf("whisper-%s-encoder.int8.onnx", c.WhisperModel))
	c.WhisperDecoder = filepath.Join(whisperDir, fmt.Sprintf("whisper-%s-decoder.int8.onnx", c.WhisperModel))
	c.WhisperTokens = filepath.Join(whisperDir, fmt.Sprintf("whisper-%s-tokens.txt", c.WhisperModel))

	ttsDir := filepath.Join(c.ModelDir, "tts", "kokoro-multi-lang-v1_0")
	c.TTSModel = filepath.Join(ttsDir, "model.onnx")
	c.TTSVoices = filepath.Join(ttsDir, "voices.bin")
	c.TTSTokens = filepath.Join(ttsDir, "tokens.txt")
	c.TTSData = filepath.Join(ttsDir, "espeak-ng-data")

	// An unknown voice is reported by Validate.
	if v, err := LookupVoice(c.TTSVoice); err == nil {
		c.TTSSpeakerID = v.SpeakerID
		c.TTSLexicon = voiceLexicon(ttsDir, v)
		c.TTSLanguage = voiceLanguage(v)
	}
}

// Validate checks settings and that the model files exist.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.AssistantName) != "", "name must not be empty")
	check(c.SampleRate > 0, "sample-rate must be positive, got %d", c.SampleRate)
	check(c.FrameSamples > 0, "frame-samples must be positive, got %d", c.FrameSamples)
	check(c.VADThreshold > 0 && c.VADThreshold < 1, "vad-threshold must be in (0, 1), got %v", c.VADThreshold)
	check(c.VADSilenceDuration > 0, "vad-silence-duration must be positive")
	check(c.TTSSpeed > 0, "tts-speed must be positive, got %v", c.TTSSpeed)
	check(c.MinConfidence > 0 && c.MinConfidence <= 1, "min-confidence must be in (0, 1], got %v", c.MinConfidence)
	check(c.OllamaTimeout > 0, "ollama-timeout must be positive")
	check(c.AudioBackend == BackendMalgo || c.AudioBackend == BackendPortAudio,
		"audio-backend must be %q or %q, got %q", BackendMalgo, BackendPortAudio, c.AudioBackend)

	if _, err := LookupVoice(c.TTSVoice); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if u, err := url.Parse(c.OllamaURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ollama-url %q must be an absolute URL", c.OllamaURL))
	}

	switch c.Activation {
	case ActivationHotkey:
		if _, err := trigger.ParseChord(c.Chord); err != nil {
			errs = append(errs, err)
		}
	case ActivationSocket:
		check(c.SocketPath != "", "socket must not be empty")
	default:
		errs = append(errs, fmt.Errorf("activation must be %q or %q, got %q", ActivationHotkey, ActivationSocket, c.Activation))
	}

	for app := range c.AppCommands {
		check(app == "notepad" || app == "calculator", "app-command: unknown app %q", app)
	}

	for _, path := range []string{
		c.VADModel, c.WhisperEncoder, c.WhisperDecoder, c.WhisperTokens,
		c.TTSModel, c.TTSVoices, c.TTSTokens,
	} {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("required model file not found: %s (download the sherpa-onnx models into --model-dir %s)", path, c.ModelDir))
		}
	}
	if c.AudioFile != "" {
		if _, err := os.Stat(c.AudioFile); err != nil {
			errs = append(errs, fmt.Errorf("audio-file: %w", err))
		}
	}
	if c.VocabularyFile != "" {
		if _, err := os.Stat(c.VocabularyFile); err != nil {
			errs = append(errs, fmt.Errorf("vocabulary: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ActivateHint is the spoken instruction appended to the startup greeting.
func (c *Config) ActivateHint() string {
	if c.Activation == ActivationSocket {
		return "Run aayuctl to talk."
	}
	chord, err := trigger.ParseChord(c.Chord)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Press %s to talk.", chord.Spoken())
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
