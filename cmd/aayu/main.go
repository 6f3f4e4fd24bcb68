// Aayu is a push-to-talk desktop voice assistant.
//
// Press the activation chord, say one command in Hindi or English, and Aayu
// opens an app or website, tells the time or date, or runs a web search.
// Common commands are matched by keyword; everything else is classified by a
// local Ollama model.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.design/x/hotkey/mainthread"

	"github.com/agalue/aayu/internal/action"
	"github.com/agalue/aayu/internal/audio"
	"github.com/agalue/aayu/internal/config"
	"github.com/agalue/aayu/internal/hotkey"
	"github.com/agalue/aayu/internal/intent"
	"github.com/agalue/aayu/internal/llm"
	"github.com/agalue/aayu/internal/metrics"
	"github.com/agalue/aayu/internal/notify"
	"github.com/agalue/aayu/internal/session"
	"github.com/agalue/aayu/internal/stt"
	"github.com/agalue/aayu/internal/trigger"
	"github.com/agalue/aayu/internal/tts"
)

func main() {
	// Global hotkeys need the main thread on macOS.
	mainthread.Init(func() {
		if err := run(); err != nil {
			slog.Error("❌ " + err.Error())
			os.Exit(1)
		}
	})
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	switch {
	case cfg.ListVoices:
		config.PrintVoices(os.Stdout)
		return nil
	case cfg.VoiceInfo != "":
		return config.PrintVoiceInfo(os.Stdout, cfg.VoiceInfo)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.TimeOnly}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info("🎤 "+cfg.AssistantName+" starting...", "provider", cfg.Provider, "language", cfg.STTLanguage)
	logger.Info("🔊 TTS voice", "voice", cfg.TTSVoice, "speaker", cfg.TTSSpeakerID, "speed", cfg.TTSSpeed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vocab, err := intent.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return err
	}

	// Brain
	classifier, err := llm.NewClassifier(&llm.Config{
		Host:            cfg.OllamaURL,
		Model:           cfg.OllamaModel,
		AssistantName:   cfg.AssistantName,
		Timeout:         cfg.OllamaTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		Proxy:           cfg.OllamaProxy,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	// Keyword commands still work without Ollama, so this is only a warning.
	healthCtx, cancelHealth := context.WithTimeout(ctx, 5*time.Second)
	if err := classifier.HealthCheck(healthCtx); err != nil {
		logger.Warn("⚠️  Ollama not reachable, only keyword commands will work", "url", cfg.OllamaURL, "error", err)
	} else {
		logger.Info("✅ Ollama connected", "model", cfg.OllamaModel)
	}
	cancelHealth()

	// Ears
	logger.Info("🧠 Loading speech recognition models...")
	decoder, err := stt.NewDecoder(&stt.Config{
		VADModel:           cfg.VADModel,
		VADThreshold:       cfg.VADThreshold,
		VADSilenceDuration: cfg.VADSilenceDuration,
		WhisperEncoder:     cfg.WhisperEncoder,
		WhisperDecoder:     cfg.WhisperDecoder,
		WhisperTokens:      cfg.WhisperTokens,
		SampleRate:         cfg.SampleRate,
		Provider:           cfg.Provider,
		Language:           cfg.STTLanguage,
		VADThreads:         cfg.VADThreads,
		STTThreads:         cfg.STTThreads,
		Verbose:            cfg.Verbose,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create speech decoder: %w", err)
	}
	defer decoder.Close()
	logger.Info("✅ Speech recognition ready")

	// Voice
	logger.Info("🔊 Loading text-to-speech model...")
	synthesizer, err := tts.NewSynthesizer(&tts.Config{
		Model:     cfg.TTSModel,
		Voices:    cfg.TTSVoices,
		Tokens:    cfg.TTSTokens,
		DataDir:   cfg.TTSData,
		Lexicon:   cfg.TTSLexicon,
		Language:  cfg.TTSLanguage,
		SpeakerID: cfg.TTSSpeakerID,
		Speed:     cfg.TTSSpeed,
		Provider:  cfg.Provider,
		Threads:   cfg.TTSThreads,
		Verbose:   cfg.Verbose,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}
	defer synthesizer.Close()

	player, err := audio.NewPlayer(cfg.AudioBufferMs, logger)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	defer player.Close()
	speaker := tts.NewSpeaker(cfg.AssistantName, synthesizer, player, logger)
	logger.Info("✅ Text-to-speech ready")

	// Microphone
	source, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	// Activation
	trig, quit, err := openTrigger(cfg, logger)
	if err != nil {
		return err
	}
	defer trig.Close()
	go func() {
		select {
		case <-quit:
			logger.Info("👋 Quit requested")
			stop()
		case <-ctx.Done():
		}
	}()

	// Hands
	apps := make(map[intent.Target]string, len(cfg.AppCommands))
	for app, command := range cfg.AppCommands {
		apps[intent.Target(app)] = command
	}
	dispatcher := action.NewDispatcher(speaker, action.NewProcessLauncher(apps, logger), action.SystemBrowser{}, action.Options{
		EscapeQuery: cfg.EscapeSearch,
		Logger:      logger,
	})

	deps := session.Deps{
		Trigger:    trig,
		Source:     source,
		Decoder:    decoder,
		Speaker:    speaker,
		Classifier: classifier,
		Dispatcher: dispatcher,
	}
	if cfg.Notify {
		deps.Notifier = notify.Desktop{}
	}
	if cfg.RecordDir != "" {
		deps.Archiver = audio.WavArchiver{Dir: cfg.RecordDir, SampleRate: cfg.SampleRate}
	}
	if cfg.MetricsAddr != "" {
		recorder := metrics.NewRecorder()
		deps.Metrics = recorder
		go func() {
			if err := recorder.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("❌ Metrics server failed", "error", err)
			}
		}()
	}

	loop := session.New(deps, session.Config{
		Name:          cfg.AssistantName,
		ActivateHint:  cfg.ActivateHint(),
		MinConfidence: cfg.MinConfidence,
		Normalizer:    intent.NewNormalizer(vocab.Replacements),
		Matcher:       intent.NewMatcher(vocab.StopPhrases),
		Logger:        logger,
	})

	logger.Info("✅ "+cfg.AssistantName+" ready", "activation", cfg.Activation)
	if err := loop.Run(ctx); err != nil {
		return err
	}
	logger.Info("👋 Goodbye!")
	return nil
}

func openSource(cfg *config.Config, logger *slog.Logger) (audio.Source, error) {
	switch {
	case cfg.AudioFile != "":
		logger.Info("📼 Replaying audio file instead of the microphone", "file", cfg.AudioFile)
		src, err := audio.NewFileSource(cfg.AudioFile, cfg.SampleRate, cfg.FrameSamples)
		if err != nil {
			return nil, fmt.Errorf("failed to load audio file: %w", err)
		}
		return src, nil
	case cfg.AudioBackend == config.BackendPortAudio:
		src, err := audio.NewPortAudioSource(cfg.SampleRate, cfg.FrameSamples)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio source: %w", err)
		}
		return src, nil
	default:
		src, err := audio.NewMalgoSource(cfg.SampleRate, cfg.FrameSamples, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio source: %w", err)
		}
		return src, nil
	}
}

func openTrigger(cfg *config.Config, logger *slog.Logger) (trigger.Trigger, <-chan struct{}, error) {
	if cfg.Activation == config.ActivationSocket {
		sock, err := trigger.ListenSocket(cfg.SocketPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open control socket: %w", err)
		}
		logger.Info("🔌 Control socket ready", "path", cfg.SocketPath)
		return sock, sock.Quit(), nil
	}

	chord, err := trigger.ParseChord(cfg.Chord)
	if err != nil {
		return nil, nil, err
	}
	hk, err := hotkey.Register(chord, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register hotkey: %w", err)
	}
	return hk, nil, nil
}
