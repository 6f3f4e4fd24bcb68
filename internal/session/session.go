// Package session runs the push-to-talk command cycle: wait for the
// activation trigger, capture one utterance, resolve it to an action and
// dispatch it, then go back to waiting.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agalue/aayu/internal/audio"
	"github.com/agalue/aayu/internal/intent"
	"github.com/agalue/aayu/internal/trigger"
)

// Spoken prompts.
const (
	PromptListening     = "Listening."
	PromptNotSure       = "I am not sure what you meant."
	PromptNotConfident  = "I am not confident about that."
	DefaultActivateHint = "Press control and space to talk."
)

// Decoder turns PCM frames into an utterance transcript.
type Decoder interface {
	Reset()
	AcceptWaveform(pcm []byte) bool
	Result() string
}

// Speaker says a line and blocks until it has been played.
type Speaker interface {
	Speak(text string) error
}

// Classifier is the model-backed intent classifier. It never fails; failures
// come back as results with a non-classified outcome.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Dispatcher performs an action and speaks its confirmation.
type Dispatcher interface {
	Dispatch(a intent.Action)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// Archiver stores the audio heard during a cycle.
type Archiver interface {
	Save(id string, pcm []byte) error
}

// Metrics receives cycle statistics.
type Metrics interface {
	CycleEnded(outcome string)
	ActionDispatched(kind, path string)
	Classified(outcome string, elapsed time.Duration)
	StreamOpened()
	StreamClosed()
	EmptyTranscript()
}

// Outcome is how a command cycle ended.
type Outcome int

const (
	// StopRequested: a stop phrase was heard.
	StopRequested Outcome = iota
	// FastMatched: a keyword command was dispatched without the classifier.
	FastMatched
	// Rejected: the classifier failed or its answer did not pass validation.
	Rejected
	// Dispatched: a classifier answer was accepted and dispatched.
	Dispatched
	// Aborted: the cycle ended on a capture error or cancellation.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case StopRequested:
		return "stop_requested"
	case FastMatched:
		return "fast_matched"
	case Rejected:
		return "rejected"
	case Dispatched:
		return "dispatched"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Deps are the collaborators a Loop drives. Notifier, Archiver and Metrics
// are optional.
type Deps struct {
	Trigger    trigger.Trigger
	Source     audio.Source
	Decoder    Decoder
	Speaker    Speaker
	Classifier Classifier
	Dispatcher Dispatcher
	Notifier   Notifier
	Archiver   Archiver
	Metrics    Metrics
}

// Config tunes a Loop.
type Config struct {
	Name          string // assistant name used in the greeting
	ActivateHint  string // spoken after the name at startup
	MinConfidence float64
	Normalizer    *intent.Normalizer
	Matcher       *intent.Matcher
	Logger        *slog.Logger
}

// Loop owns one assistant session. It is single threaded: Run processes one
// activation at a time and never listens for a second command per activation.
type Loop struct {
	Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a Loop, filling unset config with defaults.
func New(deps Deps, cfg Config) *Loop {
	if cfg.Name == "" {
		cfg.Name = "Aayu"
	}
	if cfg.ActivateHint == "" {
		cfg.ActivateHint = DefaultActivateHint
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = intent.DefaultMinConfidence
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = intent.NewNormalizer(intent.DefaultReplacements)
	}
	if cfg.Matcher == nil {
		cfg.Matcher = intent.NewMatcher(intent.DefaultStopPhrases)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{Deps: deps, cfg: cfg, logger: cfg.Logger}
}

// Run greets the user and serves activations until ctx is cancelled or the
// trigger is closed. Cycle errors are logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.say(fmt.Sprintf("%s ready. %s", l.cfg.Name, l.cfg.ActivateHint))

	for {
		if err := l.Trigger.Wait(ctx); err != nil {
			if errors.Is(err, trigger.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for activation: %w", err)
		}

		outcome, err := l.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("❌ Command cycle failed", "error", err)
		}
		l.logger.Debug("Cycle finished", "outcome", outcome.String())
	}
}

// RunCycle handles one activation. The capture stream is opened once and
// closed exactly once whichever way the cycle ends.
func (l *Loop) RunCycle(ctx context.Context) (outcome Outcome, err error) {
	id := uuid.NewString()
	logger := l.logger.With("cycle", id[:8])
	defer func() {
		if l.Metrics != nil {
			l.Metrics.CycleEnded(outcome.String())
		}
	}()

	l.say(PromptListening)
	l.notify("Listening…")

	stream, err := l.Source.Open()
	if err != nil {
		return Aborted, fmt.Errorf("open capture stream: %w", err)
	}
	if l.Metrics != nil {
		l.Metrics.StreamOpened()
	}

	var heard *bytes.Buffer
	if l.Archiver != nil {
		heard = &bytes.Buffer{}
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			logger.Warn("⚠️  Failed to close capture stream", "error", cerr)
		}
		if l.Metrics != nil {
			l.Metrics.StreamClosed()
		}
		if heard != nil && heard.Len() > 0 {
			if aerr := l.Archiver.Save(id, heard.Bytes()); aerr != nil {
				logger.Warn("⚠️  Failed to archive audio", "error", aerr)
			}
		}
	}()

	l.Decoder.Reset()
	logger.Info("🎧 Listening")

	text, err := l.listen(ctx, stream, heard, logger)
	if err != nil {
		return Aborted, err
	}

	if action, ok := l.cfg.Matcher.Match(text); ok {
		logger.Info("⚡ Fast path", "action", action.String())
		l.Dispatcher.Dispatch(action)
		if action.Intent == intent.Stop {
			return StopRequested, nil
		}
		l.countAction(action, "fast")
		return FastMatched, nil
	}

	start := time.Now()
	res := l.Classifier.Classify(ctx, text)
	if err := ctx.Err(); err != nil {
		return Aborted, err
	}
	if l.Metrics != nil {
		l.Metrics.Classified(res.Outcome.String(), time.Since(start))
	}
	logger.Info("🧠 Brain",
		"intent", res.Intent, "target", res.Target, "confidence", res.Confidence,
		"outcome", res.Outcome.String(), "elapsed", time.Since(start).Round(time.Millisecond))
	if res.Err != nil {
		logger.Warn("⚠️  Brain error", "outcome", res.Outcome.String(), "error", res.Err)
	}

	switch intent.Validate(res, l.cfg.MinConfidence) {
	case intent.Unsure:
		l.say(PromptNotSure)
		return Rejected, nil
	case intent.LowConfidence:
		l.say(PromptNotConfident)
		return Rejected, nil
	}

	action := res.Action()
	l.Dispatcher.Dispatch(action)
	l.countAction(action, "model")
	return Dispatched, nil
}

// listen reads frames until the decoder finalizes a non-empty transcript and
// returns it normalized. Partial results are never looked at.
func (l *Loop) listen(ctx context.Context, stream audio.Stream, heard *bytes.Buffer, logger *slog.Logger) (string, error) {
	for {
		frame, err := stream.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("read capture stream: %w", err)
		}
		if heard != nil {
			heard.Write(frame)
		}
		if !l.Decoder.AcceptWaveform(frame) {
			continue
		}

		raw := intent.PrepareTranscript(l.Decoder.Result())
		text := l.cfg.Normalizer.Normalize(raw)
		if text == "" {
			if l.Metrics != nil {
				l.Metrics.EmptyTranscript()
			}
			continue
		}

		logger.Info("🗣️  You: "+raw, "normalized", text)
		return text, nil
	}
}

func (l *Loop) say(text string) {
	if err := l.Speaker.Speak(text); err != nil {
		l.logger.Error("❌ Speech failed", "error", err)
	}
}

func (l *Loop) notify(message string) {
	if l.Notifier == nil {
		return
	}
	if err := l.Notifier.Notify(l.cfg.Name, message); err != nil {
		l.logger.Debug("Notification failed", "error", err)
	}
}

func (l *Loop) countAction(a intent.Action, path string) {
	if l.Metrics != nil {
		l.Metrics.ActionDispatched(string(a.Intent), path)
	}
}
