// Package llm classifies utterances into intents with a local Ollama model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/proxy"

	"github.com/agalue/aayu/internal/intent"
)

// DefaultTimeout bounds a single classification request.
const DefaultTimeout = 30 * time.Second

// Classifier asks an Ollama model for the intent of an utterance.
type Classifier struct {
	client    *api.Client // Official Ollama Go client
	model     string      // Model name (e.g., "tinyllama")
	assistant string      // Assistant name used in the prompt
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker[intent.Result]
	logger    *slog.Logger
}

// Config holds classifier configuration.
type Config struct {
	Host          string // Ollama base URL; a trailing /api/generate is accepted
	Model         string
	AssistantName string
	Timeout       time.Duration
	// BreakerFailures is the number of consecutive transport failures that
	// opens the circuit. Zero disables the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open before a probe.
	BreakerCooldown time.Duration
	// Proxy is an optional SOCKS5 address (host:port) used to reach a remote Ollama.
	Proxy  string
	Logger *slog.Logger
}

// NewClassifier creates a classifier for the Ollama server at cfg.Host.
func NewClassifier(cfg *Config) (*Classifier, error) {
	host := strings.TrimSuffix(strings.TrimSpace(cfg.Host), "/")
	host = strings.TrimSuffix(host, "/api/generate")
	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid host URL %q: scheme and host are required", cfg.Host)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// One request at a time; the pool only saves the TCP handshake between commands.
	transport := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Proxy, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid SOCKS5 proxy %q: %w", cfg.Proxy, err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		logger.Debug("🧦 Using SOCKS5 proxy for Ollama", "proxy", cfg.Proxy)
	}
	httpClient := &http.Client{Timeout: timeout, Transport: objectResponseTransport{next: transport}}

	c := &Classifier{
		client:    api.NewClient(parsedURL, httpClient),
		model:     cfg.Model,
		assistant: cfg.AssistantName,
		timeout:   timeout,
		logger:    logger,
	}

	if cfg.BreakerFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker[intent.Result](gobreaker.Settings{
			Name:        "ollama",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// Only transport failures say anything about the server's health.
				// A caller that gave up (shutdown) is not one of them.
				return !errors.Is(err, errTransport)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("🔌 Brain circuit changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return c, nil
}

var (
	errTransport = errors.New("transport")
	errParse     = errors.New("parse")
)

// Classify sends text to the model and returns its answer.
// It never returns an error: failures come back as intent.Failure results.
func (c *Classifier) Classify(ctx context.Context, text string) intent.Result {
	if c.breaker == nil {
		res, _ := c.classify(ctx, text)
		return res
	}

	res, err := c.breaker.Execute(func() (intent.Result, error) {
		return c.classify(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return intent.Failure(intent.OutcomeUnavailable, err)
	}
	return res
}

func (c *Classifier) classify(parent context.Context, text string) (intent.Result, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	stream := false
	var response api.GenerateResponse
	err := c.client.Generate(ctx, &api.GenerateRequest{
		Model:  c.model,
		Prompt: BuildPrompt(c.assistant, text),
		Format: json.RawMessage(`"json"`),
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		res := intent.Failure(intent.OutcomeTransportError, fmt.Errorf("generate request failed: %w", err))
		if parent.Err() != nil {
			return res, err
		}
		return res, fmt.Errorf("%w: %w", errTransport, err)
	}

	res, err := ParseAnswer(response.Response)
	if err != nil {
		res := intent.Failure(intent.OutcomeParseError, err)
		return res, fmt.Errorf("%w: %w", errParse, err)
	}
	return res, nil
}

// objectResponseTransport lets a generate reply carry "response" as a JSON
// object. The ollama client only decodes the string form, so an object is
// re-encoded as its JSON text before the client sees it.
type objectResponseTransport struct {
	next http.RoundTripper
}

func (t objectResponseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK || !strings.HasSuffix(req.URL.Path, "/api/generate") {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}
	body = flattenResponse(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Del("Content-Length")
	return resp, nil
}

// flattenResponse turns {"response": {...}} into {"response": "{...}"}.
// Anything else, including streamed replies, is returned untouched.
func flattenResponse(body []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	raw, ok := fields["response"]
	if !ok || len(raw) == 0 || raw[0] != '{' {
		return body
	}
	text, err := json.Marshal(string(raw))
	if err != nil {
		return body
	}
	fields["response"] = text
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return append(out, '\n')
}

// HealthCheck verifies the Ollama server is reachable.
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("cannot reach Ollama: %w", err)
	}
	return nil
}

type answer struct {
	Intent     string          `json:"intent"`
	Target     *string         `json:"target"`
	Confidence json.RawMessage `json:"confidence"`
}

// ParseAnswer decodes the model's "response" text into a classification result.
// The text must hold a JSON object with an "intent" key. A missing target is
// empty; a missing or unreadable confidence is zero.
func ParseAnswer(raw string) (intent.Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return intent.Result{}, errors.New("empty model response")
	}

	var a answer
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return intent.Result{}, fmt.Errorf("unmarshal model response: %w (raw: %s)", err, raw)
	}
	if a.Intent == "" {
		return intent.Result{}, fmt.Errorf("model response has no intent (raw: %s)", raw)
	}

	res := intent.Result{
		Intent:     intent.Intent(strings.TrimSpace(a.Intent)),
		Confidence: parseConfidence(a.Confidence),
		Outcome:    intent.OutcomeClassified,
	}
	if a.Target != nil {
		res.Target = intent.Target(strings.TrimSpace(*a.Target))
	}
	return res, nil
}

// parseConfidence accepts a JSON number or a numeric string.
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}
