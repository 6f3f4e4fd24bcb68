package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/aayu/internal/intent"
)

type generateBody struct {
	Model  string          `json:"model"`
	Prompt string          `json:"prompt"`
	Format json.RawMessage `json:"format"`
	Stream *bool           `json:"stream"`
}

func fakeOllama(t *testing.T, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body generateBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tinyllama", body.Model)
		assert.JSONEq(t, `"json"`, string(body.Format))
		if assert.NotNil(t, body.Stream) {
			assert.False(t, *body.Stream)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    body.Model,
			"response": answer,
			"done":     true,
		})
	}))
}

func newTestClassifier(t *testing.T, host string, mutate func(*Config)) *Classifier {
	t.Helper()
	cfg := &Config{
		Host:          host,
		Model:         "tinyllama",
		AssistantName: "Aayu",
		Timeout:       2 * time.Second,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(cfg)
	}
	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	return c
}

func TestClassifySearch(t *testing.T) {
	srv := fakeOllama(t, `{"intent":"search","target":"rust programming","confidence":0.8}`, nil)
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, nil)
	res := c.Classify(context.Background(), "search for rust programming")

	require.False(t, res.Failed(), "unexpected failure: %v", res.Err)
	assert.Equal(t, intent.Search, res.Intent)
	assert.Equal(t, intent.Target("rust programming"), res.Target)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, intent.Accepted, intent.Validate(res, intent.DefaultMinConfidence))
}

func TestClassifyAcceptsGenerateURL(t *testing.T) {
	srv := fakeOllama(t, `{"intent":"get_date","target":"","confidence":0.9}`, nil)
	defer srv.Close()

	c := newTestClassifier(t, srv.URL+"/api/generate", nil)
	res := c.Classify(context.Background(), "what day is it")
	require.False(t, res.Failed())
	assert.Equal(t, intent.GetDate, res.Intent)
}

func TestClassifyObjectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"tinyllama","response":{"intent":"search","target":"rust programming","confidence":0.8},"done":true}`))
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, func(cfg *Config) { cfg.BreakerFailures = 1 })
	res := c.Classify(context.Background(), "search for rust programming")

	require.False(t, res.Failed(), "unexpected failure: %v", res.Err)
	assert.Equal(t, intent.Search, res.Intent)
	assert.Equal(t, intent.Target("rust programming"), res.Target)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestFlattenResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "object",
			body: `{"done":true,"response":{"intent":"none"}}`,
			want: `{"done":true,"response":"{\"intent\":\"none\"}"}` + "\n",
		},
		{name: "string", body: `{"response":"{\"intent\":\"none\"}"}`},
		{name: "no response", body: `{"done":true}`},
		{name: "not json", body: "oops"},
		{name: "stream", body: "{\"response\":\"a\"}\n{\"response\":\"b\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if want == "" {
				want = tt.body
			}
			assert.Equal(t, want, string(flattenResponse([]byte(tt.body))))
		})
	}
}

func TestClassifyMalformedResponse(t *testing.T) {
	srv := fakeOllama(t, "I think you want notepad", nil)
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, nil)
	res := c.Classify(context.Background(), "something")

	assert.Equal(t, intent.OutcomeParseError, res.Outcome)
	assert.Equal(t, intent.None, res.Intent)
	assert.Equal(t, intent.NoTarget, res.Target)
	assert.Zero(t, res.Confidence)
	assert.Error(t, res.Err)
}

func TestClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	res := c.Classify(context.Background(), "search for rust")
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, intent.OutcomeTransportError, res.Outcome)
	assert.Equal(t, intent.None, res.Intent)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, intent.Unsure, intent.Validate(res, intent.DefaultMinConfidence))
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'tinyllama' not found"}`))
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, nil)
	res := c.Classify(context.Background(), "hello")
	assert.Equal(t, intent.OutcomeTransportError, res.Outcome)
	assert.Error(t, res.Err)
}

func TestClassifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	c := newTestClassifier(t, host, nil)
	res := c.Classify(context.Background(), "hello")
	assert.Equal(t, intent.OutcomeTransportError, res.Outcome)
}

func TestClassifyBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerCooldown = time.Minute
	})

	ctx := context.Background()
	assert.Equal(t, intent.OutcomeTransportError, c.Classify(ctx, "a").Outcome)
	assert.Equal(t, intent.OutcomeTransportError, c.Classify(ctx, "b").Outcome)

	res := c.Classify(ctx, "c")
	assert.Equal(t, intent.OutcomeUnavailable, res.Outcome)
	assert.Equal(t, intent.None, res.Intent)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClassifyBreakerIgnoresParseErrors(t *testing.T) {
	var calls atomic.Int32
	srv := fakeOllama(t, "not json", &calls)
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, func(cfg *Config) { cfg.BreakerFailures = 1 })

	for i := 0; i < 3; i++ {
		assert.Equal(t, intent.OutcomeParseError, c.Classify(context.Background(), "x").Outcome)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestClassifyCancelDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"{\"intent\":\"get_time\",\"target\":\"\",\"confidence\":0.9}","done":true}`))
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv.URL, func(cfg *Config) {
		cfg.BreakerFailures = 1
		cfg.BreakerCooldown = time.Minute
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	assert.Equal(t, intent.OutcomeTransportError, c.Classify(ctx, "shutting down").Outcome)

	res := c.Classify(context.Background(), "what time is it")
	assert.Equal(t, intent.OutcomeClassified, res.Outcome)
	assert.Equal(t, intent.GetTime, res.Intent)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNewClassifierRejectsBadHost(t *testing.T) {
	_, err := NewClassifier(&Config{Host: "localhost:11434"})
	assert.Error(t, err)
	_, err = NewClassifier(&Config{Host: "://bad"})
	assert.Error(t, err)
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    intent.Result
		wantErr bool
	}{
		{
			name: "full object",
			raw:  `{"intent":"open_app","target":"calculator","confidence":0.95}`,
			want: intent.Result{Intent: intent.OpenApp, Target: intent.Calculator, Confidence: 0.95},
		},
		{
			name: "string confidence",
			raw:  `{"intent":"get_time","target":"","confidence":"0.7"}`,
			want: intent.Result{Intent: intent.GetTime, Confidence: 0.7},
		},
		{
			name: "missing target and confidence",
			raw:  `{"intent":"none"}`,
			want: intent.Result{Intent: intent.None},
		},
		{
			name: "surrounding whitespace",
			raw:  "\n {\"intent\":\"open_website\",\"target\":\"google\",\"confidence\":1}\n",
			want: intent.Result{Intent: intent.OpenWebsite, Target: intent.Google, Confidence: 1},
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "not json", raw: "open notepad", wantErr: true},
		{name: "array", raw: `["open_app"]`, wantErr: true},
		{name: "no intent", raw: `{"target":"google"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Outcome = intent.OutcomeClassified
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Aayu", "search for rust programming")
	assert.Contains(t, p, "named Aayu")
	assert.Contains(t, p, `User: "search for rust programming"`)
	assert.Contains(t, p, "open_app, open_website, get_time, get_date, search, none")
	assert.Contains(t, p, `"notepad", "calculator", "youtube", "google", ""`)
}
