// Package metrics exposes Prometheus counters for command cycles.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the assistant's metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	CommandsTotal    *prometheus.CounterVec
	ActionsTotal     *prometheus.CounterVec
	ClassifyLatency  *prometheus.HistogramVec
	ActiveCaptures   prometheus.Gauge
	TranscriptsEmpty prometheus.Counter
}

// NewRecorder registers all metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aayu_commands_total",
			Help: "Command cycles by how they ended",
		}, []string{"outcome"}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aayu_actions_total",
			Help: "Dispatched actions by intent and path",
		}, []string{"intent", "path"}),
		ClassifyLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aayu_classify_latency_seconds",
			Help:    "Model classifier latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		ActiveCaptures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aayu_capture_streams_open",
			Help: "Capture streams currently open",
		}),
		TranscriptsEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "aayu_transcripts_empty_total",
			Help: "Finalized utterances that produced no text",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// CycleEnded counts a finished command cycle.
func (r *Recorder) CycleEnded(outcome string) {
	r.CommandsTotal.WithLabelValues(outcome).Inc()
}

// ActionDispatched counts a dispatched action; path is "fast" or "model".
func (r *Recorder) ActionDispatched(intent, path string) {
	r.ActionsTotal.WithLabelValues(intent, path).Inc()
}

// Classified observes one classifier call.
func (r *Recorder) Classified(outcome string, elapsed time.Duration) {
	r.ClassifyLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// StreamOpened and StreamClosed track the capture stream gauge.
func (r *Recorder) StreamOpened() { r.ActiveCaptures.Inc() }

func (r *Recorder) StreamClosed() { r.ActiveCaptures.Dec() }

// EmptyTranscript counts an utterance that decoded to nothing.
func (r *Recorder) EmptyTranscript() { r.TranscriptsEmpty.Inc() }

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("📈 Metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
