// Package metrics exposes Prometheus metrics for the cache, the circuit
// breakers, the request coalescer and the ledger.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rawrguild"

// LoadOutcome captures how a cached load was served.
type LoadOutcome string

const (
	// LoadHit indicates the value came from the cache.
	LoadHit LoadOutcome = "hit"
	// LoadProduced indicates this caller ran the producer.
	LoadProduced LoadOutcome = "produced"
	// LoadShared indicates the caller joined another caller's producer.
	LoadShared LoadOutcome = "shared"
	// LoadRejected indicates the breaker refused the call.
	LoadRejected LoadOutcome = "rejected"
	// LoadError indicates the producer failed.
	LoadError LoadOutcome = "error"
)

// Sources are read on every scrape. Nil fields are skipped.
type Sources struct {
	Cache     func() cache.Stats
	Breakers  func() []breaker.Stats
	InFlight  func() int
	Producers func() uint64
	Ledger    func() ledger.Stats
}

// Recorder publishes Prometheus metrics for server activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	loads       *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec
	rpcs        *prometheus.CounterVec
}

// NewRecorder constructs a Recorder. When reg is nil a dedicated registry is
// created so several recorders can coexist in tests.
func NewRecorder(reg *prometheus.Registry, src Sources) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		newStatsCollector(src),
	)

	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "load",
		Name:      "requests_total",
		Help:      "Cached loads by dependency and outcome.",
	}, []string{"dependency", "outcome"})

	loadLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "load",
		Name:      "duration_seconds",
		Help:      "Latency distribution of cached loads.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"dependency", "outcome"})

	rpcs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Handled gRPC requests by method and status code.",
	}, []string{"method", "code"})

	reg.MustRegister(loads, loadLatency, rpcs)

	return &Recorder{
		gatherer:    reg,
		handler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		loads:       loads,
		loadLatency: loadLatency,
		rpcs:        rpcs,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying gatherer.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLoad records one cached load.
func (r *Recorder) ObserveLoad(dependency string, outcome LoadOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	dep := normalizeLabel(dependency)
	out := normalizeLabel(string(outcome))
	r.loads.WithLabelValues(dep, out).Inc()
	r.loadLatency.WithLabelValues(dep, out).Observe(duration.Seconds())
}

// ObserveRPC records one handled gRPC request.
func (r *Recorder) ObserveRPC(fullMethod, code string) {
	if r == nil {
		return
	}
	r.rpcs.WithLabelValues(normalizeLabel(fullMethod), normalizeLabel(code)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
