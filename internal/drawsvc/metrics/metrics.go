package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the draw service collectors.
	Registry = prometheus.NewRegistry()

	roundsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "engine",
			Name:      "rounds_committed_total",
			Help:      "Elimination rounds persisted, by round number.",
		},
		[]string{"round"},
	)

	roundConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "engine",
			Name:      "round_conflicts_total",
			Help:      "Round writes lost to a concurrent writer.",
		},
	)

	sweepDraws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "scheduler",
			Name:      "draws_total",
			Help:      "Due draws handled by sweeps, by outcome.",
		},
		[]string{"result"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prizedraw",
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of scheduler sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prizedraw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		roundsCommitted,
		roundConflicts,
		sweepDraws,
		sweepDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RoundCommitted(round int) {
	roundsCommitted.WithLabelValues(strconv.Itoa(round)).Inc()
}

func RoundConflict() {
	roundConflicts.Inc()
}

// Sweep records one finished sweep and the outcome counts of its draws.
func Sweep(duration time.Duration, processed, skipped, failed int) {
	sweepDuration.Observe(duration.Seconds())
	sweepDraws.WithLabelValues("processed").Add(float64(processed))
	sweepDraws.WithLabelValues("skipped").Add(float64(skipped))
	sweepDraws.WithLabelValues("failed").Add(float64(failed))
}

// InstrumentHandler counts requests by their chi route pattern so ids in the
// path do not explode the label set.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(strings.ToUpper(r.Method), route, strconv.Itoa(status)).Inc()
	})
}
