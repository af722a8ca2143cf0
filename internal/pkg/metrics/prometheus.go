package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgov",
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Total number of evaluation cycles",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "costgov",
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of evaluation cycles in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	resourcesEvaluated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "costgov",
			Subsystem: "engine",
			Name:      "resources_evaluated",
			Help:      "Number of resources in the last evaluated snapshot",
		},
	)

	policiesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "costgov",
			Subsystem: "policy",
			Name:      "loaded_count",
			Help:      "Number of policies in the active store",
		},
	)

	policiesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "costgov",
			Subsystem: "policy",
			Name:      "rejected_total",
			Help:      "Total number of policy documents rejected at load",
		},
	)

	// Decision and action metrics
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgov",
			Subsystem: "decision",
			Name:      "total",
			Help:      "Total number of decisions by policy kind and action",
		},
		[]string{"kind", "action"},
	)

	actionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costgov",
			Subsystem: "action",
			Name:      "dispatched_total",
			Help:      "Total number of actions handed to the sink",
		},
		[]string{"kind", "dry_run"},
	)

	actionsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "costgov",
			Subsystem: "action",
			Name:      "deduplicated_total",
			Help:      "Total number of actions suppressed by the idempotency journal",
		},
	)

	// Provider metrics
	collectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "costgov",
			Subsystem: "provider",
			Name:      "collect_duration_seconds",
			Help:      "Duration of provider inventory collection in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)
)

// RecordCycle records the outcome and duration of one cycle.
func RecordCycle(status string, duration time.Duration) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// SetSnapshotSize sets the resource count of the last snapshot.
func SetSnapshotSize(n int) {
	resourcesEvaluated.Set(float64(n))
}

// RecordPolicyLoad records a policy store (re)load.
func RecordPolicyLoad(loaded, rejected int) {
	policiesLoaded.Set(float64(loaded))
	policiesRejected.Add(float64(rejected))
}

// RecordDecision counts one decision.
func RecordDecision(kind, action string) {
	decisionsTotal.WithLabelValues(kind, action).Inc()
}

// RecordDispatch counts one dispatched action.
func RecordDispatch(kind string, dryRun bool) {
	actionsDispatched.WithLabelValues(kind, fmt.Sprintf("%t", dryRun)).Inc()
}

// RecordDeduplicated counts actions dropped by the journal.
func RecordDeduplicated(n int) {
	actionsDeduplicated.Add(float64(n))
}

// RecordCollect records one provider collection pass.
func RecordCollect(provider string, duration time.Duration) {
	collectorDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Router serves /metrics and /healthz.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return r
}

// Serve runs the metrics endpoint until the server fails. Callers run it in
// a goroutine; errors surface through the returned channel.
func Serve(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
