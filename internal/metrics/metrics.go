// Package metrics is the prometheus wiring the teacher's
// internal/middleware/metrics.go reaches for, adapted from per-HTTP-request
// counters to per-compile-run and per-runtime counters: compiled functions,
// bytes emitted, goroutines, timers, and arena usage (SPEC_FULL.md §3).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every gauge/counter/histogram this process exposes on
// /metrics. One instance is created in cmd/gotsc and passed to the
// internal/sched and internal/timer constructors; internal/compiler does
// not receive it.
type Metrics struct {
	FunctionsCompiled prometheus.Counter
	BytesEmitted      prometheus.Counter
	CompileDuration   prometheus.Histogram

	GoroutinesSpawned prometheus.Counter
	GoroutinesActive  prometheus.Gauge
	GoroutinesFailed  prometheus.Counter

	TimersPending prometheus.Gauge
	TimersFired   prometheus.Counter

	ArenaBytesUsed prometheus.Gauge
}

// New registers every metric against the default registry and returns the
// bundle, mirroring the teacher's metrics.New() call site in
// cmd/service/main.go.
func New() *Metrics {
	m := &Metrics{
		FunctionsCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gots_functions_compiled_total",
			Help: "Number of functions compiled across all compile runs.",
		}),
		BytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gots_bytes_emitted_total",
			Help: "Bytes of machine code emitted across all compile runs.",
		}),
		CompileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gots_compile_duration_seconds",
			Help:    "Wall-clock duration of a full compile run.",
			Buckets: prometheus.DefBuckets,
		}),
		GoroutinesSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gots_goroutines_spawned_total",
			Help: "Total goroutines spawned via go f(...).",
		}),
		GoroutinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gots_goroutines_active",
			Help: "Goroutines currently running or queued.",
		}),
		GoroutinesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gots_goroutines_failed_total",
			Help: "Goroutines whose task resolved their promise via the failure sentinel.",
		}),
		TimersPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gots_timers_pending",
			Help: "Timers currently in the min-heap awaiting expiry.",
		}),
		TimersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gots_timers_fired_total",
			Help: "Timer callbacks dispatched by the event loop.",
		}),
		ArenaBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gots_arena_bytes_used",
			Help: "Bytes currently held by the executable code arena.",
		}),
	}
	prometheus.MustRegister(
		m.FunctionsCompiled, m.BytesEmitted, m.CompileDuration,
		m.GoroutinesSpawned, m.GoroutinesActive, m.GoroutinesFailed,
		m.TimersPending, m.TimersFired, m.ArenaBytesUsed,
	)
	return m
}
