// Package metrics exposes Prometheus instrumentation for compile and run
// operations. Registration happens once at package init against the
// default registry; callers only need to record observations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CompileDuration observes how long a compile attempt took, regardless
	// of outcome.
	CompileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "judgesandbox",
		Subsystem: "compiler",
		Name:      "compile_duration_seconds",
		Help:      "Wall-clock duration of a single compile attempt.",
		Buckets:   prometheus.DefBuckets,
	})

	// CompileTotal counts compiles by outcome ("success" or "failure"; a
	// timed-out compile counts as "failure").
	CompileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judgesandbox",
		Subsystem: "compiler",
		Name:      "compile_total",
		Help:      "Number of compile attempts by outcome.",
	}, []string{"outcome"})

	// RunWallTime observes real_time per run.
	RunWallTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "judgesandbox",
		Subsystem: "runner",
		Name:      "run_wall_seconds",
		Help:      "Wall-clock duration of a single sandboxed run.",
		Buckets:   prometheus.DefBuckets,
	})

	// RunCPUTime observes cpu_time per run, as read from cpuacct.usage.
	RunCPUTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "judgesandbox",
		Subsystem: "runner",
		Name:      "run_cpu_seconds",
		Help:      "Accumulated CPU time of a single sandboxed run.",
		Buckets:   prometheus.DefBuckets,
	})

	// RunTotal counts runs by outcome ("success", "failure").
	RunTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judgesandbox",
		Subsystem: "runner",
		Name:      "run_total",
		Help:      "Number of sandboxed runs by exit outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(CompileDuration, CompileTotal, RunWallTime, RunCPUTime, RunTotal)
}

// ObserveCompile records one compile attempt's duration and outcome.
func ObserveCompile(d time.Duration, success bool) {
	CompileDuration.Observe(d.Seconds())
	if success {
		CompileTotal.WithLabelValues("success").Inc()
	} else {
		CompileTotal.WithLabelValues("failure").Inc()
	}
}

// ObserveRun records one run's resource usage and outcome.
func ObserveRun(wallTime, cpuTime time.Duration, exitSuccess bool) {
	RunWallTime.Observe(wallTime.Seconds())
	RunCPUTime.Observe(cpuTime.Seconds())
	if exitSuccess {
		RunTotal.WithLabelValues("success").Inc()
	} else {
		RunTotal.WithLabelValues("failure").Inc()
	}
}
