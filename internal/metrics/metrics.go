// Package metrics holds the Prometheus collectors for the sampling
// scheduler. Collectors register themselves on the default registry; the
// run command decides whether to actually expose them over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts finished scheduler cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Completed sampling cycles by status.",
	}, []string{"status"})

	// ReadingsTotal counts readings persisted to the store.
	ReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "readings_total",
		Help:      "Readings successfully persisted.",
	})

	// PrunedReadingsTotal counts rows removed by retention pruning.
	PrunedReadingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "pruned_readings_total",
		Help:      "Readings deleted by retention pruning.",
	})

	// Running is 1 while a scheduler instance holds the lock and runs.
	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "running",
		Help:      "Whether the scheduler is currently running.",
	})

	// ConsecutiveFailures tracks the current run of failed cycles.
	ConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "consecutive_failures",
		Help:      "Consecutive failed sampling cycles since the last success.",
	})

	// CycleDuration observes how long one sampling cycle takes, wake to
	// persisted reading.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "airsampler",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one sampling cycle.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// CurrentAQI exports the most recently computed air quality index.
	CurrentAQI = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airsampler",
		Name:      "aqi",
		Help:      "Most recent air quality index by location.",
	}, []string{"location"})

	// PMConcentration exports the latest mass concentrations.
	PMConcentration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airsampler",
		Name:      "pm_concentration_ugm3",
		Help:      "Latest particulate matter concentration by size class.",
	}, []string{"location", "size"})
)

// Cycle outcome labels for CyclesTotal.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
