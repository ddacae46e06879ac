// Package metrics exposes Prometheus instrumentation for the API actions
// and the expiry sweeper.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "open_kounter"

const (
	LabelEndpoint = "endpoint"
	LabelAction   = "action"
	LabelCode     = "code"
	LabelBackend  = "backend"
)

var (
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "actions_total",
			Help:      "API actions by endpoint, action and result code",
		},
		[]string{LabelEndpoint, LabelAction, LabelCode},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of API actions in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelEndpoint, LabelAction},
	)

	SweptEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "swept_entries_total",
			Help:      "Expired KV entries removed by the background sweep",
		},
		[]string{LabelBackend},
	)

	SweepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sweep_errors_total",
			Help:      "Failed background sweeps",
		},
		[]string{LabelBackend},
	)
)

// RecordAction counts one action outcome and observes its latency. The
// caller must pass an action from a closed set; client input never goes
// into a label directly.
func RecordAction(endpoint, action string, code int, d time.Duration) {
	if action == "" {
		action = "none"
	}
	ActionsTotal.WithLabelValues(endpoint, action, strconv.Itoa(code)).Inc()
	ActionDuration.WithLabelValues(endpoint, action).Observe(d.Seconds())
}

func RecordSweep(backend string, removed int, err error) {
	if err != nil {
		SweepErrorsTotal.WithLabelValues(backend).Inc()
		return
	}
	SweptEntriesTotal.WithLabelValues(backend).Add(float64(removed))
}
