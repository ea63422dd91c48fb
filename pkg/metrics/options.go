package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace replaces the "oarbit" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "seatrace" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the processing,
// store, worker and HTTP latency histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = buckets
		}
	}
}

// WithKFactor sizes the rating delta histogram so its outer buckets match
// one full swing of k in either direction.
func WithKFactor(k float64) Option {
	return func(m *Manager) {
		if k > 0 {
			m.ratingDeltaBuckets = DeltaBuckets(k)
		}
	}
}

// DeltaBuckets returns symmetric rating delta buckets for K-factor k.
func DeltaBuckets(k float64) []float64 {
	up := []float64{1}
	for _, f := range []float64{1.0 / 8, 1.0 / 4, 1.0 / 2, 3.0 / 4, 1} {
		if v := k * f; v > up[len(up)-1] {
			up = append(up, v)
		}
	}
	out := make([]float64, 0, 2*len(up)+1)
	for _, v := range slices.Backward(up) {
		out = append(out, -v)
	}
	out = append(out, 0)
	return append(out, up...)
}

// WithRecording turns recording on or off. A manager that does not record
// still registers its collectors.
func WithRecording(on bool) Option {
	return func(m *Manager) {
		m.enabled = on
	}
}

// WithConstLabels adds labels to every collector, such as the club or the
// deployment a server belongs to.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if labels != nil {
			m.constLabels = labels
		}
	}
}

// WithPrometheusRegistry registers the collectors on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
