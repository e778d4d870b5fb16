package libemit

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for emitters. A single Metrics may be shared by
// several emitters; series are labelled by event and backend.
type Metrics struct {
	// EmitsTotal is the total number of Emit calls.
	EmitsTotal *prometheus.CounterVec

	// ListenerFailuresTotal is the total number of recovered listener panics.
	ListenerFailuresTotal *prometheus.CounterVec

	// Listeners is the current number of registered listeners.
	Listeners *prometheus.GaugeVec
}

// NewMetrics creates the emitter metrics and registers them on reg. A nil reg
// skips registration.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"event", "backend"}

	m := &Metrics{
		EmitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emits_total",
				Help:      "Total number of emitted events",
			},
			labels,
		),

		ListenerFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_failures_total",
				Help:      "Total number of listener invocations that panicked",
			},
			labels,
		),

		Listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "listeners",
				Help:      "Current number of registered listeners",
			},
			labels,
		),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.EmitsTotal, m.ListenerFailuresTotal, m.Listeners} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "cannot register emitter metrics")
		}
	}

	return m, nil
}

func (m *Metrics) emitted(event any, backend string) {
	if m == nil {
		return
	}
	m.EmitsTotal.WithLabelValues(fmt.Sprint(event), backend).Inc()
}

func (m *Metrics) failed(event any, backend string) {
	if m == nil {
		return
	}
	m.ListenerFailuresTotal.WithLabelValues(fmt.Sprint(event), backend).Inc()
}

func (m *Metrics) setListeners(event any, backend string, n int) {
	if m == nil {
		return
	}
	m.Listeners.WithLabelValues(fmt.Sprint(event), backend).Set(float64(n))
}
