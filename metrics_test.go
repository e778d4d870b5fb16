package libemit

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsEmitterActivity(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m, err := NewMetrics("libemit", reg)
			require.NoError(t, err)

			emitter := bc.build(WithMetrics(m))
			cb := NewListener(func(...any) {})

			require.NoError(t, emitter.On("test", cb))
			require.NoError(t, emitter.On("test", NewListener(func(...any) { panic("boom") })))
			assert.Equal(t, 2.0, testutil.ToFloat64(m.Listeners.WithLabelValues("test", bc.name)))

			emitter.Emit("test")
			emitter.Emit("test")
			settle(t, emitter)

			assert.Equal(t, 2.0, testutil.ToFloat64(m.EmitsTotal.WithLabelValues("test", bc.name)))
			assert.Equal(t, 2.0, testutil.ToFloat64(m.ListenerFailuresTotal.WithLabelValues("test", bc.name)))

			emitter.Off("test", cb)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Listeners.WithLabelValues("test", bc.name)))

			emitter.RemoveAllListeners("test")
			assert.Equal(t, 0.0, testutil.ToFloat64(m.Listeners.WithLabelValues("test", bc.name)))
		})
	}
}

func TestMetrics_OnceUpdatesListenerGauge(t *testing.T) {
	m, err := NewMetrics("libemit", nil)
	require.NoError(t, err)

	emitter := NewDelegatedEmitter[string, any](nil, WithMetrics(m))
	require.NoError(t, emitter.Once("test", NewListener(func(...any) {})))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Listeners.WithLabelValues("test", backendDelegated)))

	emitter.Emit("test")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Listeners.WithLabelValues("test", backendDelegated)))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewMetrics("libemit", reg)
	require.NoError(t, err)

	_, err = NewMetrics("libemit", reg)
	assert.Error(t, err)
}
