package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePoll(20*time.Millisecond, 2, 10)
	m.ObservePoll(30*time.Millisecond, 2, 12)
	m.ObserveFailure(time.Second)
	m.ObserveSkip()
	m.ObserveSeed(212, 224)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollsSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.links))
	assert.Equal(t, 224.0, testutil.ToFloat64(m.historyLen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.seeded))
	assert.Equal(t, 212.0, testutil.ToFloat64(m.seededSamples))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetchSeconds))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObservePoll(time.Second, 1, 1)
	m.ObserveFailure(time.Second)
	m.ObserveSkip()
	m.ObserveSeed(1, 1)
}
