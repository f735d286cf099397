package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Lookup("new")
	m.Lookup("new")
	m.Lookup("duplicate")
	m.Commit(3, 1)
	m.SessionsCleaned(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScanLookups.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanLookups.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanCommits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ScanItemsCommitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanItemsFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScanSessionsCleaned))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Lookup("new")
		m.Commit(1, 0)
		m.SessionsCleaned(1)
		m.PositionsRepaired(1)
	})
}
