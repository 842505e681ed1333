package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/metrics"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Admitted("DkgBegin")
	m.Admitted("DkgBegin")
	m.Rejected("DkgEnd", metrics.ReasonAuth)
	m.DkgEnded("success")
	m.SignEnded("failure")
	m.Retried()

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	count, err := testutil.GatherAndCount(reg, "frost_envelopes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per kind and outcome")
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Admitted("DkgBegin")
		m.Rejected("DkgBegin", metrics.ReasonReplay)
		m.DkgEnded("timeout")
		m.SignEnded("success")
		m.Retried()
	})
}
