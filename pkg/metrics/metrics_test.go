package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncClientRequestLabels(t *testing.T) {
	before := testutil.ToFloat64(ClientRequestsTotal.WithLabelValues("GET", "rules", "200"))
	IncClientRequest("GET", "rules", 200)
	assert.Equal(t, before+1, testutil.ToFloat64(ClientRequestsTotal.WithLabelValues("GET", "rules", "200")))

	beforeErr := testutil.ToFloat64(ClientRequestsTotal.WithLabelValues("GET", "rules", "error"))
	IncClientRequest("GET", "rules", 0)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(ClientRequestsTotal.WithLabelValues("GET", "rules", "error")))
}

func TestSetWatcherRuleSet(t *testing.T) {
	SetWatcherRuleSet(3, 1673123605)
	assert.Equal(t, float64(3), testutil.ToFloat64(WatcherActiveRules))
	assert.Equal(t, float64(1673123605), testutil.ToFloat64(WatcherRuleSetTimestamp))
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		Register(reg)
		Register(reg)
	})

	IncCacheHit("ruleset")
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
