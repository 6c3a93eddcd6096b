package monitoring

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Presence(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.SetPresence(3, 5)
	c.RecordDelivery(true)
	c.RecordDelivery(true)
	c.RecordDelivery(false)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.onlineUsers))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.sessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.presenceDeliveries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.presenceDeliveries.WithLabelValues("failed")))
}

func TestPrometheusCollector_ProfileOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordProfileOperation("create_curated_list", "ok", 2*time.Millisecond)
	c.RecordProfileOperation("create_curated_list", "conflict", time.Millisecond)

	expected := `
# HELP reelhub_profile_operations_total Profile operations, by operation and result
# TYPE reelhub_profile_operations_total counter
reelhub_profile_operations_total{operation="create_curated_list",result="conflict"} 1
reelhub_profile_operations_total{operation="create_curated_list",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reelhub_profile_operations_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.profileOperationDuration))
}
