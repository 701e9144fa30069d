package promexport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/msgbus"
	"github.com/behrlich/msgbus/internal/health"
	"github.com/behrlich/msgbus/internal/lane"
)

func TestCollectorCollectsLaneAndBusSeries(t *testing.T) {
	bus := msgbus.NewBus(msgbus.DefaultBusOptions())
	require.True(t, bus.SubmitTo(lane.Express, []byte("hi"), 0))
	_, _, ok := bus.DrainFrom(lane.Express)
	require.True(t, ok)

	c := NewCollector(bus, nil)
	require.Greater(t, testutil.CollectAndCount(c), 0)
}

func TestCollectorReflectsComponentHealth(t *testing.T) {
	bus := msgbus.NewBus(msgbus.DefaultBusOptions())
	bus.ReportFault(health.FaultTimeout, msgbus.LaneComponentID(lane.Bulk), "synthetic")

	require.False(t, bus.IsComponentHealthy(msgbus.LaneComponentID(lane.Bulk)))

	c := NewCollector(bus, nil)
	require.Greater(t, testutil.CollectAndCount(c), 0)
}
