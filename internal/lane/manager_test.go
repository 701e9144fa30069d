package lane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/msgbus/internal/clock"
)

// TestSelectOptimalLane is scenario S1 from the specification.
func TestSelectOptimalLane(t *testing.T) {
	tests := []struct {
		name            string
		size            uint64
		priority        uint32
		latencyCritical bool
		want            Kind
	}{
		{"priority wins outright", 128, 4, true, Priority},
		{"small and latency-critical", 128, 0, true, Express},
		{"large non-critical goes bulk", 8192, 0, false, Bulk},
		{"mid-size falls to streaming", 1024, 0, false, Streaming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectOptimalLane(tt.size, tt.priority, tt.latencyCritical)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSelectOptimalLaneIsPure is P4: the selector is a pure function of its
// inputs, repeated calls with the same inputs return the same answer.
func TestSelectOptimalLaneIsPure(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, Bulk, SelectOptimalLane(5000, 1, false))
	}
}

func TestManagerSubmitDrainRoutesByKind(t *testing.T) {
	m := NewManager(clock.NewFake(0))

	require.True(t, m.Submit(Bulk, []byte("bulk payload"), 0))
	require.True(t, m.Submit(Express, []byte("express payload"), 4))

	got, _, ok := m.Drain(Express)
	require.True(t, ok)
	assert.Equal(t, []byte("express payload"), got)

	got, _, ok = m.Drain(Bulk)
	require.True(t, ok)
	assert.Equal(t, []byte("bulk payload"), got)

	_, _, ok = m.Drain(Priority)
	assert.False(t, ok)
}

func TestManagerSystemThroughput(t *testing.T) {
	m := NewManager(clock.NewFake(0))
	require.True(t, m.Submit(Bulk, make([]byte, 1024), 0))

	rate := m.SystemThroughputMBps(1.0)
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, 0.0, m.SystemThroughputMBps(0))
}
