package lane

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/msgbus/internal/clock"
)

func TestLaneDefaults(t *testing.T) {
	tests := []struct {
		kind             Kind
		wantCapacity     uint64
		wantSlotSize     uint32
		wantPriority     uint32
		wantLatencyUs    float64
	}{
		{Express, 1024, 256, 4, 1.0},
		{Bulk, 8192, 65536, 1, 100.0},
		{Priority, 512, 1024, 8, 0.5},
		{Streaming, 16384, 4096, 2, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := DefaultsFor(tt.kind)
			assert.Equal(t, tt.wantCapacity, d.Capacity)
			assert.Equal(t, tt.wantSlotSize, d.SlotSize)
			assert.Equal(t, tt.wantPriority, d.PriorityWeight)
			assert.Equal(t, tt.wantLatencyUs, d.LatencyTargetUs)
		})
	}
}

// TestLaneRoundTrip is scenario S2 from the specification: ten messages
// submitted to a STREAMING lane come back out in the same order, and an
// eleventh drain on an empty lane returns false.
func TestLaneRoundTrip(t *testing.T) {
	l := New(Streaming, clock.NewFake(0))

	var sent [][]byte
	for i := 0; i < 10; i++ {
		msg := []byte(fmt.Sprintf("hello_%d", i))
		sent = append(sent, msg)
		require.True(t, l.Submit(msg, 2), "submit %d should succeed", i)
	}

	for i := 0; i < 10; i++ {
		got, priority, ok := l.Drain()
		require.True(t, ok, "drain %d should return a message", i)
		assert.Equal(t, sent[i], got)
		assert.Equal(t, uint32(2), priority)
	}

	_, _, ok := l.Drain()
	assert.False(t, ok, "11th drain should return false")
}

func TestLaneFIFOSingleProducerSingleConsumer(t *testing.T) {
	l := New(Express, clock.NewFake(0))

	for i := 0; i < 50; i++ {
		require.True(t, l.Submit([]byte{byte(i)}, 0))
	}
	for i := 0; i < 50; i++ {
		got, _, ok := l.Drain()
		require.True(t, ok)
		assert.Equal(t, []byte{byte(i)}, got)
	}
}

func TestLaneRejectsOversizePayload(t *testing.T) {
	l := New(Express, clock.NewFake(0))
	big := make([]byte, l.MaxPayload()+1)
	assert.False(t, l.Submit(big, 0))
}

func TestLaneRejectsEmptyPayload(t *testing.T) {
	l := New(Express, clock.NewFake(0))
	assert.False(t, l.Submit(nil, 0))
}

func TestLaneAcceptsMaxPayload(t *testing.T) {
	l := New(Express, clock.NewFake(0))
	max := make([]byte, l.MaxPayload())
	for i := range max {
		max[i] = byte(i)
	}
	require.True(t, l.Submit(max, 0))
	got, _, ok := l.Drain()
	require.True(t, ok)
	assert.Equal(t, max, got)
}

// TestLaneBoundedOccupancy is P3: occupancy never exceeds capacity, and
// Submit starts returning false once the ring is full and the busy-wait
// deadline passes.
func TestLaneBoundedOccupancy(t *testing.T) {
	l := New(Priority, clock.NewFake(0))
	l.SetSpinTimeoutUs(0) // fail immediately instead of spinning in real time

	accepted := 0
	for i := 0; i < int(l.Capacity())+10; i++ {
		if l.Submit([]byte{byte(i)}, 0) {
			accepted++
		}
		assert.LessOrEqual(t, l.MessageCount(), l.Capacity())
	}
	assert.Equal(t, int(l.Capacity()), accepted)
}

func TestLaneDrainAfterFullRing(t *testing.T) {
	l := New(Priority, clock.NewFake(0))
	l.SetSpinTimeoutUs(0)

	for i := 0; i < int(l.Capacity()); i++ {
		require.True(t, l.Submit([]byte{byte(i)}, 0))
	}
	assert.False(t, l.Submit([]byte{0xFF}, 0), "ring should be full")

	_, _, ok := l.Drain()
	require.True(t, ok)
	assert.True(t, l.Submit([]byte{0xFF}, 0), "slot freed by drain should accept a new submit")
}

func TestLaneMetricsTotalsAndP99(t *testing.T) {
	fc := clock.NewFake(0)
	l := New(Express, fc)

	for i := 0; i < 5; i++ {
		require.True(t, l.Submit([]byte{byte(i)}, 0))
	}

	m := l.GetMetrics()
	assert.Equal(t, uint64(5), m.TotalMessages)
	assert.Equal(t, uint64(5), m.TotalBytes)
	assert.InDelta(t, 0.99*m.MaxLatencyUs, m.P99LatencyUs, 1e-9)
}

func TestLaneSkipsCorruptSlot(t *testing.T) {
	l := New(Express, clock.NewFake(0))
	require.True(t, l.Submit([]byte("a"), 0))
	require.True(t, l.Submit([]byte("b"), 0))

	// Simulate a zeroed/corrupt slot at tail by overwriting it directly.
	for i := range l.slots[0] {
		l.slots[0][i] = 0
	}

	got, _, ok := l.Drain()
	require.True(t, ok, "drain should skip the corrupt slot and return the next valid one")
	assert.Equal(t, []byte("b"), got)
}
