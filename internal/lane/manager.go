package lane

import (
	"github.com/behrlich/msgbus/internal/clock"
)

// Manager owns the four fixed lanes and implements the routing policy that
// picks one per message. Grounded on the teacher's Device, which owns one
// queue.Runner per queue and fans operations out to them (backend.go in
// github.com/ehrlich-b/go-ublk) — here there are always exactly four
// "queues," one per traffic kind, instead of one per CPU.
type Manager struct {
	lanes [4]*Lane // indexed by Kind
}

// NewManager creates a Manager with all four lanes initialized to their
// mandated defaults.
func NewManager(src clock.Source) *Manager {
	m := &Manager{}
	for _, k := range Kinds {
		m.lanes[k] = New(k, src)
	}
	return m
}

// Lane returns the lane for a given kind.
func (m *Manager) Lane(k Kind) *Lane {
	return m.lanes[k]
}

// SelectOptimalLane implements the routing policy exactly as specified,
// evaluated in order: priority wins outright, then latency-critical small
// messages, then size-based bulk/streaming split. It is a pure function of
// its inputs (P4).
func SelectOptimalLane(size uint64, priority uint32, latencyCritical bool) Kind {
	switch {
	case priority >= 3:
		return Priority
	case latencyCritical && size <= 256:
		return Express
	case size >= 4096:
		return Bulk
	default:
		return Streaming
	}
}

// Submit routes data to lane k and returns whether the lane accepted it.
func (m *Manager) Submit(k Kind, data []byte, priority uint32) bool {
	return m.lanes[k].Submit(data, priority)
}

// Drain pops the next message from lane k, if any.
func (m *Manager) Drain(k Kind) ([]byte, uint32, bool) {
	return m.lanes[k].Drain()
}

// SystemThroughputMBps sums bytes_transferred across all lanes in MB and
// divides by the caller-supplied elapsed window, per §4.2. A zero or
// negative window returns 0 rather than dividing by zero.
func (m *Manager) SystemThroughputMBps(elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	var totalBytes uint64
	for _, l := range m.lanes {
		totalBytes += l.GetMetrics().BytesTransferred
	}
	const mb = 1024 * 1024
	return float64(totalBytes) / mb / elapsedSeconds
}

// AllMetrics returns a snapshot of every lane, indexed by Kind.
func (m *Manager) AllMetrics() [4]Metrics {
	var out [4]Metrics
	for _, k := range Kinds {
		out[k] = m.lanes[k].GetMetrics()
	}
	return out
}
