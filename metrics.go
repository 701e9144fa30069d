package msgbus

import (
	"sync/atomic"
	"time"
)

// Metrics tracks bus-wide operation counters, independent of the
// per-lane.Metrics each lane already keeps for its own throughput/latency
// figures. Grounded on the teacher's Metrics/MetricsSnapshot/Observer trio
// (metrics.go), generalized from read/write/discard/flush device I/O
// counters to the bus's submit/drain/reliable-send/fault vocabulary.
type Metrics struct {
	SubmitOps    atomic.Uint64
	SubmitErrors atomic.Uint64
	DrainOps     atomic.Uint64
	DrainMisses  atomic.Uint64

	ReliableSends   atomic.Uint64
	ReliableAcks    atomic.Uint64
	ReliableNacks   atomic.Uint64
	ReliableRetries atomic.Uint64

	FaultsReported  atomic.Uint64
	FaultsRecovered atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new bus-wide metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordSubmit(success bool) {
	m.SubmitOps.Add(1)
	if !success {
		m.SubmitErrors.Add(1)
	}
}

func (m *Metrics) recordDrain(hit bool) {
	m.DrainOps.Add(1)
	if !hit {
		m.DrainMisses.Add(1)
	}
}

func (m *Metrics) recordReliableSend() {
	m.ReliableSends.Add(1)
}

func (m *Metrics) recordFeedback(ack, nack, retry bool) {
	if ack {
		m.ReliableAcks.Add(1)
	}
	if nack {
		m.ReliableNacks.Add(1)
	}
	if retry {
		m.ReliableRetries.Add(1)
	}
}

func (m *Metrics) recordFault(recovered bool) {
	m.FaultsReported.Add(1)
	if recovered {
		m.FaultsRecovered.Add(1)
	}
}

// MetricsSnapshot is a point-in-time, derived view of Metrics.
type MetricsSnapshot struct {
	SubmitOps    uint64
	SubmitErrors uint64
	DrainOps     uint64
	DrainMisses  uint64

	ReliableSends   uint64
	ReliableAcks    uint64
	ReliableNacks   uint64
	ReliableRetries uint64

	FaultsReported  uint64
	FaultsRecovered uint64

	UptimeNs   uint64
	SubmitRate float64 // submits per second over the bus's uptime
	DrainRate  float64 // drains per second over the bus's uptime
}

// Snapshot creates a point-in-time snapshot of Metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SubmitOps:       m.SubmitOps.Load(),
		SubmitErrors:    m.SubmitErrors.Load(),
		DrainOps:        m.DrainOps.Load(),
		DrainMisses:     m.DrainMisses.Load(),
		ReliableSends:   m.ReliableSends.Load(),
		ReliableAcks:    m.ReliableAcks.Load(),
		ReliableNacks:   m.ReliableNacks.Load(),
		ReliableRetries: m.ReliableRetries.Load(),
		FaultsReported:  m.FaultsReported.Load(),
		FaultsRecovered: m.FaultsRecovered.Load(),
	}
	snap.UptimeNs = uint64(time.Now().UnixNano() - m.StartTime.Load())
	if snap.UptimeNs > 0 {
		seconds := float64(snap.UptimeNs) / 1e9
		snap.SubmitRate = float64(snap.SubmitOps) / seconds
		snap.DrainRate = float64(snap.DrainOps) / seconds
	}
	return snap
}

// Observer allows pluggable bus-event collection, independent of Metrics.
type Observer interface {
	ObserveSubmit(success bool)
	ObserveDrain(hit bool)
	ObserveReliableSend()
	ObserveFeedback(ack, nack, retry bool)
	ObserveFault(recovered bool)
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(bool)             {}
func (NoOpObserver) ObserveDrain(bool)              {}
func (NoOpObserver) ObserveReliableSend()           {}
func (NoOpObserver) ObserveFeedback(bool, bool, bool) {}
func (NoOpObserver) ObserveFault(bool)              {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an Observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit(success bool) { o.metrics.recordSubmit(success) }
func (o *MetricsObserver) ObserveDrain(hit bool)       { o.metrics.recordDrain(hit) }
func (o *MetricsObserver) ObserveReliableSend()         { o.metrics.recordReliableSend() }
func (o *MetricsObserver) ObserveFeedback(ack, nack, retry bool) {
	o.metrics.recordFeedback(ack, nack, retry)
}
func (o *MetricsObserver) ObserveFault(recovered bool) { o.metrics.recordFault(recovered) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
