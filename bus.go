// Package msgbus is an in-process, shared-memory message bus: four
// fixed-capacity lane ring buffers layered with a reliable-delivery
// handshake overlay and a fault-tolerance/health overlay. Grounded on the
// teacher's Device (backend.go in github.com/ehrlich-b/go-ublk), which
// owns a fixed set of per-queue runners and wraps them with metrics,
// logging, and lifecycle management — here the Bus owns the four lanes
// plus the reliability and health overlays instead of per-queue kernel
// runners.
package msgbus

import (
	"sync/atomic"

	"github.com/behrlich/msgbus/internal/clock"
	"github.com/behrlich/msgbus/internal/health"
	"github.com/behrlich/msgbus/internal/lane"
	"github.com/behrlich/msgbus/internal/logging"
	"github.com/behrlich/msgbus/internal/offload"
	"github.com/behrlich/msgbus/internal/persist"
	"github.com/behrlich/msgbus/internal/reliability"
)

// Component IDs the Bus itself reports health/faults against for the
// reliability table and the persist/offload hooks. Lane health is tracked
// under per-lane-kind IDs instead (laneComponentID), so a caller diagnosing
// a problem can tell "the bulk lane is degraded" from "the reliability
// table is degraded."
const (
	componentReliability uint32 = 1000 + iota
	componentPersist
	componentOffload
)

func laneComponentID(k lane.Kind) uint32 {
	return uint32(k)
}

// LaneComponentID returns the component ID the Bus reports lane k's health
// under, so external collaborators (e.g. a metrics exporter) can label
// ComponentHealth snapshots without reimplementing the lane/ID mapping.
func LaneComponentID(k lane.Kind) uint32 { return laneComponentID(k) }

// Well-known non-lane component IDs, exported so external collaborators
// (e.g. a metrics exporter) can label ComponentHealth snapshots for the
// reliability overlay, persistence hook, and offload hook without reaching
// into Bus internals.
const (
	ComponentReliability = componentReliability
	ComponentPersist     = componentPersist
	ComponentOffload     = componentOffload
)

// BusOptions configures a Bus. NewBus fills every unset field with its
// default, so the zero value yields the same Bus as DefaultBusOptions().
// Grounded on the teacher's
// DeviceParams / Options split between required resource parameters and
// optional context/logger/observer knobs (backend.go).
type BusOptions struct {
	ReliabilityConfig reliability.Config
	HealthConfig      health.Config

	Clock    clock.Source
	Logger   *logging.Logger
	Observer Observer
	Store    persist.Store
	Offload  offload.Engine
}

// DefaultBusOptions returns the mandated defaults for every overlay,
// wired to the real clock and a no-op persistence/offload/observer stack.
func DefaultBusOptions() BusOptions {
	return BusOptions{
		ReliabilityConfig: reliability.DefaultConfig(),
		HealthConfig:      health.DefaultConfig(),
		Clock:             clock.Default,
		Logger:            logging.Default(),
		Observer:          NoOpObserver{},
		Store:             persist.NoOpStore{},
		Offload:           offload.NoOpEngine{},
	}
}

// Bus is the message bus facade: the four lanes, the reliability
// (handshake) overlay, and the fault-tolerance/health overlay, wired
// together with the update-health-on-success / report-fault-on-failure
// discipline described in §4.5.
type Bus struct {
	lanes       *lane.Manager
	reliability *reliability.Table
	health      *health.Registry
	metrics     *Metrics
	log         *logging.Logger
	observer    Observer
	store       persist.Store
	offload     offload.Engine

	lastErr atomic.Value // stores *Error
}

// LastError returns the most recent structured error recorded by a failed
// Bus call (a refused lane submit, a SendReliable refused by flow control
// or a full reliability table, or feedback that matches no live entry), or
// nil if none has occurred yet. The lane and reliability refusals also call
// ReportFault; unmatched feedback does not, and Offload failures report a
// fault without setting LastError. LastError gives a caller that prefers
// idiomatic Go error handling something to check without polling the
// health registry.
func (b *Bus) LastError() error {
	v := b.lastErr.Load()
	if v == nil {
		return nil
	}
	return v.(*Error)
}

func (b *Bus) setLastError(err *Error) {
	b.lastErr.Store(err)
}

// NewBus creates a Bus with the given options, filling any unset field
// with its default. Passing BusOptions{} is equivalent to
// NewBus(DefaultBusOptions()).
func NewBus(opts BusOptions) *Bus {
	def := DefaultBusOptions()
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.Observer == nil {
		opts.Observer = def.Observer
	}
	if opts.Store == nil {
		opts.Store = def.Store
	}
	if opts.Offload == nil {
		opts.Offload = def.Offload
	}
	if opts.ReliabilityConfig.Capacity == 0 {
		opts.ReliabilityConfig = def.ReliabilityConfig
	}
	if opts.HealthConfig.Capacity == 0 {
		opts.HealthConfig = def.HealthConfig
	}

	return &Bus{
		lanes:       lane.NewManager(opts.Clock),
		reliability: reliability.NewTable(opts.ReliabilityConfig, opts.Clock),
		health:      health.NewRegistry(opts.HealthConfig, opts.Clock),
		metrics:     NewMetrics(),
		log:         opts.Logger,
		observer:    opts.Observer,
		store:       opts.Store,
		offload:     opts.Offload,
	}
}

// SelectLane implements the routing policy described in §4.2, exposed so
// callers can route without committing to SubmitTo's default lane choice.
func (b *Bus) SelectLane(size uint64, priority uint32, latencyCritical bool) lane.Kind {
	return lane.SelectOptimalLane(size, priority, latencyCritical)
}

// SubmitTo submits data directly to lane k, bypassing routing. It is the
// low-level primitive FastLaneSubmit and SendReliable both build on.
func (b *Bus) SubmitTo(k lane.Kind, data []byte, priority uint32) bool {
	ok := b.lanes.Submit(k, data, priority)
	b.metrics.recordSubmit(ok)
	b.observer.ObserveSubmit(ok)
	if ok {
		b.health.UpdateHealth(laneComponentID(k), true, 0)
	} else {
		b.health.Report(health.FaultOverflow, laneComponentID(k), "lane submit refused: ring full past spin deadline")
		err := NewLaneError("SubmitTo", k.String(), ErrCodeCapacityExhausted, "ring full past spin deadline")
		b.setLastError(err)
		b.log.Warnf("%s", err)
	}
	return ok
}

// DrainFrom pops the next message from lane k, if any.
func (b *Bus) DrainFrom(k lane.Kind) ([]byte, uint32, bool) {
	data, pri, ok := b.lanes.Drain(k)
	b.metrics.recordDrain(ok)
	b.observer.ObserveDrain(ok)
	return data, pri, ok
}

// FastLaneSubmit routes data through SelectLane and submits it, returning
// the lane it was routed to and whether the submit succeeded.
func (b *Bus) FastLaneSubmit(data []byte, priority uint32, latencyCritical bool) (lane.Kind, bool) {
	k := b.SelectLane(uint64(len(data)), priority, latencyCritical)
	return k, b.SubmitTo(k, data, priority)
}

// FastLaneDrain drains the first lane (in priority-weight order: Priority,
// Express, Streaming, Bulk) that has a message ready, so a consumer that
// doesn't care which lane a message arrived on gets the highest-priority
// one available.
func (b *Bus) FastLaneDrain() ([]byte, uint32, lane.Kind, bool) {
	order := [4]lane.Kind{lane.Priority, lane.Express, lane.Streaming, lane.Bulk}
	for _, k := range order {
		if data, pri, ok := b.DrainFrom(k); ok {
			return data, pri, k, true
		}
	}
	return nil, 0, 0, false
}

// SendReliable submits data on lane k through the reliability overlay,
// registering an in-flight entry keyed by sequence number. It returns the
// sequence number and whether both the lane submit and the table
// registration succeeded; if the lane rejects the payload the table entry
// is never created. On success, data is also handed to the persistence
// hook so it can be replayed if the bus restarts before the message is
// acknowledged.
func (b *Bus) SendReliable(k lane.Kind, producerID, consumerID uint32, data []byte, priority uint32) (uint64, bool) {
	if !b.reliability.CanSend(producerID) {
		b.health.Report(health.FaultOverflow, componentReliability, "producer exceeded flow-control window")
		b.setLastError(NewError("SendReliable", ErrCodeCapacityExhausted, "producer exceeded flow-control window"))
		return 0, false
	}
	if !b.SubmitTo(k, data, priority) {
		return 0, false
	}
	seq, ok := b.reliability.Send(producerID, consumerID, data)
	if !ok {
		b.health.Report(health.FaultOverflow, componentReliability, "reliability table full")
		b.setLastError(NewError("SendReliable", ErrCodeCapacityExhausted, "reliability table full"))
		return 0, false
	}
	if !b.store.Persist(seq, data) {
		b.health.Report(health.FaultMemory, componentPersist, "persist failed for in-flight message")
	}
	b.metrics.recordReliableSend()
	b.observer.ObserveReliableSend()
	return seq, true
}

// ProcessFeedback applies consumer feedback (ACK/NACK/BUSY/OVERFLOW/READY)
// to the reliability table and updates the reporting component's health
// accordingly.
func (b *Bus) ProcessFeedback(fb reliability.Feedback) bool {
	ok := b.reliability.Process(fb)
	if !ok {
		b.setLastError(NewSequenceError("ProcessFeedback", fb.Sequence, ErrCodeInvalidKey, "feedback does not match a live entry"))
		return false
	}

	ack := fb.Kind == reliability.FeedbackACK
	nack := fb.Kind == reliability.FeedbackNACK
	retry := fb.Kind == reliability.FeedbackBusy || fb.Kind == reliability.FeedbackOverflow
	b.metrics.recordFeedback(ack, nack, retry)
	b.observer.ObserveFeedback(ack, nack, retry)

	switch fb.Kind {
	case reliability.FeedbackACK:
		b.health.UpdateHealth(componentReliability, true, 0)
	case reliability.FeedbackNACK:
		b.health.Report(health.FaultNetwork, componentReliability, "delivery NACKed")
	}
	return ok
}

// AcknowledgeProcess sweeps the reliability table for timed-out entries
// and re-arms eligible RETRY entries, driving the timeout/retry loop a
// caller should run on a tick (a goroutine, a ticker-driven cmd/ binary,
// or a test harness). It returns the number of entries that timed out this
// call.
func (b *Bus) AcknowledgeProcess() int {
	timedOut := b.reliability.ProcessTimeouts()
	if timedOut > 0 {
		b.health.Report(health.FaultTimeout, componentReliability, "entries timed out")
	}
	b.reliability.RetryFailed()
	return timedOut
}

// ReportFault records a fault against componentID and runs the recovery
// policy against it, returning the assigned fault ID.
func (b *Bus) ReportFault(kind health.FaultKind, componentID uint32, description string) uint64 {
	return b.health.Report(kind, componentID, description)
}

// IsComponentHealthy reports whether componentID is currently healthy,
// including the heartbeat-staleness liveness check.
func (b *Bus) IsComponentHealthy(componentID uint32) bool {
	return b.health.IsComponentHealthy(componentID)
}

// GetSystemHealth returns the bus-wide weighted health aggregate.
func (b *Bus) GetSystemHealth() float64 {
	return b.health.GetSystemHealth()
}

// ComponentHealth returns a point-in-time snapshot of componentID's health
// record, and whether it has ever been reported against (false for an
// unknown component, matching IsComponentHealthy's unknown→false rule).
func (b *Bus) ComponentHealth(componentID uint32) (health.ComponentHealth, bool) {
	return b.health.ComponentSnapshot(componentID)
}

// GetMetrics returns a point-in-time snapshot of bus-wide operation
// counters.
func (b *Bus) GetMetrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// LaneMetrics returns a point-in-time snapshot of lane k's counters.
func (b *Bus) LaneMetrics(k lane.Kind) lane.Metrics {
	return b.lanes.Lane(k).GetMetrics()
}

// ReliabilityStats returns a point-in-time snapshot of the reliability
// overlay's counters.
func (b *Bus) ReliabilityStats() reliability.Stats {
	return b.reliability.GetStats()
}

// SystemThroughputMBps returns the bus's aggregate throughput across all
// lanes over the given window, per §4.2.
func (b *Bus) SystemThroughputMBps(elapsedSeconds float64) float64 {
	return b.lanes.SystemThroughputMBps(elapsedSeconds)
}

// Offload hands data to the configured offload engine. If the engine is
// unavailable or fails, a GPU fault is reported (triggering the FALLBACK
// recovery action) and the caller's own data is returned unchanged so it
// can continue processing inline.
func (b *Bus) Offload(data []byte) []byte {
	if !b.offload.Available() {
		b.health.Report(health.FaultGPU, componentOffload, "offload engine unavailable")
		return data
	}
	result, ok := b.offload.Process(data)
	if !ok {
		b.health.Report(health.FaultGPU, componentOffload, "offload engine failed, falling back inline")
		return data
	}
	b.health.UpdateHealth(componentOffload, true, 0)
	return result
}
