// Package lane implements the bus's ring-buffer transport: one bounded,
// fixed-slot ring per traffic kind, with lock-free atomic head/tail
// indices. The design is grounded in the teacher's mmap'd io_uring ring
// discipline (internal/uring in github.com/ehrlich-b/go-ublk) and the
// cache-line-padded SPSC/MPSC ring in other_examples'
// willunylabs-wand/logger/ringbuffer.go: a fixed slot array, counters that
// only ever grow, and producer/consumer indices kept apart on their own
// cache lines so cross-core traffic doesn't bounce a shared line back and
// forth on every submit/drain.
package lane

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/msgbus/internal/clock"
	"github.com/behrlich/msgbus/internal/constants"
	"github.com/behrlich/msgbus/internal/ewma"
)

// Kind identifies one of the four fixed traffic classes. It is a closed
// enumeration: there is no constructor for a fifth kind.
type Kind int

const (
	Express Kind = iota
	Bulk
	Priority
	Streaming
)

// String renders the kind for logging.
func (k Kind) String() string {
	switch k {
	case Express:
		return "EXPRESS"
	case Bulk:
		return "BULK"
	case Priority:
		return "PRIORITY"
	case Streaming:
		return "STREAMING"
	default:
		return "UNKNOWN"
	}
}

// Kinds lists all four lane kinds in a stable order, used by callers that
// need to range over every lane (e.g. the manager's lane array, metrics
// aggregation).
var Kinds = [4]Kind{Express, Bulk, Priority, Streaming}

// Defaults holds the fixed per-kind configuration mandated by the
// specification. Capacity and slot size are never tuned per-instance.
type Defaults struct {
	Capacity          uint64
	SlotSize          uint32
	PriorityWeight    uint32
	LatencyTargetUs   float64
}

// DefaultsFor returns the mandated ring parameters for a kind.
func DefaultsFor(k Kind) Defaults {
	switch k {
	case Express:
		return Defaults{constants.ExpressCapacity, constants.ExpressSlotSize, constants.ExpressPriorityWeight, constants.ExpressLatencyTargetUs}
	case Bulk:
		return Defaults{constants.BulkCapacity, constants.BulkSlotSize, constants.BulkPriorityWeight, constants.BulkLatencyTargetUs}
	case Priority:
		return Defaults{constants.PriorityCapacity, constants.PrioritySlotSize, constants.PriorityPriorityWeight, constants.PriorityLatencyTargetUs}
	case Streaming:
		return Defaults{constants.StreamingCapacity, constants.StreamingSlotSize, constants.StreamingPriorityWeight, constants.StreamingLatencyTargetUs}
	default:
		return Defaults{}
	}
}

// ErrOversizePayload is returned (as part of a false Submit, see the Lane
// doc comment) conceptually; Submit itself only returns bool per the
// external-interface table, callers that need the distinction use
// Lane.MaxPayload to precheck.
var ErrOversizePayload = errors.New("lane: payload exceeds slot capacity")

// paddedCounter is a monotonically increasing 64-bit counter isolated on
// its own cache line so that producer updates to head don't invalidate the
// cache line a consumer is spinning on for tail, and vice versa.
type paddedCounter struct {
	v   atomic.Uint64
	_   [56]byte // pad struct to 64 bytes (v is 8 bytes on all supported platforms)
}

// Lane is one bounded ring buffer carrying a single traffic kind.
type Lane struct {
	kind     Kind
	capacity uint64
	slotSize uint32
	priority uint32
	latencyTargetUs float64

	// spinTimeoutUs overrides 2*latencyTargetUs for tests that want to
	// shrink the busy-wait window instead of racing real microseconds.
	spinTimeoutUs float64

	clock clock.Source

	head paddedCounter
	tail paddedCounter

	slots [][]byte

	totalMessages    atomic.Uint64
	totalBytes       atomic.Uint64
	bytesTransferred atomic.Uint64
	congestionEvents atomic.Uint64

	avgLatencyUs ewma.Float64
	maxLatencyBits atomic.Uint64 // math.Float64bits(maxLatencyUs)

	// snapshot state for GetMetrics' sliding-window rate computation.
	snapMu          sync.Mutex
	snapTime        time.Time
	snapMessages    uint64
	snapBytes       uint64
}

// New creates a Lane of the given kind with the mandated capacity and slot
// size. An optional clock.Source can be injected for deterministic tests;
// passing nil uses clock.Default.
func New(kind Kind, src clock.Source) *Lane {
	d := DefaultsFor(kind)
	if src == nil {
		src = clock.Default
	}
	l := &Lane{
		kind:            kind,
		capacity:        d.Capacity,
		slotSize:        d.SlotSize,
		priority:        d.PriorityWeight,
		latencyTargetUs: d.LatencyTargetUs,
		spinTimeoutUs:   2 * d.LatencyTargetUs,
		clock:           src,
		slots:           make([][]byte, d.Capacity),
	}
	for i := range l.slots {
		l.slots[i] = make([]byte, d.SlotSize)
	}
	l.snapTime = time.Now()
	return l
}

// Kind returns the lane's traffic kind.
func (l *Lane) Kind() Kind { return l.kind }

// Capacity returns the number of slots in the ring.
func (l *Lane) Capacity() uint64 { return l.capacity }

// SlotSize returns the size, in bytes, of each slot (including the 4-byte
// length prefix).
func (l *Lane) SlotSize() uint32 { return l.slotSize }

// PriorityWeight returns the lane's fixed priority weight.
func (l *Lane) PriorityWeight() uint32 { return l.priority }

// MaxPayload returns the largest payload this lane's slots can hold.
func (l *Lane) MaxPayload() int {
	return int(l.slotSize) - constants.FrameLengthPrefixBytes
}

// SetSpinTimeoutUs overrides the busy-wait timeout used by Submit when the
// ring is full. Production code never calls this; it exists so tests can
// shrink an otherwise real-time busy-spin to something that completes in
// microseconds of wall-clock test time.
func (l *Lane) SetSpinTimeoutUs(us float64) {
	l.spinTimeoutUs = us
}

// MessageCount returns the number of messages currently occupying the ring
// (head - tail).
func (l *Lane) MessageCount() uint64 {
	h := l.head.v.Load()
	t := l.tail.v.Load()
	if h < t {
		return 0
	}
	return h - t
}

// Submit reserves a slot, busy-spinning up to 2*latency_target_us if the
// ring is momentarily full, writes the length-prefixed frame, and updates
// per-lane metrics. It returns false if the payload is empty or oversize or
// the ring stayed full past the spin deadline; a false return never blocks
// forever.
func (l *Lane) Submit(data []byte, priority uint32) bool {
	_ = priority // priority only affects routing upstream of the lane; recorded by caller if needed
	if len(data) == 0 || len(data) > l.MaxPayload() {
		return false
	}

	t0 := l.clock.NowMicros()

	// Reserve a slot only once it is free, so a refused submit never moves
	// head and head-tail stays within capacity.
	var idx uint64
	for {
		idx = l.head.v.Load()
		if t := l.tail.v.Load(); idx < t || idx-t < l.capacity {
			if l.head.v.CompareAndSwap(idx, idx+1) {
				break
			}
			continue
		}
		now := l.clock.NowMicros()
		if float64(now-t0) >= l.spinTimeoutUs {
			l.congestionEvents.Add(1)
			return false
		}
	}

	slot := l.slots[idx%l.capacity]
	binary.LittleEndian.PutUint32(slot[0:constants.FrameLengthPrefixBytes], uint32(len(data)))
	copy(slot[constants.FrameLengthPrefixBytes:], data)

	l.totalMessages.Add(1)
	l.totalBytes.Add(uint64(len(data)))
	l.bytesTransferred.Add(uint64(len(data)))

	elapsed := float64(l.clock.NowMicros() - t0)
	l.avgLatencyUs.Update(elapsed)
	l.bumpMaxLatency(elapsed)
	if elapsed > 2*l.latencyTargetUs {
		l.congestionEvents.Add(1)
	}

	return true
}

func (l *Lane) bumpMaxLatency(sample float64) {
	for {
		curBits := l.maxLatencyBits.Load()
		cur := math.Float64frombits(curBits)
		if sample <= cur {
			return
		}
		if l.maxLatencyBits.CompareAndSwap(curBits, math.Float64bits(sample)) {
			return
		}
	}
}

// Drain pops the oldest message, if any, returning its payload and this
// lane's fixed priority weight. It never blocks: an empty ring returns
// (nil, 0, false) immediately. A corrupt slot (invalid length prefix) is
// skipped rather than returned.
func (l *Lane) Drain() ([]byte, uint32, bool) {
	for {
		t := l.tail.v.Load()
		h := l.head.v.Load()
		if t >= h {
			return nil, 0, false
		}

		slot := l.slots[t%l.capacity]
		n := binary.LittleEndian.Uint32(slot[0:constants.FrameLengthPrefixBytes])
		maxLen := uint32(l.slotSize) - constants.FrameLengthPrefixBytes
		if n == 0 || n > maxLen {
			// Empty or corrupt slot: skip it and keep looking.
			l.tail.v.Add(1)
			continue
		}

		out := make([]byte, n)
		copy(out, slot[constants.FrameLengthPrefixBytes:constants.FrameLengthPrefixBytes+n])
		l.tail.v.Add(1)
		return out, l.priority, true
	}
}

// Metrics is a point-in-time snapshot of a lane's counters and derived
// rates, per GetMetrics in the external interface.
type Metrics struct {
	Kind              Kind
	Capacity          uint64
	MessageCount      uint64
	TotalMessages     uint64
	TotalBytes        uint64
	BytesTransferred  uint64
	AvgLatencyUs      float64
	MaxLatencyUs      float64
	P99LatencyUs      float64 // documented approximation: 0.99 * MaxLatencyUs, not a real quantile
	CongestionEvents  uint64
	MessagesPerSecond float64
	BytesPerSecond    float64
}

// GetMetrics returns a snapshot including sliding-window rates computed
// against the previous call (or lane creation time, for the first call).
func (l *Lane) GetMetrics() Metrics {
	totalMessages := l.totalMessages.Load()
	totalBytes := l.totalBytes.Load()
	maxLatency := math.Float64frombits(l.maxLatencyBits.Load())

	l.snapMu.Lock()
	now := time.Now()
	elapsed := now.Sub(l.snapTime).Seconds()
	deltaMessages := totalMessages - l.snapMessages
	deltaBytes := totalBytes - l.snapBytes
	l.snapTime = now
	l.snapMessages = totalMessages
	l.snapBytes = totalBytes
	l.snapMu.Unlock()

	var msgRate, byteRate float64
	if elapsed > 0 {
		msgRate = float64(deltaMessages) / elapsed
		byteRate = float64(deltaBytes) / elapsed
	}

	return Metrics{
		Kind:              l.kind,
		Capacity:          l.capacity,
		MessageCount:      l.MessageCount(),
		TotalMessages:     totalMessages,
		TotalBytes:        totalBytes,
		BytesTransferred:  l.bytesTransferred.Load(),
		AvgLatencyUs:      l.avgLatencyUs.Load(),
		MaxLatencyUs:      maxLatency,
		P99LatencyUs:      0.99 * maxLatency,
		CongestionEvents:  l.congestionEvents.Load(),
		MessagesPerSecond: msgRate,
		BytesPerSecond:    byteRate,
	}
}
