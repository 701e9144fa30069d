// Package reliability implements the reliable-delivery overlay: an
// in-flight table keyed by sequence number, consumer feedback processing,
// timeout detection, and bounded exponential-backoff retries. Grounded in
// the teacher's per-tag state tracking in queue.Runner (tagStates,
// tagMutexes in github.com/ehrlich-b/go-ublk's internal/queue/runner.go),
// which serializes a fixed number of in-flight kernel requests through a
// small state machine — generalized here to an arbitrary number of
// in-flight messages ring-keyed by sequence instead of a fixed tag array.
package reliability

import (
	"hash/fnv"
	"sync"

	"github.com/behrlich/msgbus/internal/clock"
	"github.com/behrlich/msgbus/internal/constants"
	"github.com/behrlich/msgbus/internal/ewma"
)

// HashMessage computes the FNV-1a 32-bit hash mandated by the
// specification (offset 2166136261, prime 16777619). hash/fnv.New32a
// implements exactly this algorithm, so there is no hand-rolled hash here.
func HashMessage(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data) //nolint:errcheck // hash.Hash.Write never returns an error
	return h.Sum32()
}

// Config holds the reliability overlay's tunables.
type Config struct {
	Capacity       uint64
	DefaultTimeoutMs int64
	MaxRetries     int
	RetryBackoffMs int64
	ZeroLossMode   bool
}

// DefaultConfig returns the mandated reliability-overlay defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:         constants.DefaultTableCapacity,
		DefaultTimeoutMs: constants.DefaultTimeoutMs,
		MaxRetries:       constants.DefaultMaxRetries,
		RetryBackoffMs:   constants.DefaultRetryBackoffMs,
		ZeroLossMode:     constants.DefaultZeroLossMode,
	}
}

// Table is the reliability overlay, also known in the specification as
// the HandshakeManager.
type Table struct {
	cfg   Config
	clock clock.Source

	mu      sync.Mutex
	entries []Entry
	head    uint64
	tail    uint64

	pendingCount       int64
	perProducerPending map[uint32]int64

	totalMessages    uint64
	successfulAcks   uint64
	failedDeliveries uint64
	timeoutsCount    uint64
	retriesCount     uint64

	ackLatencyUs ewma.Float64
}

// NewTable creates a Table with the given configuration and clock source.
func NewTable(cfg Config, src clock.Source) *Table {
	if src == nil {
		src = clock.Default
	}
	if cfg.Capacity == 0 {
		cfg = DefaultConfig()
	}
	return &Table{
		cfg:                cfg,
		clock:              src,
		entries:            make([]Entry, cfg.Capacity),
		perProducerPending: make(map[uint32]int64),
	}
}

// Send registers a new in-flight entry and returns its sequence number, or
// false if the table is full. Fullness is a one-shot check before
// allocation (open question 2): under contention this can produce false
// rejections rather than racily overshoot capacity.
func (t *Table) Send(producerID, consumerID uint32, data []byte) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reclaimLocked()
	if t.head-t.tail >= t.cfg.Capacity {
		return 0, false
	}

	seq := t.head
	t.head++

	e := &t.entries[seq%t.cfg.Capacity]
	*e = Entry{
		Sequence:        seq,
		ProducerID:      producerID,
		ConsumerID:      consumerID,
		MessageSize:     uint32(len(data)),
		MessageHash:     HashMessage(data),
		State:           StatePending,
		RetryCount:      0,
		TimeoutMs:       t.cfg.DefaultTimeoutMs,
		SentTimestampUs: t.clock.NowMicros(),
		occupied:        true,
	}

	t.pendingCount++
	t.perProducerPending[producerID]++
	t.totalMessages++

	return seq, true
}

// reclaimLocked advances tail past any terminal (resolved) entries at the
// front of the ring so their slots can be reused. Must be called with mu
// held.
func (t *Table) reclaimLocked() {
	for t.tail < t.head {
		e := &t.entries[t.tail%t.cfg.Capacity]
		if !e.occupied {
			t.tail++
			continue
		}
		switch e.State {
		case StateACKed, StateNACKed, StateTimeout:
			e.occupied = false
			t.tail++
		default:
			return
		}
	}
}

// lookupLocked returns the entry for seq if it is currently occupied and
// matches seq, or nil. Must be called with mu held.
func (t *Table) lookupLocked(seq uint64) *Entry {
	if seq >= t.head || seq < t.tail {
		return nil
	}
	e := &t.entries[seq%t.cfg.Capacity]
	if !e.occupied || e.Sequence != seq {
		return nil
	}
	return e
}

// Process applies consumer feedback to the matching entry, per the
// ACK/NACK/BUSY/OVERFLOW/READY effect table in §4.3. It returns false if
// the feedback's (sequence, producerID, consumerID) doesn't match a live
// entry, or if that entry is already ACKED, NACKED or TIMEOUT.
func (t *Table) Process(fb Feedback) bool {
	if fb.Kind == FeedbackReady {
		// READY is a proactive flow signal with no sequence; it never
		// mutates an entry.
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.lookupLocked(fb.Sequence)
	if e == nil || e.ProducerID != fb.ProducerID || e.ConsumerID != fb.ConsumerID {
		return false
	}
	if e.State != StatePending && e.State != StateRetry {
		// Already resolved; feedback for it must not touch the counters again.
		return false
	}

	switch fb.Kind {
	case FeedbackACK:
		e.State = StateACKed
		e.AckTimestampUs = fb.TimestampUs
		t.successfulAcks++
		latencyUs := float64(e.AckTimestampUs - e.SentTimestampUs)
		t.ackLatencyUs.Update(latencyUs)
		t.decPending(e.ProducerID)

	case FeedbackNACK:
		if t.cfg.ZeroLossMode && e.RetryCount < t.cfg.MaxRetries {
			e.State = StateRetry
			e.RetryCount++
			t.retriesCount++
		} else {
			e.State = StateNACKed
			t.failedDeliveries++
			t.decPending(e.ProducerID)
		}

	case FeedbackBusy:
		if e.RetryCount < t.cfg.MaxRetries {
			e.State = StateRetry
			e.RetryCount++
			e.TimeoutMs += t.cfg.RetryBackoffMs
			t.retriesCount++
		} else {
			e.State = StateNACKed
			t.failedDeliveries++
			t.decPending(e.ProducerID)
		}

	case FeedbackOverflow:
		if e.RetryCount < t.cfg.MaxRetries {
			e.State = StateRetry
			e.RetryCount++
			e.TimeoutMs *= 2
			t.retriesCount++
		} else {
			e.State = StateNACKed
			t.failedDeliveries++
			t.decPending(e.ProducerID)
		}
	}

	return true
}

// decPending must be called with mu held; it decrements both the global
// and per-producer pending counts for a terminal transition.
func (t *Table) decPending(producerID uint32) {
	t.pendingCount--
	t.perProducerPending[producerID]--
}

// ProcessTimeouts scans PENDING entries and transitions any whose deadline
// has passed to RETRY (if zero-loss and retries remain) or TIMEOUT.
// Returns the number of entries that timed out (including those that were
// re-armed as RETRY).
func (t *Table) ProcessTimeouts() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.NowMicros()
	count := 0
	for seq := t.tail; seq < t.head; seq++ {
		e := &t.entries[seq%t.cfg.Capacity]
		if !e.occupied || e.Sequence != seq || e.State != StatePending {
			continue
		}
		if now-e.SentTimestampUs <= e.TimeoutMs*1000 {
			continue
		}

		count++
		t.timeoutsCount++
		if t.cfg.ZeroLossMode && e.RetryCount < t.cfg.MaxRetries {
			e.State = StateRetry
			e.RetryCount++
			e.TimeoutMs *= 2
			t.retriesCount++
		} else {
			e.State = StateTimeout
			t.decPending(e.ProducerID)
		}
	}
	return count
}

// RetryFailed re-arms up to constants.MaxRetryFirePerTick entries currently
// in RETRY, resetting them to PENDING with a fresh sent timestamp. Returns
// whether any entry was re-armed.
func (t *Table) RetryFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.NowMicros()
	armed := false
	fired := 0
	for seq := t.tail; seq < t.head && fired < constants.MaxRetryFirePerTick; seq++ {
		e := &t.entries[seq%t.cfg.Capacity]
		if !e.occupied || e.Sequence != seq || e.State != StateRetry {
			continue
		}
		e.State = StatePending
		e.SentTimestampUs = now
		armed = true
		fired++
	}
	return armed
}

// CanSend reports whether producerID is within both the global and
// per-producer flow-control windows (open question 3: both are tracked).
func (t *Table) CanSend(producerID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	globalOK := t.pendingCount < int64(t.cfg.Capacity)/4
	producerOK := t.perProducerPending[producerID] < int64(t.cfg.Capacity)/16
	return globalOK && producerOK
}

// PendingCount returns the number of entries currently PENDING or RETRY
// (P6).
func (t *Table) PendingCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingCount
}

// EntryState returns the current state of seq and whether it is a live
// entry.
func (t *Table) EntryState(seq uint64) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookupLocked(seq)
	if e == nil {
		return 0, false
	}
	return e.State, true
}

// Stats is a point-in-time snapshot of the reliability overlay's counters.
type Stats struct {
	TotalMessages    uint64
	SuccessfulAcks   uint64
	FailedDeliveries uint64
	Timeouts         uint64
	Retries          uint64
	PendingCount     int64
	AckLatencyUs     float64
}

// GetStats returns a snapshot of the overlay's counters.
func (t *Table) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		TotalMessages:    t.totalMessages,
		SuccessfulAcks:   t.successfulAcks,
		FailedDeliveries: t.failedDeliveries,
		Timeouts:         t.timeoutsCount,
		Retries:          t.retriesCount,
		PendingCount:     t.pendingCount,
		AckLatencyUs:     t.ackLatencyUs.Load(),
	}
}
