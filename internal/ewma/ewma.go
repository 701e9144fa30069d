// Package ewma implements the single exponentially-weighted moving average
// used throughout the bus (lane submit latency, reliability ACK latency,
// component response time): alpha=0.1 for every steady-state update, with
// the first observation set directly rather than blended against a zero
// baseline.
package ewma

import (
	"math"
	"sync/atomic"

	"github.com/behrlich/msgbus/internal/constants"
)

// Alpha is the fixed smoothing factor used everywhere in the bus.
const Alpha = constants.EWMAAlpha

// Update blends sample into current using the fixed Alpha, except when
// hasValue is false, in which case it returns sample unchanged and the
// caller should record hasValue as true. This mirrors the "set directly on
// first observation" rule so a single cold sample doesn't get crushed
// toward zero by a 0.1 weight.
func Update(current float64, sample float64, hasValue bool) float64 {
	if !hasValue {
		return sample
	}
	return 0.9*current + Alpha*sample
}

// Float64 is an atomically-updated EWMA cell for use from multiple
// goroutines. Concurrent updates to the same cell are last-writer-wins by
// design (see the bus's shared-resource policy) rather than serialized,
// since health/latency figures are hints, not ledger entries.
type Float64 struct {
	bits     atomic.Uint64
	hasValue atomic.Bool
}

// Load returns the current value (0 if no sample has been recorded yet).
func (f *Float64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Update records a new sample into the EWMA.
func (f *Float64) Update(sample float64) {
	if !f.hasValue.Swap(true) {
		f.bits.Store(math.Float64bits(sample))
		return
	}
	current := math.Float64frombits(f.bits.Load())
	f.bits.Store(math.Float64bits(0.9*current + Alpha*sample))
}

// HasValue reports whether at least one sample has been recorded.
func (f *Float64) HasValue() bool {
	return f.hasValue.Load()
}
