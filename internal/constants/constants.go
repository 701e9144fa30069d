// Package constants holds the fixed configuration values shared across the
// bus: per-lane-kind ring defaults, reliability-overlay defaults, and
// health-overlay defaults.
package constants

import "time"

// Lane ring defaults. These MUST match the specification exactly; they are
// not tunable per-instance because callers select a lane by kind, not by
// capacity.
const (
	ExpressCapacity = 1024
	ExpressSlotSize = 256

	BulkCapacity = 8192
	BulkSlotSize = 65536

	PriorityCapacity = 512
	PrioritySlotSize = 1024

	StreamingCapacity = 16384
	StreamingSlotSize = 4096
)

// Priority weights and latency targets per lane kind.
const (
	ExpressPriorityWeight   = 4
	BulkPriorityWeight      = 1
	PriorityPriorityWeight  = 8
	StreamingPriorityWeight = 2

	ExpressLatencyTargetUs   = 1.0
	BulkLatencyTargetUs      = 100.0
	PriorityLatencyTargetUs  = 0.5
	StreamingLatencyTargetUs = 50.0
)

// FrameLengthPrefixBytes is the size, in bytes, of the little-endian
// payload-length prefix written at offset 0 of every lane slot.
const FrameLengthPrefixBytes = 4

// Reliability overlay defaults.
const (
	DefaultTableCapacity  = 4096
	DefaultTimeoutMs      = 1000
	DefaultMaxRetries     = 3
	DefaultRetryBackoffMs = 100
	DefaultZeroLossMode   = true

	// MaxRetryFirePerTick bounds how many RETRY entries retry_failed
	// re-arms per call, so one producer's backlog can't starve timeout
	// processing for everyone else.
	MaxRetryFirePerTick = 10
)

// Health overlay defaults.
const (
	DefaultFaultRingCapacity    = 1024
	DefaultMaxRetryAttempts     = 3
	ConsecutiveFailuresDegraded = 5

	HealthyThreshold  = 0.95
	DegradedThreshold = 0.70

	// HeartbeatStaleness is the maximum age a component's last heartbeat
	// may reach before IsComponentHealthy forces it unhealthy regardless
	// of its recorded health score.
	HeartbeatStaleness = 5 * time.Second
)

// EWMAAlpha is the smoothing factor used uniformly for lane latency,
// reliability ACK latency, and health response-time tracking.
const EWMAAlpha = 0.1
