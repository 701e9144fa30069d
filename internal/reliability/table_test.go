package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/msgbus/internal/clock"
)

// TestHashMatchesFNV1a is P9: message_hash equals FNV-1a with the mandated
// constants.
func TestHashMatchesFNV1a(t *testing.T) {
	// Known FNV-1a 32-bit digest for the empty string and for "a".
	assert.Equal(t, uint32(2166136261), HashMessage(nil))
	assert.Equal(t, uint32(0xe40c292c), HashMessage([]byte("a")))
}

// TestReliabilityACK is scenario S3.
func TestReliabilityACK(t *testing.T) {
	fc := clock.NewFake(1000)
	table := NewTable(DefaultConfig(), fc)

	seq, ok := table.Send(1, 2, []byte("x"))
	require.True(t, ok)

	fc.Advance(50)
	require.True(t, table.Process(MakeACK(seq, 1, 2, fc.NowMicros())))

	stats := table.GetStats()
	assert.Equal(t, int64(0), stats.PendingCount)
	assert.Equal(t, uint64(1), stats.SuccessfulAcks)
}

// TestReliabilityRetryThenNACK is scenario S4: with max_retries=1, two BUSY
// feedbacks in a row transition PENDING->RETRY->(after re-arm)->NACKED.
func TestReliabilityRetryThenNACK(t *testing.T) {
	fc := clock.NewFake(0)
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	table := NewTable(cfg, fc)

	seq, ok := table.Send(1, 2, []byte("x"))
	require.True(t, ok)

	require.True(t, table.Process(MakeBusy(seq, 1, 2, fc.NowMicros())))
	state, ok := table.EntryState(seq)
	require.True(t, ok)
	assert.Equal(t, StateRetry, state)

	require.True(t, table.RetryFailed())
	state, _ = table.EntryState(seq)
	assert.Equal(t, StatePending, state)

	require.True(t, table.Process(MakeBusy(seq, 1, 2, fc.NowMicros())))
	state, _ = table.EntryState(seq)
	assert.Equal(t, StateNACKed, state)

	stats := table.GetStats()
	assert.Equal(t, uint64(1), stats.FailedDeliveries)
}

func TestReliabilityProcessRejectsMismatchedKey(t *testing.T) {
	fc := clock.NewFake(0)
	table := NewTable(DefaultConfig(), fc)

	seq, ok := table.Send(1, 2, []byte("x"))
	require.True(t, ok)

	assert.False(t, table.Process(MakeACK(seq, 99, 2, fc.NowMicros())), "wrong producer should be rejected")
	assert.False(t, table.Process(MakeACK(seq+1, 1, 2, fc.NowMicros())), "unknown sequence should be rejected")
}

func TestReliabilityTableFullRefusesSend(t *testing.T) {
	fc := clock.NewFake(0)
	cfg := DefaultConfig()
	cfg.Capacity = 4
	table := NewTable(cfg, fc)

	for i := 0; i < 4; i++ {
		_, ok := table.Send(1, 2, []byte("x"))
		require.True(t, ok)
	}
	_, ok := table.Send(1, 2, []byte("x"))
	assert.False(t, ok, "table should refuse once full")
}

// TestRetryBound is P5: no entry's retry_count exceeds max_retries, and
// every entry eventually reaches a terminal state.
func TestRetryBound(t *testing.T) {
	fc := clock.NewFake(0)
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	table := NewTable(cfg, fc)

	seq, ok := table.Send(1, 2, []byte("x"))
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		table.Process(MakeOverflow(seq, 1, 2, fc.NowMicros()))
		table.RetryFailed()
	}

	state, _ := table.EntryState(seq)
	assert.Contains(t, []State{StateACKed, StateNACKed, StateTimeout}, state)
}

// TestPendingInvariant is P6: pending_count equals the number of entries
// in PENDING or RETRY.
func TestPendingInvariant(t *testing.T) {
	fc := clock.NewFake(0)
	table := NewTable(DefaultConfig(), fc)

	var seqs []uint64
	for i := 0; i < 5; i++ {
		seq, ok := table.Send(1, 2, []byte("x"))
		require.True(t, ok)
		seqs = append(seqs, seq)
	}
	assert.Equal(t, int64(5), table.PendingCount())

	table.Process(MakeACK(seqs[0], 1, 2, fc.NowMicros()))
	table.Process(MakeBusy(seqs[1], 1, 2, fc.NowMicros())) // -> RETRY, still pending
	assert.Equal(t, int64(4), table.PendingCount())
}

func TestProcessTimeouts(t *testing.T) {
	fc := clock.NewFake(0)
	cfg := DefaultConfig()
	cfg.ZeroLossMode = false
	table := NewTable(cfg, fc)

	seq, ok := table.Send(1, 2, []byte("x"))
	require.True(t, ok)

	fc.Advance((cfg.DefaultTimeoutMs + 1) * 1000)
	n := table.ProcessTimeouts()
	assert.Equal(t, 1, n)

	state, _ := table.EntryState(seq)
	assert.Equal(t, StateTimeout, state)
	assert.Equal(t, int64(0), table.PendingCount())
}

func TestCanSendFlowControl(t *testing.T) {
	fc := clock.NewFake(0)
	cfg := DefaultConfig()
	cfg.Capacity = 16
	table := NewTable(cfg, fc)

	assert.True(t, table.CanSend(1))
	for i := 0; i < 4; i++ {
		_, ok := table.Send(1, 2, []byte("x"))
		require.True(t, ok)
	}
	assert.False(t, table.CanSend(1), "producer should be throttled past capacity/4 global pending")
}
