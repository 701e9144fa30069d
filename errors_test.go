package msgbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesLane(t *testing.T) {
	err := NewLaneError("SubmitTo", "EXPRESS", ErrCodeCapacityExhausted, "ring full")
	assert.Contains(t, err.Error(), "EXPRESS")
	assert.Contains(t, err.Error(), "ring full")
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("Op1", ErrCodeInvalidState, "bad state")
	b := NewError("Op2", ErrCodeInvalidState, "different message, same code")
	c := NewError("Op3", ErrCodeOversizePayload, "too big")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsCode(t *testing.T) {
	err := NewSequenceError("ProcessFeedback", 42, ErrCodeInvalidKey, "mismatch")
	assert.True(t, IsCode(err, ErrCodeInvalidKey))
	assert.False(t, IsCode(err, ErrCodeInvalidState))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeInvalidKey))
}

func TestWrappedErrorUnwraps(t *testing.T) {
	inner := errors.New("root cause")
	err := &Error{Op: "X", Code: ErrCodeInvalidState, Inner: inner}
	assert.ErrorIs(t, err, inner)
}
