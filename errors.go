package msgbus

import (
	"errors"
	"fmt"
)

// Error is a structured bus error with enough context to log or match on
// without string-parsing. Grounded on the teacher's *ublk.Error
// (errors.go), generalized from device/queue/errno context to the bus's
// own coordinates (lane kind, sequence number).
type Error struct {
	Op       string // operation that failed, e.g. "Submit", "SendReliable"
	Lane     string // lane kind, if applicable ("" if not applicable)
	Sequence uint64 // reliability sequence number, if applicable
	Code     ErrorCode
	Msg      string
	Inner    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Lane != "" {
		return fmt.Sprintf("msgbus: %s: %s (lane=%s)", e.Op, msg, e.Lane)
	}
	if e.Sequence != 0 {
		return fmt.Sprintf("msgbus: %s: %s (seq=%d)", e.Op, msg, e.Sequence)
	}
	return fmt.Sprintf("msgbus: %s: %s", e.Op, msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support: two *Error values match if their codes
// match.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode is the closed set of high-level bus error categories.
type ErrorCode string

const (
	ErrCodeCapacityExhausted ErrorCode = "capacity exhausted"
	ErrCodeOversizePayload   ErrorCode = "oversize payload"
	ErrCodeInvalidKey        ErrorCode = "invalid key"
	ErrCodeInvalidState      ErrorCode = "invalid state"
	ErrCodeUnknownLane       ErrorCode = "unknown lane"
)

// NewError creates a structured bus error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewLaneError creates a structured bus error scoped to a lane.
func NewLaneError(op, lane string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Lane: lane, Code: code, Msg: msg}
}

// NewSequenceError creates a structured bus error scoped to a reliability
// sequence number.
func NewSequenceError(op string, seq uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Sequence: seq, Code: code, Msg: msg}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
