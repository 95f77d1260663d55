package sched

import "github.com/cockroachdb/errors"

// Error taxonomy. Every failed operation returns one of these sentinels
// (wrapped with call-site context); test with errors.Is. A failed operation
// leaves prior state intact and is never retried internally.
var (
	// ErrInvalidArgument covers zero or negative slice ticks and
	// out-of-range priorities.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState covers transitions the thread's current state does
	// not permit, e.g. operating on a Terminated thread.
	ErrInvalidState = errors.New("invalid state")

	// ErrResourceExhausted is returned when the thread table is full.
	ErrResourceExhausted = errors.New("resource exhausted")
)
