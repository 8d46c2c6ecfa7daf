// Error classification shared by all backends.
//
// The engine's recovery policy keys off two kinds: conflicts are row-scoped
// (isolate, log, continue) and connection failures are batch-scoped (retry
// with backoff, then fail the table). Backends translate their driver's
// error vocabulary into these kinds; everything the engine cannot attribute
// to a single row is treated as a connection-class failure so it lands in
// the bounded-retry path instead of being dropped.

package store

import (
	"errors"
	"fmt"
)

// Kind classifies a store error.
type Kind int

const (
	// KindConnection covers transient unavailability: dial failures,
	// timeouts, dropped connections, deadlocks, admin shutdown.
	KindConnection Kind = iota
	// KindConflict covers row-scoped constraint violations: duplicate keys,
	// invalid foreign keys, check/not-null violations, bad value coercion.
	KindConflict
)

func (k Kind) String() string {
	if k == KindConflict {
		return "conflict"
	}
	return "connection"
}

// Error wraps a driver error with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Conflict wraps err as a row-scoped constraint violation.
func Conflict(err error) error {
	return &Error{Kind: KindConflict, Err: err}
}

// Connection wraps err as a transient connection-class failure.
func Connection(err error) error {
	return &Error{Kind: KindConnection, Err: err}
}

// IsConflict reports whether err is classified as a row-scoped conflict.
func IsConflict(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindConflict
}

// IsConnection reports whether err is classified as connection-class.
// Unclassified errors count as connection-class so they get the bounded
// retry rather than silent row loss.
func IsConnection(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == KindConnection
	}
	return true
}
