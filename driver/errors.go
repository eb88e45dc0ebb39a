package driver

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a bounded wait that expired before its condition held.
	ErrTimeout = errors.New("wait timed out")

	// ErrNoSuchElement marks a query that matched nothing.
	ErrNoSuchElement = errors.New("no such element")

	// ErrForeignElement is returned when an ElementRef from another backend
	// is passed in.
	ErrForeignElement = errors.New("element does not belong to this driver")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("driver closed")
)

// Error is the DriverError of the session core: any failure of an underlying
// browser operation, including connection failures.
type Error struct {
	Op  string // e.g. "navigate", "click"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap attaches op to err. Deadline expiry is folded into ErrTimeout so
// callers only need one sentinel for every backend.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &Error{Op: op, Err: err}
}

// IsTimeout reports whether err is (or wraps) ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
