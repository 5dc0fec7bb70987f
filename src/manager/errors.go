package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrExitWithoutPosition is returned when an exit order fills while no
	// position is tracked. The order is still stored as filled; no position is created.
	ErrExitWithoutPosition = errors.New("exit order filled with no tracked position")

	// ErrPositionLimit is returned when an entry is placed while the
	// single-position rule forbids it.
	ErrPositionLimit = errors.New("cannot open position: a position or pending order already exists")

	// ErrPositionMismatch is raised when a close targets a position other than the tracked one.
	ErrPositionMismatch = errors.New("close requested for a position other than the tracked one")

	// ErrEntryFillWhileTracked is returned when the venue fills an entry
	// while another position is tracked. The new position is stored, not tracked.
	ErrEntryFillWhileTracked = errors.New("entry order filled while a position is tracked")

	ErrInvalidOrder = errors.New("invalid order request")
)

// SizingError means no valid quantity could be derived; callers must not place an order.
type SizingError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *SizingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sizing %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("sizing %s: %s", e.Symbol, e.Reason)
}

func (e *SizingError) Unwrap() error { return e.Err }
