package repository

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by writes that target a row that does not exist.
	// Reads return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	// ErrMultipleActivePositions means the single-position rule is broken in the store.
	ErrMultipleActivePositions = errors.New("more than one active position in store")
)

// ActivePositionConflictError carries the ids found when more than one
// position is active at once.
type ActivePositionConflictError struct {
	PositionIDs []string
}

func (e *ActivePositionConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMultipleActivePositions, strings.Join(e.PositionIDs, ", "))
}

func (e *ActivePositionConflictError) Unwrap() error {
	return ErrMultipleActivePositions
}
