package selection

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection means the entered text matched no offered option.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNotReady means a user action arrived before startup finished.
	ErrNotReady = errors.New("still loading, try again in a moment")
	// ErrStale means a result arrived for a selection that has since changed.
	ErrStale = errors.New("result no longer matches the selection")
)

// SelectionError describes a rejected selection.
type SelectionError struct {
	Field string // "region", "stop" or "bus"
	Value string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%q is not a known %s", e.Value, e.Field)
}

func (e *SelectionError) Unwrap() error {
	return ErrInvalidSelection
}
