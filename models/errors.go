package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrValidation        = errors.New("validation failed")
)

// StatusError reports a status string outside the closed set.
type StatusError struct {
	Value string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

func (e *StatusError) Is(target error) bool { return target == ErrInvalidStatus }

// InvalidTransitionError reports an edge missing from the booking status machine.
// Event is empty when the caller asked for a target status directly.
type InvalidTransitionError struct {
	From  BookingStatus
	To    BookingStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("cannot %s a booking in status %s", e.Event, e.From)
	}
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
