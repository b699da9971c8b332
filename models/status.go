package models

import (
	"fmt"
	"strings"
)

// BookingStatus represents the current progress of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusActive     BookingStatus = "active"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// AllBookingStatuses lists every status in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusActive,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusActive, BookingStatusInProgress,
		BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// ParseBookingStatus accepts the wire form, case-insensitively.
func ParseBookingStatus(v string) (BookingStatus, error) {
	s := BookingStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &StatusError{Value: v}
	}
	return s, nil
}

// Event is an operator action that moves a booking between statuses.
type Event string

const (
	EventAccept   Event = "accept"
	EventDecline  Event = "decline"
	EventStart    Event = "start"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
)

func (e Event) Valid() bool {
	switch e {
	case EventAccept, EventDecline, EventStart, EventCancel, EventComplete:
		return true
	}
	return false
}

// ParseEvent accepts the wire form of an event, case-insensitively.
func ParseEvent(v string) (Event, error) {
	e := Event(strings.ToLower(strings.TrimSpace(v)))
	if !e.Valid() {
		return "", fmt.Errorf("%w: unknown event %q", ErrValidation, v)
	}
	return e, nil
}

type edge struct {
	from  BookingStatus
	event Event
}

var transitions = map[edge]BookingStatus{
	{BookingStatusPending, EventAccept}:      BookingStatusActive,
	{BookingStatusPending, EventDecline}:     BookingStatusCancelled,
	{BookingStatusActive, EventStart}:        BookingStatusInProgress,
	{BookingStatusActive, EventCancel}:       BookingStatusCancelled,
	{BookingStatusInProgress, EventCancel}:   BookingStatusCancelled,
	{BookingStatusInProgress, EventComplete}: BookingStatusCompleted,
}

// Next returns the status reached by applying ev in from.
func Next(from BookingStatus, ev Event) (BookingStatus, error) {
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: ev}
	}
	return to, nil
}

// CanTransition reports whether some event moves from into to.
// Staying in the same status is always allowed.
func CanTransition(from, to BookingStatus) bool {
	if from == to {
		return true
	}
	for e, dst := range transitions {
		if e.from == from && dst == to {
			return true
		}
	}
	return false
}

// Targets returns the statuses reachable from s in one step.
func Targets(s BookingStatus) []BookingStatus {
	var out []BookingStatus
	for _, cand := range AllBookingStatuses {
		if cand != s && CanTransition(s, cand) {
			out = append(out, cand)
		}
	}
	return out
}
