package grpcserver

import (
	"time"

	"sprayDispatch/internal/route"
	"sprayDispatch/internal/store"
	"sprayDispatch/models"
)

// Requests and responses travel as google.protobuf.Struct; these are their
// JSON shapes.

type Empty struct{}

type RequestOTPRequest struct {
	Phone string `json:"phone"`
}

// OTPChallenge carries the code itself because login is a mock with no SMS leg.
type OTPChallenge struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Operator  models.Operator `json:"operator"`
}

type OperatorResponse struct {
	Operator models.Operator `json:"operator"`
}

type ListBookingsRequest struct {
	Statuses []string `json:"statuses"`
}

type BookingList struct {
	Bookings []models.Booking `json:"bookings"`
}

type GetBookingRequest struct {
	ID string `json:"id"`
}

// BookingResponse has a null booking when a permissive update hit an unknown id.
type BookingResponse struct {
	Booking *models.Booking `json:"booking"`
}

type UpdateBookingStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ApplyBookingEventRequest struct {
	ID    string `json:"id"`
	Event string `json:"event"`
}

type GetEarningsRequest struct {
	Period string `json:"period"`
}

type EarningsResponse struct {
	Period  store.Period  `json:"period"`
	Summary store.Summary `json:"summary"`
}

type GetHistoryRequest struct {
	Window string `json:"window"`
}

type UpcomingResponse struct {
	Days []store.DayGroup `json:"days"`
}

type PlanRouteRequest struct {
	Date   string `json:"date"`
	Filter string `json:"filter"`
}

type RouteResponse struct {
	Date    string              `json:"date"`
	Filter  route.Filter        `json:"filter"`
	Home    *models.Coordinates `json:"home,omitempty"`
	Stops   []route.Stop        `json:"stops"`
	TotalKm float64             `json:"totalKm"`
}

// Watch event types.
const (
	EventSnapshot       = "snapshot"
	EventBookingUpdated = "booking_updated"
	EventLoggedOut      = "operator_logged_out"
)

// WatchEvent is one message of the WatchBookings stream. The first one is
// always a snapshot.
type WatchEvent struct {
	Type           string           `json:"type"`
	Bookings       []models.Booking `json:"bookings,omitempty"`
	Booking        *models.Booking  `json:"booking,omitempty"`
	PreviousStatus string           `json:"previousStatus,omitempty"`
	At             time.Time        `json:"at"`
}

// UpdateOperatorRequest is a partial profile update.
type UpdateOperatorRequest = models.OperatorPatch
