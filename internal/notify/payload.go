package notify

import (
	"time"

	"sprayDispatch/models"
)

// BookingPayload is the data of a booking_updated message.
type BookingPayload struct {
	Booking        models.Booking `json:"booking"`
	PreviousStatus string         `json:"previousStatus"`
	At             time.Time      `json:"at"`
}
