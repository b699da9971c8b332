package models

import (
	"fmt"
	"time"
)

// SprayType is what gets sprayed on the field.
type SprayType string

const (
	SprayTypePesticide  SprayType = "pesticide"
	SprayTypeFertilizer SprayType = "fertilizer"
)

func (s SprayType) Valid() bool {
	return s == SprayTypePesticide || s == SprayTypeFertilizer
}

// PaymentStatus tracks whether the farmer has paid.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusUnpaid PaymentStatus = "unpaid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentStatusPaid || p == PaymentStatusUnpaid
}

// DateLayout is the calendar-date format used for ScheduledDate.
const DateLayout = "2006-01-02"

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Latitude  float64 `db:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `db:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
}

// Booking is a single spraying job requested by a farmer.
// Location and CompletedAt are nullable; pointers distinguish null from zero.
type Booking struct {
	ID                  string        `db:"id" json:"id" validate:"required"`
	FarmerName          string        `db:"farmer_name" json:"farmerName" validate:"required"`
	FarmerPhone         string        `db:"farmer_phone" json:"farmerPhone"`
	Village             string        `db:"village" json:"village"`
	District            string        `db:"district" json:"district"`
	Acreage             float64       `db:"acreage" json:"acreage" validate:"gt=0"`
	CropType            string        `db:"crop_type" json:"cropType"`
	SprayType           SprayType     `db:"spray_type" json:"sprayType" validate:"oneof=pesticide fertilizer"`
	ScheduledDate       string        `db:"scheduled_date" json:"scheduledDate" validate:"datetime=2006-01-02"`
	ScheduledTime       string        `db:"scheduled_time" json:"scheduledTime" validate:"required,clock12"`
	SpecialInstructions string        `db:"special_instructions" json:"specialInstructions,omitempty"`
	Amount              int64         `db:"amount" json:"amount" validate:"gte=0"`
	PaymentStatus       PaymentStatus `db:"payment_status" json:"paymentStatus" validate:"oneof=paid unpaid"`
	Status              BookingStatus `db:"status" json:"status" validate:"oneof=pending active in_progress completed cancelled"`
	CompletedAt         *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	Location            *Coordinates  `db:"-" json:"location,omitempty" validate:"omitempty"`
}

// Clone returns a deep copy so callers cannot reach the store's records.
func (b Booking) Clone() Booking {
	out := b
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	if b.Location != nil {
		l := *b.Location
		out.Location = &l
	}
	return out
}

// CheckCompletion enforces that CompletedAt is set exactly when the booking is completed.
func (b Booking) CheckCompletion() error {
	if b.Status == BookingStatusCompleted && b.CompletedAt == nil {
		return fmt.Errorf("%w: booking %s is completed without completedAt", ErrValidation, b.ID)
	}
	if b.Status != BookingStatusCompleted && b.CompletedAt != nil {
		return fmt.Errorf("%w: booking %s has completedAt but status %s", ErrValidation, b.ID, b.Status)
	}
	return nil
}
