package store

import (
	"context"
	"time"

	"sprayDispatch/models"
)

// MockOperator is the demo profile merged with the phone on login.
func MockOperator() models.Operator {
	return models.Operator{
		ID:                "1",
		Name:              "Rajesh Kumar",
		Phone:             "+91 98765 43210",
		Email:             "rajesh@example.com",
		Address:           "Village Khera, Ludhiana, Punjab",
		LicenseNumber:     "DRN-PB-2024-001234",
		DroneModel:        "DJI Agras T40",
		DroneRegistration: "UA-PB-2024-00567",
		InsuranceExpiry:   "2025-06-30",
		HomeLocation:      &models.Coordinates{Latitude: 30.9010, Longitude: 75.8573},
	}
}

// MockBookings returns the demo bookings dated relative to now: three open
// jobs today and three completed on each of the previous three days.
func MockBookings(now time.Time) []models.Booking {
	day := 24 * time.Hour
	ago := func(n int) *time.Time {
		t := now.Add(-time.Duration(n) * day)
		return &t
	}
	date := func(n int) string { return DateString(now.Add(-time.Duration(n) * day)) }

	return []models.Booking{
		{
			ID: "1", FarmerName: "Gurpreet Singh", FarmerPhone: "+91 98123 45678",
			Village: "Moga", District: "Punjab", Acreage: 15, CropType: "Wheat",
			SprayType: models.SprayTypePesticide, ScheduledDate: date(0), ScheduledTime: "09:00 AM",
			Amount: 4500, PaymentStatus: models.PaymentStatusUnpaid, Status: models.BookingStatusPending,
			Location: &models.Coordinates{Latitude: 30.8162, Longitude: 75.1741},
		},
		{
			ID: "2", FarmerName: "Harinder Kaur", FarmerPhone: "+91 99876 54321",
			Village: "Barnala", District: "Punjab", Acreage: 8, CropType: "Rice",
			SprayType: models.SprayTypeFertilizer, ScheduledDate: date(0), ScheduledTime: "11:30 AM",
			SpecialInstructions: "Please spray only in the morning before 12 PM",
			Amount:              2400, PaymentStatus: models.PaymentStatusPaid, Status: models.BookingStatusActive,
			Location: &models.Coordinates{Latitude: 30.3815, Longitude: 75.5472},
		},
		{
			ID: "3", FarmerName: "Manjeet Singh", FarmerPhone: "+91 97654 32109",
			Village: "Sangrur", District: "Punjab", Acreage: 20, CropType: "Cotton",
			SprayType: models.SprayTypePesticide, ScheduledDate: date(0), ScheduledTime: "02:00 PM",
			Amount: 6000, PaymentStatus: models.PaymentStatusUnpaid, Status: models.BookingStatusPending,
			Location: &models.Coordinates{Latitude: 30.2331, Longitude: 75.8406},
		},
		{
			ID: "4", FarmerName: "Sukhdev Sharma", FarmerPhone: "+91 96543 21098",
			Village: "Bathinda", District: "Punjab", Acreage: 12, CropType: "Mustard",
			SprayType: models.SprayTypeFertilizer, ScheduledDate: date(1), ScheduledTime: "10:00 AM",
			Amount: 3600, PaymentStatus: models.PaymentStatusPaid, Status: models.BookingStatusCompleted,
			CompletedAt: ago(1),
			Location:    &models.Coordinates{Latitude: 30.2110, Longitude: 74.9455},
		},
		{
			ID: "5", FarmerName: "Amarjeet Gill", FarmerPhone: "+91 95432 10987",
			Village: "Faridkot", District: "Punjab", Acreage: 25, CropType: "Sugarcane",
			SprayType: models.SprayTypePesticide, ScheduledDate: date(2), ScheduledTime: "08:00 AM",
			Amount: 7500, PaymentStatus: models.PaymentStatusPaid, Status: models.BookingStatusCompleted,
			CompletedAt: ago(2),
			Location:    &models.Coordinates{Latitude: 30.6740, Longitude: 74.7580},
		},
		{
			ID: "6", FarmerName: "Kuldeep Dhillon", FarmerPhone: "+91 94321 09876",
			Village: "Amritsar", District: "Punjab", Acreage: 18, CropType: "Wheat",
			SprayType: models.SprayTypePesticide, ScheduledDate: date(3), ScheduledTime: "09:30 AM",
			Amount: 5400, PaymentStatus: models.PaymentStatusPaid, Status: models.BookingStatusCompleted,
			CompletedAt: ago(3),
			Location:    &models.Coordinates{Latitude: 31.6340, Longitude: 74.8723},
		},
	}
}

// MockSeed seeds the store with MockBookings dated from the clock in loc.
func MockSeed(now Clock, loc *time.Location) SeedFunc {
	return func(context.Context) ([]models.Booking, error) {
		if loc == nil {
			loc = time.Local
		}
		return MockBookings(now().In(loc)), nil
	}
}

// StaticSeed seeds the store with a fixed collection.
func StaticSeed(bookings []models.Booking) SeedFunc {
	return func(context.Context) ([]models.Booking, error) {
		return bookings, nil
	}
}
