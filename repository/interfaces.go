package repository

import (
	"context"
	"time"

	"sprayDispatch/models"
)

// BookingRepositoryI defines operations on persisted bookings.
type BookingRepositoryI interface {
	Insert(ctx context.Context, b *models.Booking) error
	SeedIfEmpty(ctx context.Context, bookings []models.Booking) (int, error)
	List(ctx context.Context) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, completedAt *time.Time) error
	CountByStatus(ctx context.Context) (map[models.BookingStatus]int, error)
}

// OperatorRepositoryI defines operations on the operator profile.
type OperatorRepositoryI interface {
	Get(ctx context.Context, id string) (*models.Operator, error)
	Save(ctx context.Context, o *models.Operator) error
	TemplateOrSeed(ctx context.Context, fallback models.Operator) (models.Operator, error)
}

var (
	_ BookingRepositoryI  = (*BookingRepository)(nil)
	_ OperatorRepositoryI = (*OperatorRepository)(nil)
)
