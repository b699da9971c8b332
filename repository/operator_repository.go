package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sprayDispatch/models"
)

type OperatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Get returns the stored profile, or nil when none exists.
func (r *OperatorRepository) Get(ctx context.Context, id string) (*models.Operator, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var o models.Operator
	var lat, lng sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT id, name, phone, email, address, license_number, drone_model,
		drone_registration, insurance_expiry, home_latitude, home_longitude FROM operators WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &o.Phone, &o.Email, &o.Address, &o.LicenseNumber, &o.DroneModel,
			&o.DroneRegistration, &o.InsuranceExpiry, &lat, &lng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lat.Valid && lng.Valid {
		o.HomeLocation = &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return &o, nil
}

// Save inserts or replaces the profile with the same id.
func (r *OperatorRepository) Save(ctx context.Context, o *models.Operator) error {
	if o == nil {
		return errors.New("operator is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	lat, lng := locationArgs(o.HomeLocation)
	_, err := r.db.ExecContext(ctx, `INSERT INTO operators (id, name, phone, email, address, license_number, drone_model,
		drone_registration, insurance_expiry, home_latitude, home_longitude) VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, phone = excluded.phone, email = excluded.email,
		address = excluded.address, license_number = excluded.license_number, drone_model = excluded.drone_model,
		drone_registration = excluded.drone_registration, insurance_expiry = excluded.insurance_expiry,
		home_latitude = excluded.home_latitude, home_longitude = excluded.home_longitude,
		updated_at = CURRENT_TIMESTAMP`,
		o.ID, o.Name, o.Phone, o.Email, o.Address, o.LicenseNumber, o.DroneModel,
		o.DroneRegistration, o.InsuranceExpiry, lat, lng)
	return err
}

// TemplateOrSeed returns the stored profile with fallback's id, writing
// fallback first when the table has none.
func (r *OperatorRepository) TemplateOrSeed(ctx context.Context, fallback models.Operator) (models.Operator, error) {
	o, err := r.Get(ctx, fallback.ID)
	if err != nil {
		return models.Operator{}, err
	}
	if o != nil {
		return *o, nil
	}
	if err := r.Save(ctx, &fallback); err != nil {
		return models.Operator{}, err
	}
	return fallback, nil
}
