package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sprayDispatch/models"
)

const bookingColumns = `id, farmer_name, farmer_phone, village, district, acreage, crop_type, spray_type,
	scheduled_date, scheduled_time, special_instructions, amount, payment_status, status,
	completed_at, latitude, longitude`

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*models.Booking, error) {
	var b models.Booking
	var spray, payment, status string
	var completed sql.NullString
	var lat, lng sql.NullFloat64
	if err := s.Scan(&b.ID, &b.FarmerName, &b.FarmerPhone, &b.Village, &b.District, &b.Acreage, &b.CropType, &spray,
		&b.ScheduledDate, &b.ScheduledTime, &b.SpecialInstructions, &b.Amount, &payment, &status,
		&completed, &lat, &lng); err != nil {
		return nil, err
	}
	b.SprayType = models.SprayType(spray)
	b.PaymentStatus = models.PaymentStatus(payment)
	b.Status = models.BookingStatus(status)
	if completed.Valid {
		t, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, err
		}
		b.CompletedAt = &t
	}
	if lat.Valid && lng.Valid {
		b.Location = &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return &b, nil
}

func completedArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func locationArgs(c *models.Coordinates) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.Latitude, c.Longitude
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBooking(ctx context.Context, ex execer, b *models.Booking) error {
	lat, lng := locationArgs(b.Location)
	_, err := ex.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.FarmerName, b.FarmerPhone, b.Village, b.District, b.Acreage, b.CropType, string(b.SprayType),
		b.ScheduledDate, b.ScheduledTime, b.SpecialInstructions, b.Amount, string(b.PaymentStatus), string(b.Status),
		completedArg(b.CompletedAt), lat, lng)
	return err
}

// Insert adds a booking. Ids are unique.
func (r *BookingRepository) Insert(ctx context.Context, b *models.Booking) error {
	if b == nil {
		return errors.New("booking is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return insertBooking(ctx, r.db, b)
}

// SeedIfEmpty inserts bookings in one transaction when the table has no rows.
// It returns how many rows were written.
func (r *BookingRepository) SeedIfEmpty(ctx context.Context, bookings []models.Booking) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if n > 0 {
		return 0, tx.Rollback()
	}
	for i := range bookings {
		if err := insertBooking(ctx, tx, &bookings[i]); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bookings), nil
}

// List returns every booking in insertion order.
func (r *BookingRepository) List(ctx context.Context) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus writes status and completedAt. It returns sql.ErrNoRows when
// the booking does not exist.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, completedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), completedArg(completedAt), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of bookings per status.
func (r *BookingRepository) CountByStatus(ctx context.Context) (map[models.BookingStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.BookingStatus]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[models.BookingStatus(s)] = n
	}
	return out, rows.Err()
}
