package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

const bookingColumns = `id, room_id, booker_id, class_id, title, start_time, end_time, participants, status, notes, created_at, updated_at`

// BookingRepository persists room bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID returns a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindConfirmedOverlapping returns confirmed bookings in the room whose
// interval intersects [start, end). excludeID, when set, is left out.
func (r *BookingRepository) FindConfirmedOverlapping(ctx context.Context, exec sqlx.ExtContext, roomID string, start, end time.Time, excludeID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE room_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4`
	args := []interface{}{roomID, models.BookingStatusConfirmed, end, start}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time"

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, orDB(exec, r.db), &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return bookings, nil
}

// Create inserts a booking.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}

	const query = `INSERT INTO bookings (id, room_id, booker_id, class_id, title, start_time, end_time, participants, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := orDB(exec, r.db).ExecContext(ctx, query,
		booking.ID, booking.RoomID, booking.BookerID, booking.ClassID, booking.Title,
		booking.StartTime, booking.EndTime, booking.Participants, booking.Status, booking.Notes,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", mapPQError(err))
	}
	return nil
}

// Update rewrites the mutable fields of a booking.
func (r *BookingRepository) Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET room_id = $1, class_id = $2, title = $3, start_time = $4, end_time = $5, participants = $6, notes = $7, updated_at = $8 WHERE id = $9`
	_, err := orDB(exec, r.db).ExecContext(ctx, query,
		booking.RoomID, booking.ClassID, booking.Title, booking.StartTime, booking.EndTime,
		booking.Participants, booking.Notes, booking.UpdatedAt, booking.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", mapPQError(err))
	}
	return nil
}

// UpdateStatus moves a booking to the given status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	const query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := orDB(exec, r.db).ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// List returns bookings whose interval intersects [filter.From, filter.To),
// optionally narrowed by room, booker, class and status.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.BookerID != "" {
		conditions = append(conditions, fmt.Sprintf("booker_id = $%d", len(args)+1))
		args = append(args, filter.BookerID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)+1))
		args = append(args, filter.To)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)+1))
		args = append(args, filter.From)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time, room_id"

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}
