package models

import (
	"fmt"
	"time"
)

// BookingStatus tracks the lifecycle of a booking. CANCELLED is terminal.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps is the single overlap predicate used for bookings. Touching
// boundaries do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Booking is a room reservation.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	RoomID       string        `db:"room_id" json:"room_id"`
	BookerID     string        `db:"booker_id" json:"booker_id"`
	ClassID      *string       `db:"class_id" json:"class_id,omitempty"`
	Title        string        `db:"title" json:"title"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      time.Time     `db:"end_time" json:"end_time"`
	Participants int           `db:"participants" json:"participants"`
	Status       BookingStatus `db:"status" json:"status"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the booking's time range.
func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Confirmed reports whether the booking still holds its room.
func (b Booking) Confirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// BookingFilter scopes range queries over bookings.
type BookingFilter struct {
	RoomID   string
	BookerID string
	ClassID  string
	Status   BookingStatus
	From     time.Time
	To       time.Time
}

// BookingConflict describes one existing booking that collides with a request.
type BookingConflict struct {
	BookingID string    `json:"booking_id"`
	RoomID    string    `json:"room_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// BookingConflictError is returned when a requested interval collides with confirmed bookings.
type BookingConflictError struct {
	RoomID    string            `json:"room_id"`
	Requested Interval          `json:"requested"`
	Conflicts []BookingConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("room %s already booked for %d overlapping slot(s)", e.RoomID, len(e.Conflicts))
}

// NewBookingConflictError builds the error from the colliding bookings.
func NewBookingConflictError(roomID string, requested Interval, bookings []Booking) *BookingConflictError {
	conflicts := make([]BookingConflict, 0, len(bookings))
	for _, b := range bookings {
		conflicts = append(conflicts, BookingConflict{
			BookingID: b.ID,
			RoomID:    b.RoomID,
			Title:     b.Title,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
		})
	}
	return &BookingConflictError{RoomID: roomID, Requested: requested, Conflicts: conflicts}
}

// RoomUsage summarises bookings for a room over a range.
type RoomUsage struct {
	RoomID    string `json:"room_id"`
	Total     int    `json:"total"`
	Confirmed int    `json:"confirmed"`
	Cancelled int    `json:"cancelled"`
}

// RoomDay groups a room's bookings for a single calendar day.
type RoomDay struct {
	Date     string    `json:"date"`
	Bookings []Booking `json:"bookings"`
}
