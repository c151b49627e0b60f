package dto

import "time"

// BookingRequest is the payload for creating or changing a room booking.
// Participants defaults to 1 when omitted.
type BookingRequest struct {
	RoomID       string    `json:"room_id" validate:"required"`
	ClassID      *string   `json:"class_id,omitempty" validate:"omitempty,min=1"`
	Title        string    `json:"title" validate:"required,max=200"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Participants *int      `json:"participants,omitempty"`
	Notes        *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// BookingQuery filters booking listings.
type BookingQuery struct {
	RoomID   string `form:"room_id"`
	BookerID string `form:"booker_id"`
	ClassID  string `form:"class_id"`
	Status   string `form:"status"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// AvailabilityResponse answers a single room availability probe.
type AvailabilityResponse struct {
	RoomID    string    `json:"room_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}
