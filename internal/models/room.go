package models

import "time"

// RoomType enumerates bookable room categories.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "CLASSROOM"
	RoomTypeLaboratory RoomType = "LABORATORY"
	RoomTypeHall       RoomType = "HALL"
	RoomTypeLibrary    RoomType = "LIBRARY"
	RoomTypeOther      RoomType = "OTHER"
)

// Room is read-mostly reference data for the booking engine.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      RoomType  `db:"type" json:"type"`
	Location  *string   `db:"location" json:"location,omitempty"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
