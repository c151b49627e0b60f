package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

const roomColumns = `id, name, type, location, capacity, active, created_at`

// RoomRepository reads room reference data.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindByID returns a room by its ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// LockByID loads the room and holds a row lock on it until the surrounding
// transaction ends. Booking writers for the same room queue behind it.
func (r *RoomRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 FOR UPDATE`
	var room models.Room
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListActive returns all rooms open for booking ordered by name.
func (r *RoomRepository) ListActive(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE active = TRUE ORDER BY name`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return rooms, nil
}
