package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

var bookingRowColumns = []string{"id", "room_id", "booker_id", "class_id", "title", "start_time", "end_time", "participants", "status", "notes", "created_at", "updated_at"}

func TestBookingRepositoryFindConfirmedOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rows := sqlmock.NewRows(bookingRowColumns).
		AddRow("b-1", "room-1", "teacher-1", nil, "Chemistry", start.Add(-30*time.Minute), start.Add(30*time.Minute), 10, models.BookingStatusConfirmed, nil, time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE room_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4 AND id <> $5 ORDER BY start_time")).
		WithArgs("room-1", models.BookingStatusConfirmed, end, start, "b-9").
		WillReturnRows(rows)

	bookings, err := repo.FindConfirmedOverlapping(context.Background(), nil, "room-1", start, end, "b-9")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "b-1", bookings[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindConfirmedOverlappingWithoutExclusion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("AND end_time > $4 ORDER BY start_time")).
		WithArgs("room-1", models.BookingStatusConfirmed, end, start).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	bookings, err := repo.FindConfirmedOverlapping(context.Background(), nil, "room-1", start, end, "")
	require.NoError(t, err)
	assert.Empty(t, bookings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	booking := &models.Booking{
		RoomID:       "room-1",
		BookerID:     "teacher-1",
		Title:        "Lab session",
		StartTime:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Participants: 12,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(sqlmock.AnyArg(), "room-1", "teacher-1", nil, "Lab session", booking.StartTime, booking.EndTime, 12, models.BookingStatusConfirmed, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), nil, booking))
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateExclusionViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: pgExclusionViolation, Message: "conflicting key value violates exclusion constraint \"bookings_no_overlap\""})

	err := repo.Create(context.Background(), nil, &models.Booking{RoomID: "room-1"})
	assert.ErrorIs(t, err, ErrBookingOverlap)
}

func TestBookingRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestBookingRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "b-1", models.BookingStatusCancelled))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListBuildsRangeFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE room_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4 ORDER BY start_time, room_id")).
		WithArgs("room-1", models.BookingStatusConfirmed, to, from).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	_, err := repo.List(context.Background(), models.BookingFilter{RoomID: "room-1", Status: models.BookingStatusConfirmed, From: from, To: to})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryLockByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "type", "location", "capacity", "active", "created_at"}).
		AddRow("room-1", "Lab-1", models.RoomTypeLaboratory, nil, 20, true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 FOR UPDATE")).
		WithArgs("room-1").
		WillReturnRows(rows)

	room, err := repo.LockByID(context.Background(), nil, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Lab-1", room.Name)
	assert.Equal(t, 20, room.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}
