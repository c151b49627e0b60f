package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-resource-core/internal/authz"
	"github.com/noah-isme/sma-resource-core/internal/dto"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/internal/repository"
	"github.com/noah-isme/sma-resource-core/internal/stats"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
	"github.com/noah-isme/sma-resource-core/pkg/lock"
	"github.com/noah-isme/sma-resource-core/pkg/middleware/requestid"
)

const (
	defaultHorizonMonths    = 3
	defaultBookingPastGrace = time.Hour
	calendarDateLayout      = "2006-01-02"
)

type bookingStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	FindConfirmedOverlapping(ctx context.Context, exec sqlx.ExtContext, roomID string, start, end time.Time, excludeID string) ([]models.Booking, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	Update(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type roomStore interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error)
	ListActive(ctx context.Context) ([]models.Room, error)
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type transactor interface {
	WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(exec sqlx.ExtContext) error) error
}

// BookingConfig bounds how far ahead and how far back bookings may start.
// A zero Horizon means three calendar months.
type BookingConfig struct {
	Horizon   time.Duration
	PastGrace time.Duration
}

// BookingService confirms room bookings without double-booking a room.
type BookingService struct {
	bookings  bookingStore
	rooms     roomStore
	classes   classLookup
	tx        transactor
	locker    lock.Locker
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       BookingConfig
	now       func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(bookings bookingStore, rooms roomStore, classes classLookup, tx transactor, locker lock.Locker, cfg BookingConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if cfg.PastGrace < 0 {
		cfg.PastGrace = defaultBookingPastGrace
	}
	return &BookingService{
		bookings:  bookings,
		rooms:     rooms,
		classes:   classes,
		tx:        tx,
		locker:    locker,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestBooking confirms a new booking or reports why it cannot be made.
func (s *BookingService) RequestBooking(ctx context.Context, actor models.Actor, req dto.BookingRequest) (*models.Booking, error) {
	if !authz.CanRequestBooking(actor) {
		return nil, s.reject(appErrors.Clone(appErrors.ErrForbidden, "only teachers can book rooms"))
	}
	interval, participants, err := s.validateRequest(req)
	if err != nil {
		return nil, s.reject(err)
	}
	if _, err := s.loadRoom(ctx, req.RoomID, participants); err != nil {
		return nil, s.reject(err)
	}
	if err := s.checkClass(ctx, actor, req.ClassID); err != nil {
		return nil, s.reject(err)
	}

	booking := &models.Booking{
		RoomID:       req.RoomID,
		BookerID:     actor.ID,
		ClassID:      req.ClassID,
		Title:        req.Title,
		StartTime:    interval.Start,
		EndTime:      interval.End,
		Participants: participants,
		Status:       models.BookingStatusConfirmed,
		Notes:        req.Notes,
	}

	err = s.withRoomLock(ctx, req.RoomID, func(exec sqlx.ExtContext) error {
		if _, err := s.rooms.LockByID(ctx, exec, req.RoomID); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, exec, req.RoomID, interval, ""); err != nil {
			return err
		}
		return s.bookings.Create(ctx, exec, booking)
	})
	if err != nil {
		return nil, s.fail(err, "failed to create booking", zap.String("room_id", req.RoomID))
	}

	s.metrics.RecordBookingOutcome(BookingOutcomeConfirmed)
	s.logger.Info("booking confirmed",
		zap.String("booking_id", booking.ID),
		zap.String("room_id", booking.RoomID),
		zap.String("booker_id", booking.BookerID),
		zap.Time("start", booking.StartTime),
		zap.Time("end", booking.EndTime),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	return booking, nil
}

// UpdateBooking changes a confirmed booking owned by the actor. The room may change.
func (s *BookingService) UpdateBooking(ctx context.Context, actor models.Actor, id string, req dto.BookingRequest) (*models.Booking, error) {
	existing, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateBooking(actor, *existing) {
		return nil, s.reject(appErrors.Clone(appErrors.ErrForbidden, "only the booker can change this booking"))
	}
	if err := s.ensureChangeable(existing); err != nil {
		return nil, s.reject(err)
	}
	interval, participants, err := s.validateRequest(req)
	if err != nil {
		return nil, s.reject(err)
	}
	if _, err := s.loadRoom(ctx, req.RoomID, participants); err != nil {
		return nil, s.reject(err)
	}
	if err := s.checkClass(ctx, actor, req.ClassID); err != nil {
		return nil, s.reject(err)
	}

	var updated models.Booking
	err = s.withRoomLock(ctx, req.RoomID, func(exec sqlx.ExtContext) error {
		if _, err := s.rooms.LockByID(ctx, exec, req.RoomID); err != nil {
			return err
		}
		current, err := s.bookings.FindByID(ctx, exec, id)
		if err != nil {
			return err
		}
		if err := s.ensureChangeable(current); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, exec, req.RoomID, interval, id); err != nil {
			return err
		}
		updated = *current
		updated.RoomID = req.RoomID
		updated.ClassID = req.ClassID
		updated.Title = req.Title
		updated.StartTime = interval.Start
		updated.EndTime = interval.End
		updated.Participants = participants
		updated.Notes = req.Notes
		return s.bookings.Update(ctx, exec, &updated)
	})
	if err != nil {
		return nil, s.fail(err, "failed to update booking", zap.String("booking_id", id))
	}

	s.metrics.RecordBookingOutcome(BookingOutcomeUpdated)
	s.logger.Info("booking updated", zap.String("booking_id", id), zap.String("room_id", updated.RoomID), zap.String("request_id", requestid.FromContext(ctx)))
	return &updated, nil
}

// CancelBooking releases a booking. Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateBooking(actor, *booking) {
		return nil, s.reject(appErrors.Clone(appErrors.ErrForbidden, "only the booker can cancel this booking"))
	}
	if !booking.Confirmed() {
		return booking, nil
	}
	if err := s.bookings.UpdateStatus(ctx, nil, id, models.BookingStatusCancelled); err != nil {
		return nil, s.fail(err, "failed to cancel booking", zap.String("booking_id", id))
	}
	booking.Status = models.BookingStatusCancelled
	s.metrics.RecordBookingOutcome(BookingOutcomeCancelled)
	s.logger.Info("booking cancelled", zap.String("booking_id", id), zap.String("room_id", booking.RoomID), zap.String("request_id", requestid.FromContext(ctx)))
	return booking, nil
}

// IsRoomAvailable reports whether the interval is free in the room.
func (s *BookingService) IsRoomAvailable(ctx context.Context, roomID string, interval models.Interval) (bool, error) {
	if !interval.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return false, err
	}
	hits, err := s.conflicts(ctx, nil, roomID, interval, "")
	if err != nil {
		return false, appErrors.ErrInternal.Because(err, "failed to check availability")
	}
	return len(hits) == 0, nil
}

// AvailableRooms lists active rooms that are free for the whole interval.
func (s *BookingService) AvailableRooms(ctx context.Context, interval models.Interval) ([]models.Room, error) {
	if !interval.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to list rooms")
	}
	available := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		hits, err := s.conflicts(ctx, nil, room.ID, interval, "")
		if err != nil {
			return nil, appErrors.ErrInternal.Because(err, "failed to check availability")
		}
		if len(hits) == 0 {
			available = append(available, room)
		}
	}
	return available, nil
}

// GetBookingsInRange returns bookings whose interval overlaps [From, To).
func (s *BookingService) GetBookingsInRange(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.From.IsZero() || filter.To.IsZero() || !filter.To.After(filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid booking status")
	}
	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to list bookings")
	}
	return bookings, nil
}

// BookingsByDate groups a room's confirmed bookings by UTC start date.
func (s *BookingService) BookingsByDate(ctx context.Context, roomID string, fromDate, toDate time.Time) ([]models.RoomDay, error) {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return nil, err
	}
	bookings, err := s.GetBookingsInRange(ctx, models.BookingFilter{
		RoomID: roomID,
		Status: models.BookingStatusConfirmed,
		From:   fromDate,
		To:     toDate,
	})
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]models.Booking)
	for _, b := range bookings {
		key := b.StartTime.UTC().Format(calendarDateLayout)
		byDate[key] = append(byDate[key], b)
	}
	days := make([]models.RoomDay, 0, len(byDate))
	for date, items := range byDate {
		days = append(days, models.RoomDay{Date: date, Bookings: items})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// RoomUsage counts a room's bookings of every status over the range.
func (s *BookingService) RoomUsage(ctx context.Context, roomID string, from, to time.Time) (*models.RoomUsage, error) {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return nil, err
	}
	bookings, err := s.GetBookingsInRange(ctx, models.BookingFilter{RoomID: roomID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	usage := stats.BookingUsage(roomID, bookings)
	return &usage, nil
}

func (s *BookingService) validateRequest(req dto.BookingRequest) (models.Interval, int, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Interval{}, 0, appErrors.ErrValidation.Because(err, "invalid booking payload")
	}
	interval := models.Interval{Start: req.StartTime, End: req.EndTime}
	if !interval.Valid() {
		return interval, 0, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	now := s.now()
	if interval.Start.After(s.horizonEnd(now)) {
		return interval, 0, appErrors.Clone(appErrors.ErrValidation, "booking starts beyond the booking horizon")
	}
	if interval.Start.Before(now.Add(-s.cfg.PastGrace)) {
		return interval, 0, appErrors.Clone(appErrors.ErrValidation, "booking cannot start in the past")
	}
	participants := 1
	if req.Participants != nil {
		participants = *req.Participants
	}
	if participants < 1 {
		return interval, 0, appErrors.Clone(appErrors.ErrValidation, "participants must be at least 1")
	}
	return interval, participants, nil
}

func (s *BookingService) loadRoom(ctx context.Context, roomID string, participants int) (*models.Room, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room is not available for booking")
	}
	if participants > room.Capacity {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("participants exceed room capacity of %d", room.Capacity)),
			map[string]int{"capacity": room.Capacity, "participants": participants},
		)
	}
	return room, nil
}

func (s *BookingService) findRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.ErrInternal.Because(err, "failed to load room")
	}
	return room, nil
}

func (s *BookingService) findBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.ErrInternal.Because(err, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) checkClass(ctx context.Context, actor models.Actor, classID *string) error {
	if classID == nil {
		return nil
	}
	class, err := loadClass(ctx, s.classes, *classID)
	if err != nil {
		return err
	}
	if !authz.CanMutateClass(actor, *class) {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}
	return nil
}

func (s *BookingService) ensureChangeable(booking *models.Booking) error {
	if !booking.Confirmed() {
		return appErrors.Clone(appErrors.ErrValidation, "cancelled bookings cannot be changed")
	}
	if booking.StartTime.Before(s.now().Add(-s.cfg.PastGrace)) {
		return appErrors.Clone(appErrors.ErrValidation, "bookings that have already started cannot be changed")
	}
	return nil
}

// conflicts returns confirmed bookings in the room that overlap interval.
// Every availability and conflict decision goes through here.
func (s *BookingService) conflicts(ctx context.Context, exec sqlx.ExtContext, roomID string, interval models.Interval, excludeID string) ([]models.Booking, error) {
	candidates, err := s.bookings.FindConfirmedOverlapping(ctx, exec, roomID, interval.Start, interval.End, excludeID)
	if err != nil {
		return nil, err
	}
	hits := make([]models.Booking, 0, len(candidates))
	for _, b := range candidates {
		if b.ID == excludeID || !b.Confirmed() || !b.Interval().Overlaps(interval) {
			continue
		}
		hits = append(hits, b)
	}
	return hits, nil
}

func (s *BookingService) ensureNoConflict(ctx context.Context, exec sqlx.ExtContext, roomID string, interval models.Interval, excludeID string) error {
	hits, err := s.conflicts(ctx, exec, roomID, interval, excludeID)
	if err != nil {
		return err
	}
	if len(hits) > 0 {
		return wrapConflict(models.NewBookingConflictError(roomID, interval, hits))
	}
	return nil
}

// withRoomLock serialises writers for one room and runs fn in a transaction
// while the lock is held.
func (s *BookingService) withRoomLock(ctx context.Context, roomID string, fn func(exec sqlx.ExtContext) error) error {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, "booking:room:"+roomID)
	s.metrics.ObserveRoomLockWait(time.Since(start))
	if err != nil {
		return appErrors.ErrUnavailable.Because(err, "room is busy, retry shortly")
	}
	defer release()
	return s.tx.WithinTx(ctx, nil, fn)
}

// reject records a request that failed validation or authorization.
func (s *BookingService) reject(err error) error {
	outcome := BookingOutcomeRejected
	if errors.Is(err, appErrors.ErrConflict) {
		outcome = BookingOutcomeConflict
	}
	s.metrics.RecordBookingOutcome(outcome)
	s.logger.Info("booking rejected", zap.Error(err))
	return err
}

// horizonEnd is the latest allowed booking start. Without a configured
// horizon it is three calendar months ahead, so its length follows the months
// it spans.
func (s *BookingService) horizonEnd(now time.Time) time.Time {
	if s.cfg.Horizon > 0 {
		return now.Add(s.cfg.Horizon)
	}
	return now.AddDate(0, defaultHorizonMonths, 0)
}

// fail maps errors raised inside the unit of work.
func (s *BookingService) fail(err error, msg string, fields ...zap.Field) error {
	switch {
	case errors.Is(err, repository.ErrBookingOverlap):
		return s.reject(appErrors.ErrConflict.Because(err, "room already booked for an overlapping slot"))
	case errors.Is(err, sql.ErrNoRows):
		return s.reject(appErrors.Clone(appErrors.ErrNotFound, "booking or room no longer exists"))
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		if appErr.Status >= 500 {
			s.metrics.RecordBookingOutcome(BookingOutcomeFailed)
			s.logger.Warn(msg, append(fields, zap.Error(err))...)
			return appErr
		}
		return s.reject(appErr)
	}
	s.metrics.RecordBookingOutcome(BookingOutcomeFailed)
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return appErrors.ErrInternal.Because(err, msg)
}

// wrapConflict lifts a domain conflict into the API error carrying the colliding bookings.
func wrapConflict(conflict *models.BookingConflictError) error {
	wrapped := appErrors.ErrConflict.Because(conflict, conflict.Error())
	return appErrors.WithDetails(wrapped, conflict)
}
