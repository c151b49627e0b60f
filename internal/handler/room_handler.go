package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-resource-core/internal/dto"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/pkg/response"
)

// RoomHandler exposes room availability and usage reads.
type RoomHandler struct {
	service roomService
}

type roomService interface {
	IsRoomAvailable(ctx context.Context, roomID string, interval models.Interval) (bool, error)
	AvailableRooms(ctx context.Context, interval models.Interval) ([]models.Room, error)
	BookingsByDate(ctx context.Context, roomID string, fromDate, toDate time.Time) ([]models.RoomDay, error)
	RoomUsage(ctx context.Context, roomID string, from, to time.Time) (*models.RoomUsage, error)
}

// NewRoomHandler builds a new handler.
func NewRoomHandler(service roomService) *RoomHandler {
	return &RoomHandler{service: service}
}

// Availability godoc
// @Summary Check whether a room is free for an interval
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param start query string true "Interval start (RFC3339)"
// @Param end query string true "Interval end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/availability [get]
func (h *RoomHandler) Availability(c *gin.Context) {
	interval, ok := intervalFromQuery(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	available, err := h.service.IsRoomAvailable(c.Request.Context(), roomID, interval)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.AvailabilityResponse{
		RoomID:    roomID,
		StartTime: interval.Start,
		EndTime:   interval.End,
		Available: available,
	})
}

// Available godoc
// @Summary List active rooms free for an interval
// @Tags Rooms
// @Produce json
// @Param start query string true "Interval start (RFC3339)"
// @Param end query string true "Interval end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /rooms/available [get]
func (h *RoomHandler) Available(c *gin.Context) {
	interval, ok := intervalFromQuery(c)
	if !ok {
		return
	}
	rooms, err := h.service.AvailableRooms(c.Request.Context(), interval)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, rooms)
}

// Calendar godoc
// @Summary Room bookings grouped by day
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/calendar [get]
func (h *RoomHandler) Calendar(c *gin.Context) {
	from, to, ok := dayRangeFromQuery(c)
	if !ok {
		return
	}
	days, err := h.service.BookingsByDate(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, days)
}

// Usage godoc
// @Summary Count a room's bookings by status
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/usage [get]
func (h *RoomHandler) Usage(c *gin.Context) {
	from, to, ok := dayRangeFromQuery(c)
	if !ok {
		return
	}
	usage, err := h.service.RoomUsage(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, usage)
}

func intervalFromQuery(c *gin.Context) (models.Interval, bool) {
	start, ok := requiredTime(c, "start")
	if !ok {
		return models.Interval{}, false
	}
	end, ok := requiredTime(c, "end")
	if !ok {
		return models.Interval{}, false
	}
	return models.Interval{Start: start.UTC(), End: end.UTC()}, true
}

// dayRangeFromQuery turns inclusive from/to dates into a half-open UTC range.
func dayRangeFromQuery(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := optionalDate(c, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if from == nil || to == nil {
		badRequest(c, nil, "from and to are required")
		return time.Time{}, time.Time{}, false
	}
	return *from, to.AddDate(0, 0, 1), true
}
