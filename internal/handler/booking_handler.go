package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-resource-core/internal/dto"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/pkg/response"
)

type bookingService interface {
	RequestBooking(ctx context.Context, actor models.Actor, req dto.BookingRequest) (*models.Booking, error)
	UpdateBooking(ctx context.Context, actor models.Actor, id string, req dto.BookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, actor models.Actor, id string) (*models.Booking, error)
	GetBookingsInRange(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

// BookingHandler exposes room booking endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request a room booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid booking payload")
		return
	}
	booking, err := h.service.RequestBooking(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, booking)
}

// Update godoc
// @Summary Move or edit a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.BookingRequest true "Booking payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid booking payload")
		return
	}
	booking, err := h.service.UpdateBooking(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, booking)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.service.CancelBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, booking)
}

// List godoc
// @Summary List bookings overlapping a range
// @Tags Bookings
// @Produce json
// @Param from query string true "Range start (RFC3339)"
// @Param to query string true "Range end (RFC3339)"
// @Param room_id query string false "Room filter"
// @Param booker_id query string false "Booker filter"
// @Param class_id query string false "Class filter"
// @Param status query string false "CONFIRMED or CANCELLED"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	var query dto.BookingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err, "invalid booking query")
		return
	}
	from, ok := requiredTime(c, "from")
	if !ok {
		return
	}
	to, ok := requiredTime(c, "to")
	if !ok {
		return
	}
	bookings, err := h.service.GetBookingsInRange(c.Request.Context(), models.BookingFilter{
		RoomID:   query.RoomID,
		BookerID: query.BookerID,
		ClassID:  query.ClassID,
		Status:   models.BookingStatus(query.Status),
		From:     from.UTC(),
		To:       to.UTC(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, bookings)
}
