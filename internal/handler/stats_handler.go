package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/pkg/response"
)

type statsService interface {
	GetStats(ctx context.Context, actor models.Actor, classID string, from, to *time.Time) (*models.AttendanceStats, error)
	GetPercentage(ctx context.Context, actor models.Actor, classID string, from, to *time.Time) (float64, error)
	GetStudentStats(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (*models.AttendanceStats, error)
	GetStudentPercentage(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (float64, error)
}

// StatsHandler exposes attendance summaries.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler builds a new handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

type percentageResponse struct {
	Percentage float64 `json:"percentage"`
}

// ClassStats godoc
// @Summary Attendance counts for a class
// @Tags Stats
// @Produce json
// @Param classId path string true "Class ID"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance/stats [get]
func (h *StatsHandler) ClassStats(c *gin.Context) {
	actor, from, to, ok := statsArgs(c)
	if !ok {
		return
	}
	summary, err := h.service.GetStats(c.Request.Context(), actor, c.Param("classId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

// ClassPercentage godoc
// @Summary Present percentage for a class
// @Tags Stats
// @Produce json
// @Param classId path string true "Class ID"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance/percentage [get]
func (h *StatsHandler) ClassPercentage(c *gin.Context) {
	actor, from, to, ok := statsArgs(c)
	if !ok {
		return
	}
	pct, err := h.service.GetPercentage(c.Request.Context(), actor, c.Param("classId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, percentageResponse{Percentage: pct})
}

// StudentStats godoc
// @Summary Attendance counts for a student
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/stats [get]
func (h *StatsHandler) StudentStats(c *gin.Context) {
	actor, from, to, ok := statsArgs(c)
	if !ok {
		return
	}
	summary, err := h.service.GetStudentStats(c.Request.Context(), actor, c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

// StudentPercentage godoc
// @Summary Present percentage for a student
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/percentage [get]
func (h *StatsHandler) StudentPercentage(c *gin.Context) {
	actor, from, to, ok := statsArgs(c)
	if !ok {
		return
	}
	pct, err := h.service.GetStudentPercentage(c.Request.Context(), actor, c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, percentageResponse{Percentage: pct})
}

func statsArgs(c *gin.Context) (models.Actor, *time.Time, *time.Time, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return models.Actor{}, nil, nil, false
	}
	from, ok := optionalDate(c, "from")
	if !ok {
		return models.Actor{}, nil, nil, false
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return models.Actor{}, nil, nil, false
	}
	return actor, from, to, true
}
