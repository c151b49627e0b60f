package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-resource-core/internal/dto"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/internal/service"
	"github.com/noah-isme/sma-resource-core/pkg/response"
)

type attendanceService interface {
	MarkForClass(ctx context.Context, actor models.Actor, classID string, date time.Time, marks map[string]models.AttendanceMark) ([]models.AttendanceRecord, error)
	MarkAllPresent(ctx context.Context, actor models.Actor, classID string, date time.Time) ([]models.AttendanceRecord, error)
	UpdateSingleRecord(ctx context.Context, actor models.Actor, recordID string, status models.AttendanceStatus, notes *string) (*models.AttendanceRecord, error)
	GetHistory(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error)
	GetClassAttendance(ctx context.Context, actor models.Actor, classID string, date time.Time) ([]models.AttendanceRecord, error)
	GetAttendanceDates(ctx context.Context, actor models.Actor, classID string) ([]time.Time, error)
}

type attendanceExporter interface {
	ExportClassAttendance(ctx context.Context, actor models.Actor, classID string, from, to *time.Time, format service.ExportFormat) (*service.ExportResult, error)
}

// AttendanceHandler exposes daily attendance endpoints.
type AttendanceHandler struct {
	service   attendanceService
	exports   attendanceExporter
	validator *validator.Validate
}

// NewAttendanceHandler builds a new handler. The validator must carry the
// attendance_status tag.
func NewAttendanceHandler(service attendanceService, exports attendanceExporter, validate *validator.Validate) *AttendanceHandler {
	return &AttendanceHandler{service: service, exports: exports, validator: validate}
}

// Mark godoc
// @Summary Record attendance for a class roster
// @Description Roster students without an entry are recorded ABSENT.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.MarkAttendanceRequest true "Attendance marks"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if !h.bind(c, &req, "invalid attendance payload") {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err, "date must be formatted as YYYY-MM-DD")
		return
	}
	marks := make(map[string]models.AttendanceMark, len(req.Entries))
	for _, entry := range req.Entries {
		marks[entry.StudentID] = models.AttendanceMark{
			Status: service.ParseAttendanceStatus(entry.Status),
			Notes:  entry.Notes,
		}
	}
	records, err := h.service.MarkForClass(c.Request.Context(), actor, c.Param("classId"), date, marks)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// MarkAllPresent godoc
// @Summary Mark every active student present
// @Tags Attendance
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.MarkAllPresentRequest true "Date"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance/present [post]
func (h *AttendanceHandler) MarkAllPresent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkAllPresentRequest
	if !h.bind(c, &req, "invalid attendance payload") {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err, "date must be formatted as YYYY-MM-DD")
		return
	}
	records, err := h.service.MarkAllPresent(c.Request.Context(), actor, c.Param("classId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// Update godoc
// @Summary Correct a single attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.UpdateAttendanceRequest true "New status"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [patch]
func (h *AttendanceHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateAttendanceRequest
	if !h.bind(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.service.UpdateSingleRecord(c.Request.Context(), actor, c.Param("id"), service.ParseAttendanceStatus(req.Status), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, record)
}

// ClassAttendance godoc
// @Summary Attendance of a class on one date
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance [get]
func (h *AttendanceHandler) ClassAttendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	date, ok := optionalDate(c, "date")
	if !ok {
		return
	}
	if date == nil {
		badRequest(c, nil, "date is required")
		return
	}
	records, err := h.service.GetClassAttendance(c.Request.Context(), actor, c.Param("classId"), *date)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// Dates godoc
// @Summary Dates on which a class has attendance
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/attendance/dates [get]
func (h *AttendanceHandler) Dates(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	dates, err := h.service.GetAttendanceDates(c.Request.Context(), actor, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(dateLayout))
	}
	respond(c, http.StatusOK, formatted)
}

// StudentHistory godoc
// @Summary Attendance history of a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	from, ok := optionalDate(c, "from")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return
	}
	records, err := h.service.GetHistory(c.Request.Context(), actor, c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// Export godoc
// @Summary Download a class attendance sheet
// @Tags Attendance
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /classes/{classId}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	from, ok := optionalDate(c, "from")
	if !ok {
		return
	}
	to, ok := optionalDate(c, "to")
	if !ok {
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.exports.ExportClassAttendance(c.Request.Context(), actor, c.Param("classId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func (h *AttendanceHandler) bind(c *gin.Context, req interface{}, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err, message)
		return false
	}
	if h.validator != nil {
		if err := h.validator.Struct(req); err != nil {
			badRequest(c, err, message)
			return false
		}
	}
	return true
}
