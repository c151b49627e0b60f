package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-resource-core/internal/authz"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/internal/stats"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
	"github.com/noah-isme/sma-resource-core/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

var attendanceExportHeaders = []string{"Date", "Student ID", "Status", "Notes", "Recorded By", "Updated At"}

// ExportResult is a rendered file ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders class attendance sheets.
type ExportService struct {
	records attendanceReader
	classes classLookup
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(records attendanceReader, classes classLookup, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{records: records, classes: classes, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ExportClassAttendance renders the class's records over the optional range.
// Only actors who may read class-wide data can export.
func (s *ExportService) ExportClassAttendance(ctx context.Context, actor models.Actor, classID string, from, to *time.Time, format ExportFormat) (*ExportResult, error) {
	format = ExportFormat(strings.ToLower(string(format)))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateClass(actor, *class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}

	records, err := s.records.List(ctx, models.AttendanceFilter{ClassID: class.ID, DateFrom: dayPtr(from), DateTo: dayPtr(to)})
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to load attendance")
	}
	dataset := buildAttendanceDataset(class, records, from, to)
	title := fmt.Sprintf("Attendance %s", class.Name)

	var payload []byte
	contentType := "text/csv"
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	}
	if err != nil {
		s.logger.Error("failed to render attendance export", zap.String("class_id", class.ID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.ErrInternal.Because(err, "failed to render export")
	}

	return &ExportResult{
		Filename:    s.buildFilename(class, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildAttendanceDataset(class *models.Class, records []models.AttendanceRecord, from, to *time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		rows = append(rows, map[string]string{
			"Date":        r.Date.Format(calendarDateLayout),
			"Student ID":  r.StudentID,
			"Status":      string(r.Status),
			"Notes":       notes,
			"Recorded By": r.TeacherID,
			"Updated At":  r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	summary := stats.Summarise(records)
	return export.Dataset{
		Headers: attendanceExportHeaders,
		Rows:    rows,
		Caption: []string{
			fmt.Sprintf("Class: %s (%s)", class.Name, class.ID),
			fmt.Sprintf("Range: %s to %s", boundKey(dayPtr(from)), boundKey(dayPtr(to))),
			fmt.Sprintf("Present: %d  Absent: %d  Attendance: %.2f%%",
				summary.Counts[models.AttendanceStatusPresent], summary.Counts[models.AttendanceStatusAbsent], summary.Percentage),
		},
	}
}

func (s *ExportService) buildFilename(class *models.Class, format ExportFormat) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(class.Name), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
