package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-resource-core/internal/models"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
	"github.com/noah-isme/sma-resource-core/pkg/export"
)

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store := newFakeAttendanceStore()
	seedAttendance(t, store,
		record("stu-1", "class-1", 2, models.AttendanceStatusPresent),
		record("stu-2", "class-1", 2, models.AttendanceStatusAbsent),
		record("stu-1", "class-2", 2, models.AttendanceStatusPresent),
	)
	classes := newFakeClassStore(models.Class{ID: "class-1", Name: "X IPA/1", TeacherID: "teacher-1"})
	svc := NewExportService(store, classes, nil, export.NewCSVExporter(), export.NewPDFExporter())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportClassAttendance(context.Background(), teacher("teacher-1"), "class-1", nil, nil, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "attendance_X_IPA-1_20260302_120000.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Student ID,Status,Notes,Recorded By,Updated At", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2026-03-02,stu-1,PRESENT"))
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportClassAttendance(context.Background(), models.Actor{ID: "adm-1", Role: models.RoleAdministrator}, "class-1", nil, nil, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Payload, []byte("%PDF")))
}

func TestExportServiceRejections(t *testing.T) {
	svc := newExportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.ExportClassAttendance(ctx, teacher("teacher-1"), "class-1", nil, nil, "xlsx")
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.ExportClassAttendance(ctx, teacher("teacher-2"), "class-1", nil, nil, ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.ExportClassAttendance(ctx, teacher("teacher-1"), "class-9", nil, nil, ExportFormatCSV)
	requireAppError(t, err, appErrors.ErrNotFound)
}
