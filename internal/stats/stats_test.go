package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

func records(statuses ...models.AttendanceStatus) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, models.AttendanceRecord{Status: s})
	}
	return out
}

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 0.0, AttendancePercentage(nil))
	assert.Equal(t, 0.0, AttendancePercentage([]models.AttendanceRecord{}))
	assert.Equal(t, 100.0, AttendancePercentage(records(models.AttendanceStatusPresent)))
	assert.Equal(t, 50.0, AttendancePercentage(records(models.AttendanceStatusPresent, models.AttendanceStatusAbsent)))
	assert.InDelta(t, 66.666, AttendancePercentage(records(models.AttendanceStatusPresent, models.AttendanceStatusPresent, models.AttendanceStatusAbsent)), 0.01)
}

func TestGroupByStatusAlwaysHasKnownKeys(t *testing.T) {
	empty := GroupByStatus(nil)
	assert.Equal(t, map[models.AttendanceStatus]int{
		models.AttendanceStatusPresent: 0,
		models.AttendanceStatusAbsent:  0,
	}, empty)

	counts := GroupByStatus(records(models.AttendanceStatusAbsent, models.AttendanceStatusAbsent, models.AttendanceStatusPresent))
	assert.Equal(t, 1, counts[models.AttendanceStatusPresent])
	assert.Equal(t, 2, counts[models.AttendanceStatusAbsent])
}

func TestSummarise(t *testing.T) {
	summary := Summarise(records(models.AttendanceStatusPresent, models.AttendanceStatusAbsent, models.AttendanceStatusAbsent, models.AttendanceStatusAbsent))
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 25.0, summary.Percentage)
	assert.Equal(t, 3, summary.Counts[models.AttendanceStatusAbsent])
}

func TestBookingUsage(t *testing.T) {
	usage := BookingUsage("room-1", []models.Booking{
		{Status: models.BookingStatusConfirmed},
		{Status: models.BookingStatusConfirmed},
		{Status: models.BookingStatusCancelled},
	})
	assert.Equal(t, models.RoomUsage{RoomID: "room-1", Total: 3, Confirmed: 2, Cancelled: 1}, usage)
	assert.Equal(t, models.RoomUsage{RoomID: "room-2"}, BookingUsage("room-2", nil))
}
