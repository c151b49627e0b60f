// Package stats derives counts and percentages from attendance and booking
// collections. Functions here do no I/O and no authorization.
package stats

import "github.com/noah-isme/sma-resource-core/internal/models"

// AttendancePercentage returns the share of PRESENT records as a percentage,
// or 0 for an empty collection.
func AttendancePercentage(records []models.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status == models.AttendanceStatusPresent {
			present++
		}
	}
	return float64(present) / float64(len(records)) * 100
}

// GroupByStatus counts records per status. Every known status is present in
// the result, with zero when no record carries it.
func GroupByStatus(records []models.AttendanceRecord) map[models.AttendanceStatus]int {
	counts := make(map[models.AttendanceStatus]int, len(models.AttendanceStatuses))
	for _, status := range models.AttendanceStatuses {
		counts[status] = 0
	}
	for _, r := range records {
		counts[r.Status]++
	}
	return counts
}

// Summarise combines the grouped counts and percentage.
func Summarise(records []models.AttendanceRecord) models.AttendanceStats {
	return models.AttendanceStats{
		Counts:     GroupByStatus(records),
		Total:      len(records),
		Percentage: AttendancePercentage(records),
	}
}

// BookingUsage counts bookings by lifecycle state.
func BookingUsage(roomID string, bookings []models.Booking) models.RoomUsage {
	usage := models.RoomUsage{RoomID: roomID, Total: len(bookings)}
	for _, b := range bookings {
		switch b.Status {
		case models.BookingStatusConfirmed:
			usage.Confirmed++
		case models.BookingStatusCancelled:
			usage.Cancelled++
		}
	}
	return usage
}
