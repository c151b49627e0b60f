package models

// AttendanceStats is the derived summary for a class or student over a range.
type AttendanceStats struct {
	Counts     map[AttendanceStatus]int `json:"counts"`
	Total      int                      `json:"total"`
	Percentage float64                  `json:"percentage"`
}
