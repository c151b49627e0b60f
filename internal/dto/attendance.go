package dto

// MarkAttendanceRequest submits marks for a class roster on one date.
// Students without an entry are recorded ABSENT.
type MarkAttendanceRequest struct {
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []AttendanceEntry `json:"entries" validate:"dive"`
}

// AttendanceEntry is one student's submitted mark.
type AttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"omitempty,attendance_status"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// MarkAllPresentRequest marks a whole roster present on one date.
type MarkAllPresentRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// UpdateAttendanceRequest changes a single record.
type UpdateAttendanceRequest struct {
	Status string  `json:"status" validate:"required,attendance_status"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}
