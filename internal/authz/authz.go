// Package authz holds the access policies for bookings and attendance.
// Every function is pure; callers resolve any relationship facts
// (such as whether a teacher teaches a student) before asking.
package authz

import "github.com/noah-isme/sma-resource-core/internal/models"

// CanMutateClass reports whether the actor may write attendance or read
// class-wide data for the class.
func CanMutateClass(actor models.Actor, class models.Class) bool {
	switch actor.Role {
	case models.RoleAdministrator:
		return true
	case models.RoleTeacher:
		return actor.ID != "" && actor.ID == class.TeacherID
	case models.RoleStudent:
		return false
	default:
		return false
	}
}

// CanViewStudentData reports whether the actor may read the student's attendance.
// teachesStudent must be true only when the actor teaches a class the student is enrolled in.
func CanViewStudentData(actor models.Actor, studentID string, teachesStudent bool) bool {
	switch actor.Role {
	case models.RoleAdministrator:
		return true
	case models.RoleTeacher:
		return teachesStudent
	case models.RoleStudent:
		return actor.ID != "" && actor.ID == studentID
	default:
		return false
	}
}

// CanRequestBooking reports whether the actor may reserve rooms at all.
func CanRequestBooking(actor models.Actor) bool {
	switch actor.Role {
	case models.RoleTeacher:
		return actor.ID != ""
	case models.RoleAdministrator, models.RoleStudent:
		return false
	default:
		return false
	}
}

// CanMutateBooking reports whether the actor may change or cancel the booking.
func CanMutateBooking(actor models.Actor, booking models.Booking) bool {
	switch actor.Role {
	case models.RoleTeacher, models.RoleAdministrator, models.RoleStudent:
		return actor.ID != "" && actor.ID == booking.BookerID
	default:
		return false
	}
}

// CanMutateRecord reports whether the actor recorded the attendance entry.
func CanMutateRecord(actor models.Actor, record models.AttendanceRecord) bool {
	switch actor.Role {
	case models.RoleTeacher:
		return actor.ID != "" && actor.ID == record.TeacherID
	case models.RoleAdministrator, models.RoleStudent:
		return false
	default:
		return false
	}
}
