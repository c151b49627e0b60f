package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent       UserRole = "STUDENT"
	RoleTeacher       UserRole = "TEACHER"
	RoleAdministrator UserRole = "ADMINISTRATOR"
)

// Valid reports whether the role is one of the supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdministrator:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table. Role is fixed at creation.
type User struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Actor is the explicit caller identity passed into every guarded operation.
type Actor struct {
	ID   string
	Role UserRole
}
