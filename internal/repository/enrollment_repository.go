package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

// EnrollmentRepository handles enrollment lookups for rosters and access checks.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActiveByClass returns the class's current roster ordered by student.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, exec sqlx.ExtContext, classID string) ([]models.Enrollment, error) {
	const query = `SELECT id, class_id, student_id, active, enrolled_at FROM enrollments WHERE class_id = $1 AND active = TRUE ORDER BY student_id`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, orDB(exec, r.db), &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// TeacherTeachesStudent reports whether the student is actively enrolled in any class the teacher owns.
func (r *EnrollmentRepository) TeacherTeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e JOIN classes c ON c.id = e.class_id WHERE c.teacher_id = $1 AND e.student_id = $2 AND e.active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher student relation: %w", err)
	}
	return true, nil
}
