package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-resource-core/internal/models"
)

const attendanceColumns = `id, student_id, class_id, teacher_id, date, status, notes, marked_at, updated_at`

// AttendanceRepository persists per-student daily attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByID returns a record by its ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey returns the record for (student, class, date).
func (r *AttendanceRepository) FindByKey(ctx context.Context, exec sqlx.ExtContext, studentID, classID string, date time.Time) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE student_id = $1 AND class_id = $2 AND date = $3`
	var record models.AttendanceRecord
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &record, query, studentID, classID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

const (
	foldOverwritingNotes = `notes = EXCLUDED.notes`
	foldKeepingNotes     = `notes = attendance_records.notes`
)

// Create inserts a record. A concurrent insert for the same key is folded
// into an update of status and notes, keeping the original recorder.
func (r *AttendanceRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	return r.insert(ctx, exec, record, foldOverwritingNotes)
}

// CreateKeepingNotes inserts a record like Create, but a concurrent insert
// for the same key only changes the status and leaves stored notes alone.
func (r *AttendanceRepository) CreateKeepingNotes(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	return r.insert(ctx, exec, record, foldKeepingNotes)
}

func (r *AttendanceRepository) insert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord, notesFold string) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}
	record.UpdatedAt = now

	query := `INSERT INTO attendance_records (id, student_id, class_id, teacher_id, date, status, notes, marked_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, class_id, date)
DO UPDATE SET status = EXCLUDED.status, ` + notesFold + `, updated_at = EXCLUDED.updated_at
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := sqlx.GetContext(ctx, orDB(exec, r.db), &stored, query,
		record.ID, record.StudentID, record.ClassID, record.TeacherID, record.Date,
		record.Status, record.Notes, record.MarkedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendance record: %w", mapPQError(err))
	}
	*record = stored
	return nil
}

// Update rewrites status and notes of an existing record.
func (r *AttendanceRepository) Update(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance_records SET status = $1, notes = $2, updated_at = $3 WHERE id = $4`
	if _, err := orDB(exec, r.db).ExecContext(ctx, query, record.Status, record.Notes, record.UpdatedAt, record.ID); err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	return nil
}

// ListByClassAndDate returns a class's records for one date ordered by student.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE class_id = $1 AND date = $2 ORDER BY student_id`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, date); err != nil {
		return nil, fmt.Errorf("list class attendance: %w", err)
	}
	return records, nil
}

// List returns records matching the filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var where []string
	var args []interface{}
	from := "attendance_records ar"

	if filter.ClassTeacherID != "" {
		from += " JOIN classes c ON c.id = ar.class_id"
		where = append(where, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.ClassTeacherID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("ar.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := `SELECT ar.id, ar.student_id, ar.class_id, ar.teacher_id, ar.date, ar.status, ar.notes, ar.marked_at, ar.updated_at FROM ` + from
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ar.date DESC, ar.class_id"

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// DistinctDates returns every date with at least one record for the class, newest first.
func (r *AttendanceRepository) DistinctDates(ctx context.Context, classID string) ([]time.Time, error) {
	const query = `SELECT DISTINCT date FROM attendance_records WHERE class_id = $1 ORDER BY date DESC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance dates: %w", err)
	}
	return dates, nil
}
