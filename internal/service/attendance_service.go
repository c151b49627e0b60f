package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-resource-core/internal/authz"
	"github.com/noah-isme/sma-resource-core/internal/models"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
)

const (
	attendanceOpMark       = "mark"
	attendanceOpAllPresent = "all_present"
	attendanceOpSingle     = "single"
)

type attendanceStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AttendanceRecord, error)
	FindByKey(ctx context.Context, exec sqlx.ExtContext, studentID, classID string, date time.Time) (*models.AttendanceRecord, error)
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	CreateKeepingNotes(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	Update(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	DistinctDates(ctx context.Context, classID string) ([]time.Time, error)
}

type teachingLookup interface {
	TeacherTeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error)
}

type rosterStore interface {
	teachingLookup
	ListActiveByClass(ctx context.Context, exec sqlx.ExtContext, classID string) ([]models.Enrollment, error)
}

// AttendanceService keeps one attendance record per student, class and date.
type AttendanceService struct {
	records   attendanceStore
	roster    rosterStore
	classes   classLookup
	tx        transactor
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(records attendanceStore, roster rosterStore, classes classLookup, tx transactor, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		records:   records,
		roster:    roster,
		classes:   classes,
		tx:        tx,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return ParseAttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Validator exposes the validator carrying the attendance tags.
func (s *AttendanceService) Validator() *validator.Validate {
	return s.validator
}

// ParseAttendanceStatus normalises user input into a status value.
func ParseAttendanceStatus(raw string) models.AttendanceStatus {
	return models.AttendanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// AttendanceDay truncates t to its UTC calendar date.
func AttendanceDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarkForClass records the submitted marks for the class roster on one date.
// Roster students without a submitted status are recorded ABSENT; submissions
// for students outside the roster are ignored. All writes share one transaction.
func (s *AttendanceService) MarkForClass(ctx context.Context, actor models.Actor, classID string, date time.Time, marks map[string]models.AttendanceMark) ([]models.AttendanceRecord, error) {
	for studentID, mark := range marks {
		if mark.Status != "" && !mark.Status.Valid() {
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrValidation, "invalid attendance status"),
				map[string]string{"student_id": studentID, "status": string(mark.Status)},
			)
		}
	}
	class, err := s.ownedClass(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	day := AttendanceDay(date)

	var (
		records []models.AttendanceRecord
		written int
	)
	err = s.tx.WithinTx(ctx, nil, func(exec sqlx.ExtContext) error {
		records, written = nil, 0
		roster, err := s.roster.ListActiveByClass(ctx, exec, class.ID)
		if err != nil {
			return err
		}
		for _, enrollment := range roster {
			mark := marks[enrollment.StudentID]
			status := mark.Status
			if status == "" {
				status = models.AttendanceStatusAbsent
			}
			record, changed, err := s.apply(ctx, exec, recorderFor(actor, *class), class.ID, enrollment.StudentID, day, status, mark.Notes, true)
			if err != nil {
				return err
			}
			if changed {
				written++
			}
			records = append(records, *record)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to mark attendance", zap.String("class_id", classID), zap.Time("date", day), zap.Error(err))
		return nil, appErrors.ErrInternal.Because(err, "failed to mark attendance")
	}

	s.metrics.RecordAttendanceWrites(attendanceOpMark, written)
	s.invalidateStats(ctx, class.ID, records)
	s.logger.Info("attendance marked",
		zap.String("class_id", class.ID),
		zap.Time("date", day),
		zap.Int("roster", len(records)),
		zap.Int("written", written),
	)
	return records, nil
}

// MarkAllPresent sets every roster student PRESENT for the date. Existing notes
// are kept. Repeating the call changes nothing.
func (s *AttendanceService) MarkAllPresent(ctx context.Context, actor models.Actor, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	class, err := s.ownedClass(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	day := AttendanceDay(date)

	var (
		records []models.AttendanceRecord
		written int
	)
	err = s.tx.WithinTx(ctx, nil, func(exec sqlx.ExtContext) error {
		records, written = nil, 0
		roster, err := s.roster.ListActiveByClass(ctx, exec, class.ID)
		if err != nil {
			return err
		}
		for _, enrollment := range roster {
			record, changed, err := s.apply(ctx, exec, recorderFor(actor, *class), class.ID, enrollment.StudentID, day, models.AttendanceStatusPresent, nil, false)
			if err != nil {
				return err
			}
			if changed {
				written++
			}
			records = append(records, *record)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to mark class present", zap.String("class_id", classID), zap.Time("date", day), zap.Error(err))
		return nil, appErrors.ErrInternal.Because(err, "failed to mark attendance")
	}

	s.metrics.RecordAttendanceWrites(attendanceOpAllPresent, written)
	if written > 0 {
		s.invalidateStats(ctx, class.ID, records)
	}
	return records, nil
}

// UpdateSingleRecord changes one record. Only the recording teacher may do so.
func (s *AttendanceService) UpdateSingleRecord(ctx context.Context, actor models.Actor, recordID string, status models.AttendanceStatus, notes *string) (*models.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	record, err := s.records.FindByID(ctx, nil, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.ErrInternal.Because(err, "failed to load attendance record")
	}
	if !authz.CanMutateRecord(actor, *record) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the recording teacher can change this record")
	}

	record.Status = status
	record.Notes = notes
	record.UpdatedAt = s.now().UTC()
	if err := s.records.Update(ctx, nil, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.ErrInternal.Because(err, "failed to update attendance record")
	}
	s.metrics.RecordAttendanceWrites(attendanceOpSingle, 1)
	s.invalidateStats(ctx, record.ClassID, []models.AttendanceRecord{*record})
	return record, nil
}

// GetHistory returns a student's records in the optional date range. Teachers
// only see records for classes they teach.
func (s *AttendanceService) GetHistory(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	filter, err := studentScope(ctx, s.roster, actor, studentID)
	if err != nil {
		return nil, err
	}
	filter.DateFrom = dayPtr(from)
	filter.DateTo = dayPtr(to)

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to load attendance history")
	}
	return records, nil
}

// GetClassAttendance returns the records of a class on one date. Students only
// see their own rows.
func (s *AttendanceService) GetClassAttendance(ctx context.Context, actor models.Actor, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	ownView := !authz.CanMutateClass(actor, *class)
	if ownView && actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}

	records, err := s.records.ListByClassAndDate(ctx, class.ID, AttendanceDay(date))
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to load class attendance")
	}
	if !ownView {
		return records, nil
	}
	visible := make([]models.AttendanceRecord, 0, 1)
	for _, r := range records {
		if authz.CanViewStudentData(actor, r.StudentID, false) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// GetAttendanceDates lists the dates on which the class has records.
func (s *AttendanceService) GetAttendanceDates(ctx context.Context, actor models.Actor, classID string) ([]time.Time, error) {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateClass(actor, *class) && actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}
	dates, err := s.records.DistinctDates(ctx, class.ID)
	if err != nil {
		return nil, appErrors.ErrInternal.Because(err, "failed to load attendance dates")
	}
	return dates, nil
}

// recorderFor names the teacher a new record is attributed to. Teachers
// record their own marks; marks entered by anyone else are attributed to the
// class teacher so the record stays editable by a teacher.
func recorderFor(actor models.Actor, class models.Class) string {
	if actor.Role == models.RoleTeacher {
		return actor.ID
	}
	return class.TeacherID
}

// apply creates or updates the record for one student. With overwriteNotes
// false, existing notes are left untouched. The bool reports whether anything
// was written.
func (s *AttendanceService) apply(ctx context.Context, exec sqlx.ExtContext, recorderID string, classID, studentID string, day time.Time, status models.AttendanceStatus, notes *string, overwriteNotes bool) (*models.AttendanceRecord, bool, error) {
	now := s.now().UTC()
	existing, err := s.records.FindByKey(ctx, exec, studentID, classID, day)
	switch {
	case err == nil:
		if existing.Status == status && (!overwriteNotes || sameNotes(existing.Notes, notes)) {
			return existing, false, nil
		}
		existing.Status = status
		if overwriteNotes {
			existing.Notes = notes
		}
		existing.UpdatedAt = now
		if err := s.records.Update(ctx, exec, existing); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	case errors.Is(err, sql.ErrNoRows):
		record := &models.AttendanceRecord{
			StudentID: studentID,
			ClassID:   classID,
			TeacherID: recorderID,
			Date:      day,
			Status:    status,
			Notes:     notes,
			MarkedAt:  now,
			UpdatedAt: now,
		}
		create := s.records.Create
		if !overwriteNotes {
			create = s.records.CreateKeepingNotes
		}
		if err := create(ctx, exec, record); err != nil {
			return nil, false, err
		}
		return record, true, nil
	default:
		return nil, false, err
	}
}

func (s *AttendanceService) findClass(ctx context.Context, classID string) (*models.Class, error) {
	return loadClass(ctx, s.classes, classID)
}

func loadClass(ctx context.Context, classes classLookup, classID string) (*models.Class, error) {
	class, err := classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.ErrInternal.Because(err, "failed to load class")
	}
	return class, nil
}

func (s *AttendanceService) ownedClass(ctx context.Context, actor models.Actor, classID string) (*models.Class, error) {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateClass(actor, *class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}
	return class, nil
}

// studentScope authorizes access to a student's data and returns the filter
// restricting a teacher to their own classes.
func studentScope(ctx context.Context, lookup teachingLookup, actor models.Actor, studentID string) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{StudentID: studentID}
	teaches := false
	if actor.Role == models.RoleTeacher {
		ok, err := lookup.TeacherTeachesStudent(ctx, actor.ID, studentID)
		if err != nil {
			return filter, appErrors.ErrInternal.Because(err, "failed to resolve teaching relation")
		}
		teaches = ok
		filter.ClassTeacherID = actor.ID
	}
	if !authz.CanViewStudentData(actor, studentID, teaches) {
		return filter, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this student's attendance")
	}
	return filter, nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, classID string, records []models.AttendanceRecord) {
	if !s.cache.Enabled() {
		return
	}
	patterns := make([]string, 0, len(records)+1)
	patterns = append(patterns, classStatsPattern(classID))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.StudentID]; ok {
			continue
		}
		seen[r.StudentID] = struct{}{}
		patterns = append(patterns, studentStatsPattern(r.StudentID))
	}
	_ = s.cache.Invalidate(ctx, patterns...)
}

func sameNotes(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	day := AttendanceDay(*t)
	return &day
}
