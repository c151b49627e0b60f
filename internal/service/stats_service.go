package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-resource-core/internal/authz"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/internal/stats"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
)

const (
	statsClassPrefix   = "stats:class:"
	statsStudentPrefix = "stats:student:"
	statsScopeAll      = "all"
	statsOpenBound     = "-"
)

type attendanceReader interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

// StatsService serves attendance summaries, cached per class or student and range.
type StatsService struct {
	records  attendanceReader
	teaching teachingLookup
	classes  classLookup
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs StatsService. A nil cache disables caching but
// concurrent computations of one summary are still collapsed.
func NewStatsService(records attendanceReader, teaching teachingLookup, classes classLookup, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCacheService(nil, nil, ttl, logger, false)
	}
	return &StatsService{records: records, teaching: teaching, classes: classes, cache: cache, ttl: ttl, logger: logger}
}

// GetStats summarises a class's attendance over the optional range.
func (s *StatsService) GetStats(ctx context.Context, actor models.Actor, classID string, from, to *time.Time) (*models.AttendanceStats, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateClass(actor, *class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}
	filter := models.AttendanceFilter{ClassID: class.ID, DateFrom: dayPtr(from), DateTo: dayPtr(to)}
	key := classStatsKey(class.ID, filter.DateFrom, filter.DateTo)
	return s.summarise(ctx, key, filter)
}

// GetPercentage returns only the class's present percentage.
func (s *StatsService) GetPercentage(ctx context.Context, actor models.Actor, classID string, from, to *time.Time) (float64, error) {
	summary, err := s.GetStats(ctx, actor, classID, from, to)
	if err != nil {
		return 0, err
	}
	return summary.Percentage, nil
}

// GetStudentStats summarises one student's attendance. Teachers only count
// records from classes they teach.
func (s *StatsService) GetStudentStats(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (*models.AttendanceStats, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	filter, err := studentScope(ctx, s.teaching, actor, studentID)
	if err != nil {
		return nil, err
	}
	filter.DateFrom = dayPtr(from)
	filter.DateTo = dayPtr(to)
	scope := statsScopeAll
	if filter.ClassTeacherID != "" {
		scope = filter.ClassTeacherID
	}
	key := studentStatsKey(studentID, scope, filter.DateFrom, filter.DateTo)
	return s.summarise(ctx, key, filter)
}

// GetStudentPercentage returns only the student's present percentage.
func (s *StatsService) GetStudentPercentage(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (float64, error) {
	summary, err := s.GetStudentStats(ctx, actor, studentID, from, to)
	if err != nil {
		return 0, err
	}
	return summary.Percentage, nil
}

func (s *StatsService) summarise(ctx context.Context, key string, filter models.AttendanceFilter) (*models.AttendanceStats, error) {
	summary, err := Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) (models.AttendanceStats, error) {
		records, err := s.records.List(ctx, filter)
		if err != nil {
			return models.AttendanceStats{}, err
		}
		return stats.Summarise(records), nil
	})
	if err != nil {
		s.logger.Error("failed to compute attendance stats", zap.String("key", key), zap.Error(err))
		return nil, appErrors.ErrInternal.Because(err, "failed to compute attendance stats")
	}
	return &summary, nil
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	return nil
}

func classStatsPattern(classID string) string {
	return statsClassPrefix + classID + ":*"
}

func studentStatsPattern(studentID string) string {
	return statsStudentPrefix + studentID + ":*"
}

func classStatsKey(classID string, from, to *time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", statsClassPrefix, classID, boundKey(from), boundKey(to))
}

func studentStatsKey(studentID, scope string, from, to *time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", statsStudentPrefix, studentID, scope, boundKey(from), boundKey(to))
}

func boundKey(t *time.Time) string {
	if t == nil {
		return statsOpenBound
	}
	return t.Format(calendarDateLayout)
}
