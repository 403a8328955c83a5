package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type bookingStore interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	CreateScheduled(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error
	Reschedule(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error
	UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error
	CreateSeries(ctx context.Context, series *models.RecurringSeries) error
}

type timeOffReader interface {
	TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error)
}

type conflictGuard interface {
	IsFree(ctx context.Context, teacherID string, candidate timewindow.Window, bufferMinutes int) error
}

type snapshotInvalidator interface {
	Invalidate(ctx context.Context, teacherID string)
}

type collaboratorDispatcher interface {
	LessonCreated(ctx context.Context, lesson models.Lesson) []string
	LessonCancelled(ctx context.Context, lesson models.Lesson) []string
	SeriesCreated(ctx context.Context, result models.SeriesResult) []string
}

// BookSingleRequest describes a one-off lesson booking.
type BookSingleRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// BookRecurringRequest describes a weekly series booking. Exactly one of
// EndDate and NumberOfWeeks bounds the series.
type BookRecurringRequest struct {
	TeacherID     string  `json:"teacher_id" validate:"required"`
	StudentID     string  `json:"student_id" validate:"required"`
	DayOfWeek     string  `json:"day_of_week" validate:"required"`
	StartTime     string  `json:"start_time" validate:"required"`
	EndTime       string  `json:"end_time" validate:"required"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       *string `json:"end_date,omitempty"`
	NumberOfWeeks *int    `json:"number_of_weeks,omitempty"`
}

// RescheduleRequest moves an existing lesson to a new interval.
type RescheduleRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// BookingService orchestrates the booking pipeline: policy lookup, civil
// time resolution, notice and time-off checks, conflict detection and the
// atomic commit. Collaborator dispatch happens after commit and never fails
// a booking.
type BookingService struct {
	lessons        bookingStore
	timeOff        timeOffReader
	policies       policyProvider
	checker        conflictGuard
	availability   snapshotInvalidator
	sync           collaboratorDispatcher
	validator      *validator.Validate
	logger         *zap.Logger
	metrics        *MetricsService
	maxSeriesWeeks int
	now            func() time.Time
}

// NewBookingService constructs BookingService. availability and sync may be
// nil in stripped-down deployments.
func NewBookingService(lessons bookingStore, timeOff timeOffReader, policies policyProvider, checker conflictGuard, availability snapshotInvalidator, sync collaboratorDispatcher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, maxSeriesWeeks int) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSeriesWeeks <= 0 {
		maxSeriesWeeks = 52
	}
	return &BookingService{
		lessons:        lessons,
		timeOff:        timeOff,
		policies:       policies,
		checker:        checker,
		availability:   availability,
		sync:           sync,
		validator:      validate,
		logger:         logger,
		metrics:        metrics,
		maxSeriesWeeks: maxSeriesWeeks,
		now:            time.Now,
	}
}

// BookSingle books one lesson. On success it returns the committed lesson
// plus warnings from collaborators whose first dispatch attempt failed.
func (s *BookingService) BookSingle(ctx context.Context, req BookSingleRequest) (*models.Lesson, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request")
	}

	policy, err := s.loadPolicy(ctx, req.TeacherID)
	if err != nil {
		s.metrics.RecordBookingOutcome(OutcomeError)
		return nil, nil, err
	}

	lesson, err := s.commitLesson(ctx, *policy, req.StudentID, req.Date, req.StartTime, req.EndTime, nil)
	if err != nil {
		s.metrics.RecordBookingOutcome(outcomeFor(err))
		return nil, nil, err
	}
	s.metrics.RecordBookingOutcome(OutcomeBooked)

	if s.availability != nil {
		s.availability.Invalidate(ctx, lesson.TeacherID)
	}
	var warnings []string
	if s.sync != nil {
		warnings = s.sync.LessonCreated(ctx, *lesson)
	}
	s.logger.Info("lesson booked",
		zap.String("lesson_id", lesson.ID),
		zap.String("teacher_id", lesson.TeacherID),
		zap.String("date", lesson.Date))
	return lesson, warnings, nil
}

// BookRecurring books a weekly series best-effort: every occurrence runs the
// full pipeline independently, failed occurrences are reported as skips and
// never abort the rest. The series row is only persisted once at least one
// occurrence commits.
func (s *BookingService) BookRecurring(ctx context.Context, req BookRecurringRequest) (*models.SeriesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid series request")
	}
	if (req.EndDate == nil) == (req.NumberOfWeeks == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of end_date and number_of_weeks is required")
	}
	weekday, err := models.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day of week")
	}

	dates, err := s.seriesDates(req.StartDate, req.EndDate, req.NumberOfWeeks, weekday)
	if err != nil {
		return nil, err
	}

	policy, err := s.loadPolicy(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}

	seriesID := uuid.NewString()
	result := &models.SeriesResult{Created: []models.SeriesOccurrence{}, Skipped: []models.SeriesSkip{}}
	seriesPersisted := false

	for _, date := range dates {
		lesson, err := s.commitLesson(ctx, *policy, req.StudentID, date, req.StartTime, req.EndTime, &seriesID)
		if err != nil {
			s.metrics.RecordBookingOutcome(outcomeFor(err))
			result.Skipped = append(result.Skipped, models.SeriesSkip{Date: date, Reason: appErrors.FromError(err).Code})
			continue
		}
		s.metrics.RecordBookingOutcome(OutcomeBooked)

		if !seriesPersisted {
			series := &models.RecurringSeries{
				ID:          seriesID,
				TeacherID:   req.TeacherID,
				StudentID:   req.StudentID,
				DayOfWeek:   req.DayOfWeek,
				StartTime:   req.StartTime,
				EndTime:     req.EndTime,
				StartDate:   req.StartDate,
				EndDate:     req.EndDate,
				Occurrences: req.NumberOfWeeks,
			}
			if err := s.lessons.CreateSeries(ctx, series); err != nil {
				// The lesson is committed either way; the series row is
				// bookkeeping, not an ownership link.
				s.logger.Error("failed to persist series row", zap.String("series_id", seriesID), zap.Error(err))
			}
			seriesPersisted = true
			result.SeriesID = &seriesID
		}

		result.Created = append(result.Created, models.SeriesOccurrence{Date: date, LessonID: lesson.ID})
		if s.sync != nil {
			result.Warnings = append(result.Warnings, s.sync.LessonCreated(ctx, *lesson)...)
		}
	}

	if s.availability != nil && len(result.Created) > 0 {
		s.availability.Invalidate(ctx, req.TeacherID)
	}
	if s.sync != nil && len(result.Created) > 0 {
		result.Warnings = append(result.Warnings, s.sync.SeriesCreated(ctx, *result)...)
	}
	s.logger.Info("series booked",
		zap.String("teacher_id", req.TeacherID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// Cancel cancels a scheduled lesson, enforcing the cancellation notice
// captured on the lesson at booking time.
func (s *BookingService) Cancel(ctx context.Context, lessonID string) (*models.Lesson, []string, error) {
	lesson, err := s.findScheduled(ctx, lessonID)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckActionNotice(lesson.CancelNoticeHours, s.now(), lesson.StartAt); err != nil {
		return nil, nil, err
	}
	if err := s.lessons.UpdateStatus(ctx, lessonID, models.LessonCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to cancel lesson")
	}
	lesson.Status = models.LessonCancelled

	if s.availability != nil {
		s.availability.Invalidate(ctx, lesson.TeacherID)
	}
	var warnings []string
	if s.sync != nil {
		warnings = s.sync.LessonCancelled(ctx, *lesson)
	}
	s.logger.Info("lesson cancelled", zap.String("lesson_id", lessonID))
	return lesson, warnings, nil
}

// Reschedule moves a scheduled lesson to a new interval. The reschedule
// notice comes from the lesson's snapshot; the new interval passes the same
// notice, time-off and conflict checks as a fresh booking.
func (s *BookingService) Reschedule(ctx context.Context, lessonID string, req RescheduleRequest) (*models.Lesson, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule request")
	}
	lesson, err := s.findScheduled(ctx, lessonID)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckActionNotice(lesson.RescheduleNoticeHours, s.now(), lesson.StartAt); err != nil {
		return nil, nil, err
	}

	policy, err := s.loadPolicy(ctx, lesson.TeacherID)
	if err != nil {
		return nil, nil, err
	}
	window, err := s.resolveWindow(*policy, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckNotice(*policy, s.now(), window.Start); err != nil {
		return nil, nil, err
	}
	if err := s.checkTimeOff(ctx, lesson.TeacherID, req.Date); err != nil {
		return nil, nil, err
	}

	// The snapshot buffer keeps padding this lesson, not the current policy.
	buffer := time.Duration(lesson.BufferMinutes) * time.Minute
	padded := window.Pad(buffer, buffer)

	lesson.Date = req.Date
	lesson.StartTime = req.StartTime
	lesson.EndTime = req.EndTime
	lesson.StartAt = window.Start.UTC()
	lesson.EndAt = window.End.UTC()
	if err := s.lessons.Reschedule(ctx, lesson, padded); err != nil {
		return nil, nil, s.commitError(err)
	}

	if s.availability != nil {
		s.availability.Invalidate(ctx, lesson.TeacherID)
	}
	var warnings []string
	if s.sync != nil {
		warnings = s.sync.LessonCreated(ctx, *lesson)
	}
	s.logger.Info("lesson rescheduled", zap.String("lesson_id", lessonID), zap.String("date", req.Date))
	return lesson, warnings, nil
}

// Complete marks a scheduled lesson as completed once it has ended.
func (s *BookingService) Complete(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.findScheduled(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.EndAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson has not ended yet")
	}
	if err := s.lessons.UpdateStatus(ctx, lessonID, models.LessonCompleted); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to complete lesson")
	}
	lesson.Status = models.LessonCompleted
	return lesson, nil
}

// List returns lessons matching the filter with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	lessons, total, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return lessons, pagination, nil
}

// Find loads one lesson by id.
func (s *BookingService) Find(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// commitLesson runs the shared per-occurrence pipeline and the atomic
// check-and-insert. Every rejection returns a typed error.
func (s *BookingService) commitLesson(ctx context.Context, policy models.TeacherPolicy, studentID, date, startTime, endTime string, seriesID *string) (*models.Lesson, error) {
	window, err := s.resolveWindow(policy, date, startTime, endTime)
	if err != nil {
		return nil, err
	}
	if err := CheckNotice(policy, s.now(), window.Start); err != nil {
		return nil, err
	}
	if err := s.checkTimeOff(ctx, policy.TeacherID, date); err != nil {
		return nil, err
	}
	if s.checker != nil {
		if err := s.checker.IsFree(ctx, policy.TeacherID, window, policy.BufferMinutes); err != nil {
			return nil, err
		}
	}

	lesson := &models.Lesson{
		TeacherID:       policy.TeacherID,
		StudentID:       studentID,
		SeriesID:        seriesID,
		Date:            date,
		StartTime:       startTime,
		EndTime:         endTime,
		StartAt:         window.Start.UTC(),
		EndAt:           window.End.UTC(),
		MeetingMetadata: policy.MeetingSnapshot(),
	}
	buffer := time.Duration(policy.BufferMinutes) * time.Minute
	if err := s.lessons.CreateScheduled(ctx, lesson, window.Pad(buffer, buffer)); err != nil {
		return nil, s.commitError(err)
	}
	return lesson, nil
}

// resolveWindow turns teacher-local civil values into the UTC interval all
// overlap arithmetic runs on. DST transitions resolve through the zone
// database; a lesson spanning a transition keeps its civil wall times.
func (s *BookingService) resolveWindow(policy models.TeacherPolicy, date, startTime, endTime string) (timewindow.Window, error) {
	if _, err := timewindow.ParseDate(date); err != nil {
		return timewindow.Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}
	if _, _, err := timewindow.ParseClock(startTime); err != nil {
		return timewindow.Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid start time")
	}
	if _, _, err := timewindow.ParseClock(endTime); err != nil {
		return timewindow.Window{}, appErrors.Clone(appErrors.ErrValidation, "invalid end time")
	}
	if startTime >= endTime {
		return timewindow.Window{}, appErrors.Clone(appErrors.ErrValidation, "start time must precede end time")
	}

	loc, err := timewindow.LoadZone(policy.Timezone)
	if err != nil {
		return timewindow.Window{}, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "teacher has invalid timezone")
	}
	window, err := timewindow.Span(date, startTime, endTime, loc)
	if err != nil {
		return timewindow.Window{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson interval")
	}
	return window, nil
}

func (s *BookingService) loadPolicy(ctx context.Context, teacherID string) (*models.TeacherPolicy, error) {
	policy, err := s.policies.PolicyFor(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTeacherNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher policy")
	}
	if !policy.Active {
		return nil, appErrors.Clone(appErrors.ErrTeacherNotFound, "teacher is not accepting bookings")
	}
	return policy, nil
}

func (s *BookingService) checkTimeOff(ctx context.Context, teacherID, date string) error {
	periods, err := s.timeOff.TimeOff(ctx, teacherID, date, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time off")
	}
	for _, p := range periods {
		if p.ContainsDate(date) {
			return appErrors.Clone(appErrors.ErrTeacherOnTimeOff,
				fmt.Sprintf("teacher is on time off on %s", date))
		}
	}
	return nil
}

func (s *BookingService) findScheduled(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.Find(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Status != models.LessonScheduled {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("lesson is %s, not scheduled", lesson.Status))
	}
	return lesson, nil
}

// commitError maps a transaction failure to its typed domain error. The
// in-transaction conflict scan is the authority; an advisory pre-check pass
// can still lose the race here.
func (s *BookingService) commitError(err error) error {
	var conflict *models.LessonConflictError
	if errors.As(err, &conflict) {
		return appErrors.Wrap(conflict, appErrors.ErrSlotConflict.Code, appErrors.ErrSlotConflict.Status, conflict.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to commit lesson")
}

func outcomeFor(err error) string {
	e := appErrors.FromError(err)
	switch e.Code {
	case appErrors.ErrSlotConflict.Code:
		return OutcomeConflict
	case appErrors.ErrPastDate.Code, appErrors.ErrInsufficientNotice.Code, appErrors.ErrTeacherOnTimeOff.Code:
		return OutcomePolicy
	default:
		return OutcomeError
	}
}

// seriesDates expands the series bounds into concrete civil dates: the start
// date advanced to the first matching weekday, then 7-day steps.
func (s *BookingService) seriesDates(startDate string, endDate *string, weeks *int, weekday time.Weekday) ([]string, error) {
	start, err := timewindow.ParseDate(startDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	for start.Weekday() != weekday {
		start = start.AddDate(0, 0, 1)
	}

	var dates []string
	if weeks != nil {
		if *weeks < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "number_of_weeks must be positive")
		}
		if *weeks > s.maxSeriesWeeks {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("series exceeds %d weeks", s.maxSeriesWeeks))
		}
		for i := 0; i < *weeks; i++ {
			dates = append(dates, timewindow.FormatDate(start.AddDate(0, 0, 7*i)))
		}
		return dates, nil
	}

	end, err := timewindow.ParseDate(*endDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
		if len(dates) >= s.maxSeriesWeeks {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("series exceeds %d weeks", s.maxSeriesWeeks))
		}
		dates = append(dates, timewindow.FormatDate(d))
	}
	return dates, nil
}
