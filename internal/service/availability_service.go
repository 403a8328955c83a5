package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type availabilityStore interface {
	WeeklySlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error)
	OneTimeSlots(ctx context.Context, teacherID, fromDate, toDate string) ([]models.AvailabilitySlot, error)
	TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error)
}

type scheduledLessonReader interface {
	ScheduledForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error)
}

type policyProvider interface {
	PolicyFor(ctx context.Context, teacherID string) (*models.TeacherPolicy, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateTeacher(ctx context.Context, teacherID string) error
}

// AvailabilityService resolves a teacher's declared slots, overrides,
// time off and existing lessons into bookable windows, converted to the
// viewer's timezone. Results are advisory snapshots; the booking commit
// re-validates everything.
type AvailabilityService struct {
	slots        availabilityStore
	lessons      scheduledLessonReader
	policies     policyProvider
	cache        snapshotCache
	cacheTTL     time.Duration
	maxRangeDays int
	logger       *zap.Logger
	metrics      *MetricsService
}

// NewAvailabilityService instantiates AvailabilityService. cache may be nil.
func NewAvailabilityService(slots availabilityStore, lessons scheduledLessonReader, policies policyProvider, cache snapshotCache, cacheTTL time.Duration, maxRangeDays int, metrics *MetricsService, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRangeDays <= 0 {
		maxRangeDays = 31
	}
	return &AvailabilityService{
		slots:        slots,
		lessons:      lessons,
		policies:     policies,
		cache:        cache,
		cacheTTL:     cacheTTL,
		maxRangeDays: maxRangeDays,
		logger:       logger,
		metrics:      metrics,
	}
}

// Resolve returns the bookable windows for every date in [fromDate, toDate],
// expressed in the viewer's timezone. Windows from different slots are never
// merged; each carries the slot that produced it so the caller can book it.
func (s *AvailabilityService) Resolve(ctx context.Context, teacherID, fromDate, toDate, viewerZone string) ([]models.AvailableWindow, error) {
	from, err := timewindow.ParseDate(fromDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
	}
	to, err := timewindow.ParseDate(toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to date precedes from date")
	}
	if int(to.Sub(from).Hours()/24) >= s.maxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.maxRangeDays))
	}

	viewerLoc, err := timewindow.LoadZone(viewerZone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "invalid viewer timezone")
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = fmt.Sprintf("availability:%s:%s:%s:%s", teacherID, fromDate, toDate, viewerZone)
		var cached []models.AvailableWindow
		start := time.Now()
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	policy, err := s.policies.PolicyFor(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown teacher resolves to no availability, not an error.
			return []models.AvailableWindow{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher policy")
	}
	if !policy.Active {
		return []models.AvailableWindow{}, nil
	}
	teacherLoc, err := timewindow.LoadZone(policy.Timezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "teacher has invalid timezone")
	}

	weekly, err := s.slots.WeeklySlots(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly slots")
	}
	oneTime, err := s.slots.OneTimeSlots(ctx, teacherID, fromDate, toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load one-time slots")
	}
	timeOff, err := s.slots.TimeOff(ctx, teacherID, fromDate, toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time off")
	}

	// One snapshot of booked lessons covers the whole range, padded a day on
	// each side so buffers around midnight lessons are not missed.
	rangeStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, teacherLoc).AddDate(0, 0, -1)
	rangeEnd := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, teacherLoc).AddDate(0, 0, 2)
	booked, err := s.lessons.ScheduledForTeacher(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked lessons")
	}

	// Busy intervals are padded by the lesson's snapshot buffer plus the
	// teacher's current buffer, so every emitted window survives the
	// commit-time conflict check.
	policyBuffer := time.Duration(policy.BufferMinutes) * time.Minute
	busy := make([]timewindow.Window, 0, len(booked))
	for _, lesson := range booked {
		pad := time.Duration(lesson.BufferMinutes)*time.Minute + policyBuffer
		busy = append(busy, timewindow.Window{Start: lesson.StartAt, End: lesson.EndAt}.Pad(pad, pad))
	}

	windows := make([]models.AvailableWindow, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dateStr := timewindow.FormatDate(d)
		if onTimeOff(timeOff, dateStr) {
			continue
		}

		dayWindows, err := s.resolveDate(dateStr, d.Weekday(), weekly, oneTime, busy, teacherLoc, viewerLoc)
		if err != nil {
			return nil, err
		}
		windows = append(windows, dayWindows...)
	}

	if s.cache != nil && cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, windows, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return windows, nil
}

// resolveDate computes the bookable windows for a single civil date.
// Conversions run per date so each day picks up its own zone offset.
func (s *AvailabilityService) resolveDate(dateStr string, weekday time.Weekday, weekly, oneTime []models.AvailabilitySlot, busy []timewindow.Window, teacherLoc, viewerLoc *time.Location) ([]models.AvailableWindow, error) {
	// One-time unavailable entries override the weekly pattern for this
	// date; one-time available entries add windows alongside it.
	var blocks []timewindow.Window
	var adds []models.AvailabilitySlot
	for _, slot := range oneTime {
		if slot.Date == nil || *slot.Date != dateStr {
			continue
		}
		if slot.Available {
			adds = append(adds, slot)
			continue
		}
		span, err := timewindow.Span(dateStr, slot.StartTime, slot.EndTime, teacherLoc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt override slot")
		}
		blocks = append(blocks, span)
	}

	var out []models.AvailableWindow
	emit := func(slot models.AvailabilitySlot, applyBlocks bool) error {
		span, err := timewindow.Span(dateStr, slot.StartTime, slot.EndTime, teacherLoc)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt availability slot")
		}
		remaining := []timewindow.Window{span}
		if applyBlocks && len(blocks) > 0 {
			remaining = timewindow.SubtractAll(span, blocks)
		}
		for _, r := range remaining {
			for _, w := range timewindow.SubtractAll(r, busy) {
				out = append(out, models.AvailableWindow{
					SlotID:       slot.ID,
					TeacherID:    slot.TeacherID,
					Date:         dateStr,
					TeacherStart: w.Start.In(teacherLoc).Format("15:04"),
					TeacherEnd:   w.End.In(teacherLoc).Format("15:04"),
					Start:        w.Start.In(viewerLoc),
					End:          w.End.In(viewerLoc),
				})
			}
		}
		return nil
	}

	for _, slot := range weekly {
		if !slot.Available || slot.DayOfWeek == nil {
			continue
		}
		day, err := models.ParseWeekday(*slot.DayOfWeek)
		if err != nil || day != weekday {
			continue
		}
		if err := emit(slot, true); err != nil {
			return nil, err
		}
	}
	for _, slot := range adds {
		if err := emit(slot, false); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func onTimeOff(periods []models.TimeOffPeriod, date string) bool {
	for _, p := range periods {
		if p.ContainsDate(date) {
			return true
		}
	}
	return false
}

// Invalidate drops cached snapshots for a teacher after a state change.
func (s *AvailabilityService) Invalidate(ctx context.Context, teacherID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTeacher(ctx, teacherID); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
