package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type slotStore interface {
	ListSlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error)
	CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) error
	DisableSlot(ctx context.Context, teacherID, slotID string) error
	TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error)
	CreateTimeOff(ctx context.Context, period *models.TimeOffPeriod) error
}

// CreateSlotRequest declares a new availability slot. Weekly slots carry
// day_of_week, one-time slots carry date; never both.
type CreateSlotRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	DayOfWeek *string `json:"day_of_week,omitempty"`
	Date      *string `json:"date,omitempty"`
	Available *bool   `json:"available,omitempty"`
}

// CreateTimeOffRequest blocks a closed civil date range.
type CreateTimeOffRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required"`
	StartDate string  `json:"start_date" validate:"required"`
	EndDate   string  `json:"end_date" validate:"required"`
	Reason    *string `json:"reason,omitempty"`
}

// ScheduleService manages a teacher's declared slots and time-off periods.
// Every mutation invalidates the teacher's cached availability snapshots.
type ScheduleService struct {
	slots        slotStore
	availability snapshotInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService constructs ScheduleService. availability may be nil.
func NewScheduleService(slots slotStore, availability snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{slots: slots, availability: availability, validator: validate, logger: logger}
}

// ListSlots returns every slot a teacher has declared, disabled ones included.
func (s *ScheduleService) ListSlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	slots, err := s.slots.ListSlots(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, nil
}

// CreateSlot validates and stores a new slot.
func (s *ScheduleService) CreateSlot(ctx context.Context, req CreateSlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot request")
	}
	if _, _, err := timewindow.ParseClock(req.StartTime); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time")
	}
	if _, _, err := timewindow.ParseClock(req.EndTime); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time")
	}
	if req.Date != nil {
		if _, err := timewindow.ParseDate(*req.Date); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
		}
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	kind := models.RecurrenceWeekly
	if req.Date != nil {
		kind = models.RecurrenceOneTime
	}
	slot := &models.AvailabilitySlot{
		TeacherID: req.TeacherID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Kind:      kind,
		DayOfWeek: req.DayOfWeek,
		Date:      req.Date,
		Available: available,
	}
	if err := slot.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.slots.CreateSlot(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create slot")
	}
	s.invalidate(ctx, req.TeacherID)
	s.logger.Info("slot created", zap.String("slot_id", slot.ID), zap.String("teacher_id", slot.TeacherID))
	return slot, nil
}

// DisableSlot soft-disables a slot. Already-booked lessons are untouched;
// only future resolution changes.
func (s *ScheduleService) DisableSlot(ctx context.Context, teacherID, slotID string) error {
	if teacherID == "" || slotID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "teacher id and slot id are required")
	}
	if err := s.slots.DisableSlot(ctx, teacherID, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "slot not found")
	}
	s.invalidate(ctx, teacherID)
	return nil
}

// ListTimeOff returns the time-off periods intersecting a date range.
func (s *ScheduleService) ListTimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error) {
	periods, err := s.slots.TimeOff(ctx, teacherID, fromDate, toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time off")
	}
	return periods, nil
}

// CreateTimeOff validates and stores a new time-off period. Existing lessons
// inside the range stay scheduled; cancelling them is the teacher's call.
func (s *ScheduleService) CreateTimeOff(ctx context.Context, req CreateTimeOffRequest) (*models.TimeOffPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time-off request")
	}
	if _, err := timewindow.ParseDate(req.StartDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	if _, err := timewindow.ParseDate(req.EndDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if req.EndDate < req.StartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	period := &models.TimeOffPeriod{
		TeacherID: req.TeacherID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	}
	if err := s.slots.CreateTimeOff(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create time off")
	}
	s.invalidate(ctx, req.TeacherID)
	s.logger.Info("time off created", zap.String("teacher_id", req.TeacherID), zap.String("from", req.StartDate), zap.String("to", req.EndDate))
	return period, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, teacherID string) {
	if s.availability != nil {
		s.availability.Invalidate(ctx, teacherID)
	}
}
