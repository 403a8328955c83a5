package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

const slotColumns = `id, teacher_id, start_time, end_time, recurrence_kind, day_of_week, specific_date, available, created_at, updated_at`

// AvailabilityRepository provides persistence for availability slots and
// time-off periods.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// WeeklySlots returns all weekly-recurring slots for a teacher, enabled or
// not. The resolver decides what a disabled slot means.
func (r *AvailabilityRepository) WeeklySlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_slots WHERE teacher_id = $1 AND recurrence_kind = $2 ORDER BY day_of_week ASC, start_time ASC`, slotColumns)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, models.RecurrenceWeekly); err != nil {
		return nil, fmt.Errorf("list weekly slots: %w", err)
	}
	return validateSlots(slots)
}

// OneTimeSlots returns date-specific slots within the civil date range
// [fromDate, toDate].
func (r *AvailabilityRepository) OneTimeSlots(ctx context.Context, teacherID, fromDate, toDate string) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_slots WHERE teacher_id = $1 AND recurrence_kind = $2 AND specific_date BETWEEN $3 AND $4 ORDER BY specific_date ASC, start_time ASC`, slotColumns)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, models.RecurrenceOneTime, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list one-time slots: %w", err)
	}
	return validateSlots(slots)
}

// validateSlots rejects rows that violate the recurrence variant (both or
// neither of day_of_week/specific_date populated) instead of guessing.
func validateSlots(slots []models.AvailabilitySlot) ([]models.AvailabilitySlot, error) {
	for i := range slots {
		if err := slots[i].Validate(); err != nil {
			return nil, fmt.Errorf("corrupt availability slot %s: %w", slots[i].ID, err)
		}
	}
	return slots, nil
}

// TimeOff returns time-off periods intersecting the civil date range
// [fromDate, toDate].
func (r *AvailabilityRepository) TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error) {
	const query = `SELECT id, teacher_id, start_date, end_date, reason, created_at FROM time_off_periods WHERE teacher_id = $1 AND start_date <= $3 AND end_date >= $2 ORDER BY start_date ASC`
	var periods []models.TimeOffPeriod
	if err := r.db.SelectContext(ctx, &periods, query, teacherID, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	return periods, nil
}

// ListSlots returns every slot declared by a teacher.
func (r *AvailabilityRepository) ListSlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_slots WHERE teacher_id = $1 ORDER BY recurrence_kind ASC, day_of_week ASC, specific_date ASC, start_time ASC`, slotColumns)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return validateSlots(slots)
}

// CreateSlot stores a new availability slot.
func (r *AvailabilityRepository) CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO availability_slots (id, teacher_id, start_time, end_time, recurrence_kind, day_of_week, specific_date, available, created_at, updated_at) VALUES (:id, :teacher_id, :start_time, :end_time, :recurrence_kind, :day_of_week, :specific_date, :available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// DisableSlot soft-disables a slot; the row is kept for audit.
func (r *AvailabilityRepository) DisableSlot(ctx context.Context, teacherID, slotID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE availability_slots SET available = FALSE, updated_at = $3 WHERE id = $1 AND teacher_id = $2`, slotID, teacherID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("disable slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("slot %s not found for teacher %s", slotID, teacherID)
	}
	return nil
}

// CreateTimeOff stores a new time-off period.
func (r *AvailabilityRepository) CreateTimeOff(ctx context.Context, period *models.TimeOffPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO time_off_periods (id, teacher_id, start_date, end_date, reason, created_at) VALUES (:id, :teacher_id, :start_date, :end_date, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create time off: %w", err)
	}
	return nil
}
