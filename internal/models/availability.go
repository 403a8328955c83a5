package models

import (
	"fmt"
	"strings"
	"time"
)

// RecurrenceKind distinguishes weekly-recurring slots from date-specific
// ones. A slot is always exactly one of the two.
type RecurrenceKind string

const (
	RecurrenceWeekly  RecurrenceKind = "WEEKLY"
	RecurrenceOneTime RecurrenceKind = "ONE_TIME"
)

// AvailabilitySlot is a teacher-declared window of potential availability.
// Times are wall-clock values ("15:04") in the teacher's own timezone.
// A slot with Available=false is kept for audit; for one-time slots it acts
// as an override that blocks the matching portion of that day's weekly
// windows.
type AvailabilitySlot struct {
	ID        string         `db:"id" json:"id"`
	TeacherID string         `db:"teacher_id" json:"teacher_id"`
	StartTime string         `db:"start_time" json:"start_time"`
	EndTime   string         `db:"end_time" json:"end_time"`
	Kind      RecurrenceKind `db:"recurrence_kind" json:"recurrence_kind"`
	DayOfWeek *string        `db:"day_of_week" json:"day_of_week,omitempty"`
	Date      *string        `db:"specific_date" json:"date,omitempty"`
	Available bool           `db:"available" json:"available"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate enforces the recurrence variant: weekly slots carry a weekday and
// no date, one-time slots the reverse.
func (s *AvailabilitySlot) Validate() error {
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("slot start %q must precede end %q", s.StartTime, s.EndTime)
	}
	switch s.Kind {
	case RecurrenceWeekly:
		if s.DayOfWeek == nil || s.Date != nil {
			return fmt.Errorf("weekly slot requires day_of_week and no date")
		}
		if _, err := ParseWeekday(*s.DayOfWeek); err != nil {
			return err
		}
	case RecurrenceOneTime:
		if s.Date == nil || s.DayOfWeek != nil {
			return fmt.Errorf("one-time slot requires date and no day_of_week")
		}
	default:
		return fmt.Errorf("unknown recurrence kind %q", s.Kind)
	}
	return nil
}

// TimeOffPeriod blocks a teacher for a closed civil date range
// [StartDate, EndDate], regardless of declared slots.
type TimeOffPeriod struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	StartDate string    `db:"start_date" json:"start_date"`
	EndDate   string    `db:"end_date" json:"end_date"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ContainsDate reports whether the civil date ("2006-01-02") falls inside
// the period. ISO dates compare correctly as strings.
func (p TimeOffPeriod) ContainsDate(date string) bool {
	return p.StartDate <= date && date <= p.EndDate
}

// AvailableWindow is a resolved, booking-eligible sub-interval of a slot.
// Start/End are instants rendered in the viewer's timezone; the teacher-local
// civil fields are what a subsequent booking request must echo back.
type AvailableWindow struct {
	SlotID       string    `json:"slot_id"`
	TeacherID    string    `json:"teacher_id"`
	Date         string    `json:"date"`
	TeacherStart string    `json:"teacher_start"`
	TeacherEnd   string    `json:"teacher_end"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekday maps an upper-case weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("invalid day of week %q", name)
}

// WeekdayName renders a time.Weekday as the upper-case form stored in the
// database.
func WeekdayName(d time.Weekday) string {
	return strings.ToUpper(d.String())
}
