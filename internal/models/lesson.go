package models

import "time"

// LessonStatus is the lifecycle state of a committed reservation.
type LessonStatus string

const (
	LessonScheduled LessonStatus = "SCHEDULED"
	LessonCompleted LessonStatus = "COMPLETED"
	LessonCancelled LessonStatus = "CANCELLED"
)

// MeetingMetadata is the policy snapshot copied onto a lesson at booking
// time. Later policy edits never touch already-booked lessons.
type MeetingMetadata struct {
	MeetingLink           string `db:"meeting_link" json:"meeting_link"`
	BufferMinutes         int    `db:"buffer_minutes" json:"buffer_minutes"`
	RescheduleNoticeHours int    `db:"reschedule_notice_hours" json:"reschedule_notice_hours"`
	CancelNoticeHours     int    `db:"cancel_notice_hours" json:"cancel_notice_hours"`
}

// Lesson is a committed reservation. Date/StartTime/EndTime are the
// teacher-local civil values the booking was made with; StartAt/EndAt are the
// derived UTC instants used for all overlap arithmetic.
type Lesson struct {
	ID        string       `db:"id" json:"id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	StudentID string       `db:"student_id" json:"student_id"`
	SeriesID  *string      `db:"series_id" json:"series_id,omitempty"`
	Date      string       `db:"lesson_date" json:"date"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	StartAt   time.Time    `db:"start_at" json:"start_at"`
	EndAt     time.Time    `db:"end_at" json:"end_at"`
	Status    LessonStatus `db:"status" json:"status"`
	MeetingMetadata
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonFilter narrows lesson listings.
type LessonFilter struct {
	TeacherID string
	StudentID string
	FromDate  string
	ToDate    string
	Status    LessonStatus
	Page      int
	PageSize  int
}

// RecurringSeries is the generating template for a weekly lesson series.
// It holds no schedule state of its own; every generated lesson is
// independently cancellable.
type RecurringSeries struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	StartDate   string    `db:"start_date" json:"start_date"`
	EndDate     *string   `db:"end_date" json:"end_date,omitempty"`
	Occurrences *int      `db:"occurrences" json:"occurrences,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SeriesOccurrence reports one successfully created occurrence.
type SeriesOccurrence struct {
	Date     string `json:"date"`
	LessonID string `json:"lesson_id"`
}

// SeriesSkip reports one occurrence rejected by the booking pipeline.
type SeriesSkip struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// SeriesResult summarises a best-effort recurring booking. SeriesID is nil
// when every occurrence was skipped and nothing was persisted.
type SeriesResult struct {
	SeriesID *string            `json:"series_id,omitempty"`
	Created  []SeriesOccurrence `json:"created"`
	Skipped  []SeriesSkip       `json:"skipped"`
	Warnings []string           `json:"warnings,omitempty"`
}

// LessonConflictError is returned when a candidate interval collides with an
// existing scheduled lesson.
type LessonConflictError struct {
	WithLessonID string `json:"with_lesson_id"`
	Message      string `json:"message"`
}

// Error implements the error interface.
func (e *LessonConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
