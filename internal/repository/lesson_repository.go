package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

const lessonColumns = `id, teacher_id, student_id, series_id, lesson_date, start_time, end_time, start_at, end_at, status, meeting_link, buffer_minutes, reschedule_notice_hours, cancel_notice_hours, created_at, updated_at`

// overlapQuery finds scheduled lessons whose buffer-padded interval
// intersects the (already padded) candidate window. Half-open semantics:
// touching endpoints do not conflict.
const overlapQuery = `SELECT ` + lessonColumns + ` FROM lessons
WHERE teacher_id = $1 AND status = 'SCHEDULED'
  AND (start_at - make_interval(mins => buffer_minutes)) < $3
  AND (end_at + make_interval(mins => buffer_minutes)) > $2
ORDER BY start_at ASC`

// LessonRepository provides persistence for lessons and recurring series.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons matching the filter with pagination.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.FromDate != "" {
		conditions = append(conditions, fmt.Sprintf("lesson_date >= $%d", len(args)+1))
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		conditions = append(conditions, fmt.Sprintf("lesson_date <= $%d", len(args)+1))
		args = append(args, filter.ToDate)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_at ASC LIMIT %d OFFSET %d", lessonColumns, base, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// ScheduledForTeacher returns scheduled lessons intersecting [from, to).
// Used by the availability resolver; the result is an advisory snapshot.
func (r *LessonRepository) ScheduledForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE teacher_id = $1 AND status = 'SCHEDULED' AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list scheduled lessons: %w", err)
	}
	return lessons, nil
}

// FindOverlapping runs the padded-overlap scan outside any transaction.
// Commit-time checks must go through CreateScheduled/Reschedule instead.
func (r *LessonRepository) FindOverlapping(ctx context.Context, teacherID string, padded timewindow.Window) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, overlapQuery, teacherID, padded.Start, padded.End); err != nil {
		return nil, fmt.Errorf("find overlapping lessons: %w", err)
	}
	return lessons, nil
}

// FindByID loads a lesson by id.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE id = $1`, lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

const insertLessonQuery = `INSERT INTO lessons (id, teacher_id, student_id, series_id, lesson_date, start_time, end_time, start_at, end_at, status, meeting_link, buffer_minutes, reschedule_notice_hours, cancel_notice_hours, created_at, updated_at) VALUES (:id, :teacher_id, :student_id, :series_id, :lesson_date, :start_time, :end_time, :start_at, :end_at, :status, :meeting_link, :buffer_minutes, :reschedule_notice_hours, :cancel_notice_hours, :created_at, :updated_at)`

// CreateScheduled commits a lesson with an atomic check-and-insert. A
// per-teacher advisory lock serialises concurrent bookings for the same
// teacher, so two requests racing for overlapping windows cannot both pass
// the conflict scan. padded is the candidate interval already widened by the
// candidate's own buffer.
func (r *LessonRepository) CreateScheduled(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	lesson.Status = models.LessonScheduled

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockTeacher(ctx, tx, lesson.TeacherID); err != nil {
		return err
	}
	if err = r.assertFree(ctx, tx, lesson.TeacherID, padded, ""); err != nil {
		return err
	}
	if _, err = tx.NamedExecContext(ctx, insertLessonQuery, lesson); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// Reschedule moves a scheduled lesson to a new interval under the same
// per-teacher lock discipline, excluding the lesson itself from the scan.
func (r *LessonRepository) Reschedule(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error {
	lesson.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockTeacher(ctx, tx, lesson.TeacherID); err != nil {
		return err
	}
	if err = r.assertFree(ctx, tx, lesson.TeacherID, padded, lesson.ID); err != nil {
		return err
	}
	const query = `UPDATE lessons SET lesson_date = :lesson_date, start_time = :start_time, end_time = :end_time, start_at = :start_at, end_at = :end_at, updated_at = :updated_at WHERE id = :id AND status = 'SCHEDULED'`
	var res sql.Result
	if res, err = tx.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("reschedule lesson: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = fmt.Errorf("lesson %s is not reschedulable", lesson.ID)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}
	return nil
}

// lockTeacher takes the per-teacher advisory lock for the current tx.
func (r *LessonRepository) lockTeacher(ctx context.Context, tx *sqlx.Tx, teacherID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherID); err != nil {
		return fmt.Errorf("acquire teacher lock: %w", err)
	}
	return nil
}

// assertFree re-runs the authoritative padded-overlap scan inside the
// transaction and surfaces the first colliding lesson.
func (r *LessonRepository) assertFree(ctx context.Context, tx *sqlx.Tx, teacherID string, padded timewindow.Window, excludeID string) error {
	query := overlapQuery
	args := []interface{}{teacherID, padded.Start, padded.End}
	if excludeID != "" {
		query = strings.Replace(query, "ORDER BY", "AND id <> $4 ORDER BY", 1)
		args = append(args, excludeID)
	}

	var existing []models.Lesson
	if err := tx.SelectContext(ctx, &existing, query, args...); err != nil {
		return fmt.Errorf("conflict scan: %w", err)
	}
	if len(existing) > 0 {
		return &models.LessonConflictError{
			WithLessonID: existing[0].ID,
			Message:      fmt.Sprintf("interval conflicts with lesson %s", existing[0].ID),
		}
	}
	return nil
}

// UpdateStatus transitions a lesson's lifecycle state.
func (r *LessonRepository) UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE lessons SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update lesson status: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateSeries stores the generating parameters of a recurring series.
func (r *LessonRepository) CreateSeries(ctx context.Context, series *models.RecurringSeries) error {
	if series.ID == "" {
		series.ID = uuid.NewString()
	}
	if series.CreatedAt.IsZero() {
		series.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO recurring_series (id, teacher_id, student_id, day_of_week, start_time, end_time, start_date, end_date, occurrences, created_at) VALUES (:id, :teacher_id, :student_id, :day_of_week, :start_time, :end_time, :start_date, :end_date, :occurrences, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}
