package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

func newLessonRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var lessonColumnList = []string{
	"id", "teacher_id", "student_id", "series_id", "lesson_date", "start_time", "end_time",
	"start_at", "end_at", "status", "meeting_link", "buffer_minutes",
	"reschedule_notice_hours", "cancel_notice_hours", "created_at", "updated_at",
}

func lessonRow(id string, start, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(lessonColumnList).
		AddRow(id, "t1", "s1", nil, start.Format("2006-01-02"), start.Format("15:04"), end.Format("15:04"),
			start, end, "SCHEDULED", "", 15, 24, 12, time.Now(), time.Now())
}

func TestFindOverlappingUsesPaddedScan(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	padded := timewindow.Window{Start: start.Add(-15 * time.Minute), End: end.Add(15 * time.Minute)}

	mock.ExpectQuery(`AND \(start_at - make_interval\(mins => buffer_minutes\)\) < \$3`).
		WithArgs("t1", padded.Start, padded.End).
		WillReturnRows(lessonRow("l1", start, end))

	lessons, err := repo.FindOverlapping(context.Background(), "t1", padded)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "l1", lessons[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateScheduledLocksChecksInserts(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	padded := timewindow.Window{Start: start.Add(-15 * time.Minute), End: end.Add(15 * time.Minute)}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`AND \(start_at - make_interval\(mins => buffer_minutes\)\) < \$3`).
		WithArgs("t1", padded.Start, padded.End).
		WillReturnRows(sqlmock.NewRows(lessonColumnList))
	mock.ExpectExec(`INSERT INTO lessons`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	lesson := &models.Lesson{
		TeacherID: "t1", StudentID: "s1",
		Date: "2026-09-14", StartTime: "09:00", EndTime: "10:00",
		StartAt: start, EndAt: end,
	}
	require.NoError(t, repo.CreateScheduled(context.Background(), lesson, padded))
	assert.NotEmpty(t, lesson.ID)
	assert.Equal(t, models.LessonScheduled, lesson.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateScheduledRollsBackOnConflict(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	padded := timewindow.Window{Start: start, End: end}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`AND \(start_at - make_interval\(mins => buffer_minutes\)\) < \$3`).
		WithArgs("t1", padded.Start, padded.End).
		WillReturnRows(lessonRow("existing", start, end))
	mock.ExpectRollback()

	lesson := &models.Lesson{
		TeacherID: "t1", StudentID: "s1",
		Date: "2026-09-14", StartTime: "09:00", EndTime: "10:00",
		StartAt: start, EndAt: end,
	}
	err := repo.CreateScheduled(context.Background(), lesson, padded)
	require.Error(t, err)

	var conflict *models.LessonConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "existing", conflict.WithLessonID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleExcludesOwnLesson(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 9, 15, 11, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	padded := timewindow.Window{Start: start, End: end}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`AND id <> \$4 ORDER BY`).
		WithArgs("t1", padded.Start, padded.End, "l1").
		WillReturnRows(sqlmock.NewRows(lessonColumnList))
	mock.ExpectExec(`UPDATE lessons SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	lesson := &models.Lesson{
		ID: "l1", TeacherID: "t1", StudentID: "s1",
		Date: "2026-09-15", StartTime: "11:00", EndTime: "12:00",
		StartAt: start, EndAt: end,
	}
	require.NoError(t, repo.Reschedule(context.Background(), lesson, padded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingLesson(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`UPDATE lessons SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ghost", models.LessonCancelled)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledForTeacherRange(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`status = 'SCHEDULED' AND start_at < \$3 AND end_at > \$2`).
		WithArgs("t1", from, to).
		WillReturnRows(lessonRow("l1", start, start.Add(time.Hour)))

	lessons, err := repo.ScheduledForTeacher(context.Background(), "t1", from, to)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
