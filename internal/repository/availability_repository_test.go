package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var slotColumnList = []string{
	"id", "teacher_id", "start_time", "end_time", "recurrence_kind",
	"day_of_week", "specific_date", "available", "created_at", "updated_at",
}

func TestWeeklySlots(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows(slotColumnList).
		AddRow("slot-1", "t1", "09:00", "12:00", "WEEKLY", "MONDAY", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(`FROM availability_slots WHERE teacher_id = \$1 AND recurrence_kind = \$2`).
		WithArgs("t1", models.RecurrenceWeekly).
		WillReturnRows(rows)

	slots, err := repo.WeeklySlots(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "MONDAY", *slots[0].DayOfWeek)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklySlotsRejectsCorruptVariant(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	// A weekly slot carrying a specific date violates the variant.
	rows := sqlmock.NewRows(slotColumnList).
		AddRow("slot-1", "t1", "09:00", "12:00", "WEEKLY", "MONDAY", "2026-09-14", true, time.Now(), time.Now())
	mock.ExpectQuery(`FROM availability_slots`).
		WithArgs("t1", models.RecurrenceWeekly).
		WillReturnRows(rows)

	_, err := repo.WeeklySlots(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt availability slot")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeOffIntersectsRange(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "start_date", "end_date", "reason", "created_at"}).
		AddRow("off-1", "t1", "2026-09-10", "2026-09-20", nil, time.Now())
	mock.ExpectQuery(`FROM time_off_periods WHERE teacher_id = \$1 AND start_date <= \$3 AND end_date >= \$2`).
		WithArgs("t1", "2026-09-14", "2026-09-14").
		WillReturnRows(rows)

	periods, err := repo.TimeOff(context.Background(), "t1", "2026-09-14", "2026-09-14")
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.True(t, periods[0].ContainsDate("2026-09-14"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSlotAssignsID(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(`INSERT INTO availability_slots`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	day := "MONDAY"
	slot := &models.AvailabilitySlot{
		TeacherID: "t1", StartTime: "09:00", EndTime: "12:00",
		Kind: models.RecurrenceWeekly, DayOfWeek: &day, Available: true,
	}
	require.NoError(t, repo.CreateSlot(context.Background(), slot))
	assert.NotEmpty(t, slot.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
