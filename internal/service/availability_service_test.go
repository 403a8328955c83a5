package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

type mockSlotReader struct {
	weekly  []models.AvailabilitySlot
	oneTime []models.AvailabilitySlot
	timeOff []models.TimeOffPeriod
}

func (m *mockSlotReader) WeeklySlots(ctx context.Context, teacherID string) ([]models.AvailabilitySlot, error) {
	return m.weekly, nil
}

func (m *mockSlotReader) OneTimeSlots(ctx context.Context, teacherID, fromDate, toDate string) ([]models.AvailabilitySlot, error) {
	return m.oneTime, nil
}

func (m *mockSlotReader) TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error) {
	return m.timeOff, nil
}

type mockLessonReader struct {
	lessons []models.Lesson
}

func (m *mockLessonReader) ScheduledForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Lesson, error) {
	return m.lessons, nil
}

type mockPolicyReader struct {
	policy *models.TeacherPolicy
}

func (m *mockPolicyReader) PolicyFor(ctx context.Context, teacherID string) (*models.TeacherPolicy, error) {
	if m.policy == nil {
		return nil, sql.ErrNoRows
	}
	return m.policy, nil
}

func strPtr(s string) *string { return &s }

func utcPolicy() *models.TeacherPolicy {
	return &models.TeacherPolicy{TeacherID: "t1", Timezone: "UTC", Active: true}
}

func weeklySlot(id, day, start, end string) models.AvailabilitySlot {
	return models.AvailabilitySlot{
		ID:        id,
		TeacherID: "t1",
		StartTime: start,
		EndTime:   end,
		Kind:      models.RecurrenceWeekly,
		DayOfWeek: strPtr(day),
		Available: true,
	}
}

func newTestAvailabilityService(slots *mockSlotReader, lessons *mockLessonReader, policies *mockPolicyReader) *AvailabilityService {
	return NewAvailabilityService(slots, lessons, policies, nil, time.Minute, 31, nil, nil)
}

// 2026-09-14 is a Monday.
const monday = "2026-09-14"

func TestResolveSubtractsBookedLesson(t *testing.T) {
	slots := &mockSlotReader{weekly: []models.AvailabilitySlot{weeklySlot("s1", "MONDAY", "09:00", "12:00")}}
	lessons := &mockLessonReader{lessons: []models.Lesson{{
		ID:        "l1",
		TeacherID: "t1",
		StartAt:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		EndAt:     time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC),
	}}}
	svc := newTestAvailabilityService(slots, lessons, &mockPolicyReader{policy: utcPolicy()})

	windows, err := svc.Resolve(context.Background(), "t1", monday, monday, "UTC")
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, "09:00", windows[0].TeacherStart)
	assert.Equal(t, "10:00", windows[0].TeacherEnd)
	assert.Equal(t, "11:00", windows[1].TeacherStart)
	assert.Equal(t, "12:00", windows[1].TeacherEnd)
	assert.Equal(t, "s1", windows[0].SlotID)
	assert.Equal(t, monday, windows[0].Date)
}

func TestResolveAppliesBufferPadding(t *testing.T) {
	slots := &mockSlotReader{weekly: []models.AvailabilitySlot{weeklySlot("s1", "MONDAY", "09:00", "12:00")}}
	lesson := models.Lesson{
		ID:        "l1",
		TeacherID: "t1",
		StartAt:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		EndAt:     time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC),
	}
	lesson.BufferMinutes = 30
	svc := newTestAvailabilityService(slots, &mockLessonReader{lessons: []models.Lesson{lesson}}, &mockPolicyReader{policy: utcPolicy()})

	windows, err := svc.Resolve(context.Background(), "t1", monday, monday, "UTC")
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, "09:30", windows[0].TeacherEnd)
	assert.Equal(t, "11:30", windows[1].TeacherStart)
}

func TestResolveSkipsTimeOffDates(t *testing.T) {
	slots := &mockSlotReader{
		weekly:  []models.AvailabilitySlot{weeklySlot("s1", "MONDAY", "09:00", "12:00")},
		timeOff: []models.TimeOffPeriod{{TeacherID: "t1", StartDate: "2026-09-10", EndDate: "2026-09-20"}},
	}
	svc := newTestAvailabilityService(slots, &mockLessonReader{}, &mockPolicyReader{policy: utcPolicy()})

	windows, err := svc.Resolve(context.Background(), "t1", monday, monday, "UTC")
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestResolveOneTimeUnavailableBlocksWeekly(t *testing.T) {
	override := models.AvailabilitySlot{
		ID:        "o1",
		TeacherID: "t1",
		StartTime: "10:00",
		EndTime:   "11:00",
		Kind:      models.RecurrenceOneTime,
		Date:      strPtr(monday),
		Available: false,
	}
	slots := &mockSlotReader{
		weekly:  []models.AvailabilitySlot{weeklySlot("s1", "MONDAY", "09:00", "12:00")},
		oneTime: []models.AvailabilitySlot{override},
	}
	svc := newTestAvailabilityService(slots, &mockLessonReader{}, &mockPolicyReader{policy: utcPolicy()})

	windows, err := svc.Resolve(context.Background(), "t1", monday, monday, "UTC")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "10:00", windows[0].TeacherEnd)
	assert.Equal(t, "11:00", windows[1].TeacherStart)
}

func TestResolveOneTimeAvailableAddsWindow(t *testing.T) {
	extra := models.AvailabilitySlot{
		ID:        "o1",
		TeacherID: "t1",
		StartTime: "14:00",
		EndTime:   "16:00",
		Kind:      models.RecurrenceOneTime,
		Date:      strPtr(monday),
		Available: true,
	}
	slots := &mockSlotReader{
		weekly:  []models.AvailabilitySlot{weeklySlot("s1", "MONDAY", "09:00", "10:00")},
		oneTime: []models.AvailabilitySlot{extra},
	}
	svc := newTestAvailabilityService(slots, &mockLessonReader{}, &mockPolicyReader{policy: utcPolicy()})

	windows, err := svc.Resolve(context.Background(), "t1", monday, monday, "UTC")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "s1", windows[0].SlotID)
	assert.Equal(t, "o1", windows[1].SlotID)
	assert.Equal(t, "14:00", windows[1].TeacherStart)
}

func TestResolveConvertsAcrossDST(t *testing.T) {
	// US spring-forward: 2026-03-08 is a Sunday, clocks jump at 02:00.
	policy := &models.TeacherPolicy{TeacherID: "t1", Timezone: "America/New_York", Active: true}
	slots := &mockSlotReader{weekly: []models.AvailabilitySlot{weeklySlot("s1", "SUNDAY", "01:00", "04:00")}}
	svc := newTestAvailabilityService(slots, &mockLessonReader{}, &mockPolicyReader{policy: policy})

	windows, err := svc.Resolve(context.Background(), "t1", "2026-03-08", "2026-03-08", "UTC")
	require.NoError(t, err)
	require.Len(t, windows, 1)

	assert.Equal(t, "01:00", windows[0].TeacherStart)
	assert.Equal(t, "04:00", windows[0].TeacherEnd)
	// 01:00 EST is 06:00 UTC, 04:00 EDT is 08:00 UTC: the skipped hour
	// shrinks the real duration to two hours.
	assert.True(t, windows[0].Start.Equal(time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)))
	assert.True(t, windows[0].End.Equal(time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2*time.Hour, windows[0].End.Sub(windows[0].Start))
}

func TestResolveUnknownTeacherReturnsEmpty(t *testing.T) {
	svc := newTestAvailabilityService(&mockSlotReader{}, &mockLessonReader{}, &mockPolicyReader{})

	windows, err := svc.Resolve(context.Background(), "nobody", monday, monday, "UTC")
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestResolveRejectsBadInput(t *testing.T) {
	svc := newTestAvailabilityService(&mockSlotReader{}, &mockLessonReader{}, &mockPolicyReader{policy: utcPolicy()})

	_, err := svc.Resolve(context.Background(), "t1", "not-a-date", monday, "UTC")
	assert.Error(t, err)

	_, err = svc.Resolve(context.Background(), "t1", monday, "2026-09-13", "UTC")
	assert.Error(t, err)

	_, err = svc.Resolve(context.Background(), "t1", monday, "2026-12-31", "UTC")
	assert.Error(t, err, "range beyond the cap must be rejected")

	_, err = svc.Resolve(context.Background(), "t1", monday, monday, "Mars/Olympus")
	assert.Error(t, err)
}
