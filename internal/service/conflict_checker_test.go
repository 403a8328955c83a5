package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type mockOverlapFinder struct {
	lessons []models.Lesson
	err     error
	got     timewindow.Window
}

func (m *mockOverlapFinder) FindOverlapping(ctx context.Context, teacherID string, padded timewindow.Window) ([]models.Lesson, error) {
	m.got = padded
	return m.lessons, m.err
}

func TestIsFreePadsCandidate(t *testing.T) {
	finder := &mockOverlapFinder{}
	checker := NewConflictChecker(finder)

	candidate := timewindow.Window{
		Start: time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, checker.IsFree(context.Background(), "t1", candidate, 15))

	assert.True(t, finder.got.Start.Equal(candidate.Start.Add(-15*time.Minute)))
	assert.True(t, finder.got.End.Equal(candidate.End.Add(15*time.Minute)))
}

func TestIsFreeReportsConflictingLesson(t *testing.T) {
	finder := &mockOverlapFinder{lessons: []models.Lesson{{ID: "busy-1"}}}
	checker := NewConflictChecker(finder)

	candidate := timewindow.Window{
		Start: time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
	}
	err := checker.IsFree(context.Background(), "t1", candidate, 0)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSlotConflict))

	var conflict *models.LessonConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "busy-1", conflict.WithLessonID)
}

func TestIsFreeRejectsEmptyCandidate(t *testing.T) {
	checker := NewConflictChecker(&mockOverlapFinder{})

	at := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	err := checker.IsFree(context.Background(), "t1", timewindow.Window{Start: at, End: at}, 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
