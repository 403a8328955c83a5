package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type overlapFinder interface {
	FindOverlapping(ctx context.Context, teacherID string, padded timewindow.Window) ([]models.Lesson, error)
}

// ConflictChecker verifies a candidate interval is free of scheduled
// lessons, buffer padding included. This path is advisory: the same scan
// re-runs inside the booking transaction, which is the authority.
type ConflictChecker struct {
	lessons overlapFinder
}

// NewConflictChecker constructs a ConflictChecker.
func NewConflictChecker(lessons overlapFinder) *ConflictChecker {
	return &ConflictChecker{lessons: lessons}
}

// IsFree pads the candidate by bufferMinutes on both sides and tests it
// against existing scheduled lessons (each padded by its own snapshot
// buffer). Returns a SLOT_CONFLICT error naming the colliding lesson.
func (c *ConflictChecker) IsFree(ctx context.Context, teacherID string, candidate timewindow.Window, bufferMinutes int) error {
	if !candidate.IsValid() {
		return appErrors.Clone(appErrors.ErrValidation, "candidate interval is empty")
	}
	buffer := time.Duration(bufferMinutes) * time.Minute
	padded := candidate.Pad(buffer, buffer)

	existing, err := c.lessons.FindOverlapping(ctx, teacherID, padded)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(existing) > 0 {
		return conflictError(existing[0].ID)
	}
	return nil
}

func conflictError(lessonID string) error {
	domainErr := &models.LessonConflictError{
		WithLessonID: lessonID,
		Message:      fmt.Sprintf("interval conflicts with lesson %s", lessonID),
	}
	return appErrors.Wrap(domainErr, appErrors.ErrSlotConflict.Code, appErrors.ErrSlotConflict.Status, domainErr.Message)
}
