package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

// CheckNotice enforces the minimum-advance-notice rule. Pure function of
// (policy, now, lessonStart); callers re-run it at commit time because time
// passes between slot selection and commit.
func CheckNotice(policy models.TeacherPolicy, now, lessonStart time.Time) error {
	if !lessonStart.After(now) {
		return appErrors.Clone(appErrors.ErrPastDate, "")
	}
	required := time.Duration(policy.MinimumNoticeHours) * time.Hour
	if lessonStart.Sub(now) < required {
		return appErrors.Clone(appErrors.ErrInsufficientNotice,
			fmt.Sprintf("booking requires at least %d hours notice", policy.MinimumNoticeHours))
	}
	return nil
}

// CheckActionNotice applies a lesson-level notice rule (cancel/reschedule)
// against the lesson's own policy snapshot.
func CheckActionNotice(noticeHours int, now, lessonStart time.Time) error {
	if !lessonStart.After(now) {
		return appErrors.Clone(appErrors.ErrPastDate, "lesson has already started")
	}
	required := time.Duration(noticeHours) * time.Hour
	if lessonStart.Sub(now) < required {
		return appErrors.Clone(appErrors.ErrInsufficientNotice,
			fmt.Sprintf("action requires at least %d hours notice", noticeHours))
	}
	return nil
}
