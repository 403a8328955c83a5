package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

func TestCheckNotice(t *testing.T) {
	policy := models.TeacherPolicy{MinimumNoticeHours: 24}
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		wantErr *appErrors.Error
	}{
		{"well beyond notice", now.Add(72 * time.Hour), nil},
		{"exactly at the boundary", now.Add(24 * time.Hour), nil},
		{"one minute short", now.Add(24*time.Hour - time.Minute), appErrors.ErrInsufficientNotice},
		{"in the past", now.Add(-time.Hour), appErrors.ErrPastDate},
		{"exactly now", now, appErrors.ErrPastDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNotice(policy, now, tt.start)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, appErrors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestCheckNoticeZeroHoursOnlyRejectsPast(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, CheckNotice(models.TeacherPolicy{}, now, now.Add(time.Minute)))
	assert.Error(t, CheckNotice(models.TeacherPolicy{}, now, now))
}

func TestCheckActionNotice(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, CheckActionNotice(12, now, now.Add(12*time.Hour)))
	assert.True(t, appErrors.Is(CheckActionNotice(12, now, now.Add(11*time.Hour)), appErrors.ErrInsufficientNotice))
	assert.True(t, appErrors.Is(CheckActionNotice(12, now, now.Add(-time.Hour)), appErrors.ErrPastDate))
}
