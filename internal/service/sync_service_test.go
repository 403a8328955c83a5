package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
)

type mockCalendar struct {
	calls    int64
	failures int64
}

func (m *mockCalendar) OnLessonCreated(ctx context.Context, lesson models.Lesson) (string, error) {
	n := atomic.AddInt64(&m.calls, 1)
	if n <= atomic.LoadInt64(&m.failures) {
		return "", errors.New("calendar unavailable")
	}
	return "evt-" + lesson.ID, nil
}

type mockSink struct {
	created   int64
	cancelled int64
	fail      bool
}

func (m *mockSink) OnLessonCreated(ctx context.Context, lesson models.Lesson) error {
	atomic.AddInt64(&m.created, 1)
	if m.fail {
		return errors.New("notify down")
	}
	return nil
}

func (m *mockSink) OnLessonCancelled(ctx context.Context, lesson models.Lesson) error {
	atomic.AddInt64(&m.cancelled, 1)
	return nil
}

func (m *mockSink) OnSeriesCreated(ctx context.Context, result models.SeriesResult) error {
	return nil
}

func syncConfig() config.SyncConfig {
	return config.SyncConfig{Timeout: time.Second, Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond}
}

func TestLessonCreatedNoWarningsOnSuccess(t *testing.T) {
	svc := NewSyncService(&mockCalendar{}, &mockSink{}, nil, nil, syncConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	warnings := svc.LessonCreated(context.Background(), models.Lesson{ID: "l1"})
	assert.Empty(t, warnings)
}

func TestLessonCreatedWarnsAndRetries(t *testing.T) {
	calendar := &mockCalendar{failures: 1}
	svc := NewSyncService(calendar, &mockSink{}, nil, nil, syncConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	warnings := svc.LessonCreated(context.Background(), models.Lesson{ID: "l1"})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "calendar sync failed")

	// The background retry succeeds on the second attempt.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&calendar.calls) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestLessonCreatedNilCollaborators(t *testing.T) {
	svc := NewSyncService(nil, nil, nil, nil, syncConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	assert.Empty(t, svc.LessonCreated(context.Background(), models.Lesson{ID: "l1"}))
	assert.Empty(t, svc.LessonCancelled(context.Background(), models.Lesson{ID: "l1"}))
	assert.Empty(t, svc.SeriesCreated(context.Background(), models.SeriesResult{}))
}

func TestLessonCancelledNotifiesSink(t *testing.T) {
	sink := &mockSink{}
	svc := NewSyncService(nil, sink, nil, nil, syncConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	warnings := svc.LessonCancelled(context.Background(), models.Lesson{ID: "l1"})
	assert.Empty(t, warnings)
	assert.Equal(t, int64(1), atomic.LoadInt64(&sink.cancelled))
}

func TestLessonCreatedNotifyFailureIsWarning(t *testing.T) {
	sink := &mockSink{fail: true}
	svc := NewSyncService(&mockCalendar{}, sink, nil, nil, syncConfig())
	svc.Start(context.Background())
	defer svc.Stop()

	warnings := svc.LessonCreated(context.Background(), models.Lesson{ID: "l1"})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "notification failed")
}
