package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	"github.com/noah-isme/tutor-booking-api/pkg/jobs"
)

// CalendarSync mirrors committed lessons into an external calendar.
// Best-effort from the engine's perspective.
type CalendarSync interface {
	OnLessonCreated(ctx context.Context, lesson models.Lesson) (externalEventID string, err error)
}

// NotificationSink receives booking lifecycle events. Best-effort.
type NotificationSink interface {
	OnLessonCreated(ctx context.Context, lesson models.Lesson) error
	OnLessonCancelled(ctx context.Context, lesson models.Lesson) error
	OnSeriesCreated(ctx context.Context, result models.SeriesResult) error
}

const (
	jobCalendarLessonCreated = "calendar.lesson_created"
	jobNotifyLessonCreated   = "notify.lesson_created"
	jobNotifyLessonCancelled = "notify.lesson_cancelled"
)

// SyncService dispatches post-commit collaborator calls. Each call gets one
// synchronous, deadline-bounded attempt whose failure is surfaced to the
// caller as a warning; the job queue then retries in the background. A
// committed lesson is never rolled back here, whatever happens.
type SyncService struct {
	calendar CalendarSync
	notify   NotificationSink
	queue    *jobs.Queue
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewSyncService constructs the dispatcher. calendar and notify may be nil
// when the corresponding collaborator is not wired in this deployment.
func NewSyncService(calendar CalendarSync, notify NotificationSink, metrics *MetricsService, logger *zap.Logger, cfg config.SyncConfig) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SyncService{
		calendar: calendar,
		notify:   notify,
		timeout:  cfg.Timeout,
		logger:   logger,
		metrics:  metrics,
	}
	if s.timeout <= 0 {
		s.timeout = 3 * time.Second
	}
	s.queue = jobs.NewQueue("collaborator-sync", s.handleRetry, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the background retry workers.
func (s *SyncService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the retry workers.
func (s *SyncService) Stop() {
	s.queue.Stop()
}

// LessonCreated fires calendar sync and notification for a committed
// lesson and returns human-readable warnings for any collaborator that
// failed its first attempt.
func (s *SyncService) LessonCreated(ctx context.Context, lesson models.Lesson) []string {
	var warnings []string

	if s.calendar != nil {
		if _, err := s.withDeadline(ctx, func(c context.Context) error {
			_, err := s.calendar.OnLessonCreated(c, lesson)
			return err
		}); err != nil {
			warnings = append(warnings, fmt.Sprintf("calendar sync failed for lesson %s", lesson.ID))
			s.reportFailure(jobCalendarLessonCreated, lesson.ID, lesson, err)
		}
	}

	if s.notify != nil {
		if _, err := s.withDeadline(ctx, func(c context.Context) error {
			return s.notify.OnLessonCreated(c, lesson)
		}); err != nil {
			warnings = append(warnings, fmt.Sprintf("notification failed for lesson %s", lesson.ID))
			s.reportFailure(jobNotifyLessonCreated, lesson.ID, lesson, err)
		}
	}

	return warnings
}

// LessonCancelled notifies the sink about a cancellation.
func (s *SyncService) LessonCancelled(ctx context.Context, lesson models.Lesson) []string {
	if s.notify == nil {
		return nil
	}
	if _, err := s.withDeadline(ctx, func(c context.Context) error {
		return s.notify.OnLessonCancelled(c, lesson)
	}); err != nil {
		s.reportFailure(jobNotifyLessonCancelled, lesson.ID, lesson, err)
		return []string{fmt.Sprintf("cancellation notification failed for lesson %s", lesson.ID)}
	}
	return nil
}

// SeriesCreated notifies the sink about a completed series booking.
// Series summaries are not retried; the per-lesson events already are.
func (s *SyncService) SeriesCreated(ctx context.Context, result models.SeriesResult) []string {
	if s.notify == nil {
		return nil
	}
	if _, err := s.withDeadline(ctx, func(c context.Context) error {
		return s.notify.OnSeriesCreated(c, result)
	}); err != nil {
		s.metrics.RecordSyncFailure()
		s.logger.Warn("series notification failed", zap.Error(err))
		return []string{"series notification failed"}
	}
	return nil
}

func (s *SyncService) withDeadline(ctx context.Context, fn func(context.Context) error) (struct{}, error) {
	// Detach from the request context so a client disconnect after commit
	// does not abort the dispatch; keep the deadline.
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return struct{}{}, fn(c)
}

func (s *SyncService) reportFailure(jobType, lessonID string, lesson models.Lesson, err error) {
	s.metrics.RecordSyncFailure()
	s.logger.Warn("collaborator dispatch failed, scheduling retry",
		zap.String("job", jobType), zap.String("lesson_id", lessonID), zap.Error(err))
	if qErr := s.queue.Enqueue(jobs.Job{ID: lessonID, Type: jobType, Payload: lesson}); qErr != nil {
		s.logger.Error("failed to enqueue sync retry", zap.String("lesson_id", lessonID), zap.Error(qErr))
	}
}

func (s *SyncService) handleRetry(ctx context.Context, job jobs.Job) error {
	lesson, ok := job.Payload.(models.Lesson)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.Type)
	}
	c, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch job.Type {
	case jobCalendarLessonCreated:
		if s.calendar == nil {
			return nil
		}
		_, err := s.calendar.OnLessonCreated(c, lesson)
		return err
	case jobNotifyLessonCreated:
		if s.notify == nil {
			return nil
		}
		return s.notify.OnLessonCreated(c, lesson)
	case jobNotifyLessonCancelled:
		if s.notify == nil {
			return nil
		}
		return s.notify.OnLessonCancelled(c, lesson)
	default:
		return fmt.Errorf("unknown sync job type %s", job.Type)
	}
}
