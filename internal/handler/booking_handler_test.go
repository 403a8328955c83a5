package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/service"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
	"github.com/noah-isme/tutor-booking-api/pkg/timewindow"
)

type stubLessonStore struct {
	conflict bool
}

func (s *stubLessonStore) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	return nil, 0, nil
}

func (s *stubLessonStore) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	return nil, sql.ErrNoRows
}

func (s *stubLessonStore) CreateScheduled(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error {
	if s.conflict {
		return &models.LessonConflictError{WithLessonID: "other", Message: "interval conflicts with lesson other"}
	}
	lesson.ID = "lesson-1"
	lesson.Status = models.LessonScheduled
	return nil
}

func (s *stubLessonStore) Reschedule(ctx context.Context, lesson *models.Lesson, padded timewindow.Window) error {
	return nil
}

func (s *stubLessonStore) UpdateStatus(ctx context.Context, id string, status models.LessonStatus) error {
	return nil
}

func (s *stubLessonStore) CreateSeries(ctx context.Context, series *models.RecurringSeries) error {
	return nil
}

type stubSlotStore struct{}

func (s *stubSlotStore) TimeOff(ctx context.Context, teacherID, fromDate, toDate string) ([]models.TimeOffPeriod, error) {
	return nil, nil
}

type stubPolicyStore struct{}

func (s *stubPolicyStore) PolicyFor(ctx context.Context, teacherID string) (*models.TeacherPolicy, error) {
	return &models.TeacherPolicy{TeacherID: teacherID, Timezone: "UTC", Active: true}, nil
}

func newBookingRouter(store *stubLessonStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewBookingService(store, &stubSlotStore{}, &stubPolicyStore{}, nil, nil, nil, nil, nil, nil, 52)
	h := NewBookingHandler(svc)

	r := gin.New()
	r.POST("/bookings", h.BookSingle)
	return r
}

func futureMonday() string {
	d := time.Now().UTC().AddDate(0, 0, 14)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func TestBookSingleEndpointCreates(t *testing.T) {
	r := newBookingRouter(&stubLessonStore{})

	body := `{"teacher_id":"t1","student_id":"s1","date":"` + futureMonday() + `","start_time":"09:00","end_time":"10:00"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
	assert.NotNil(t, envelope.Data)
}

func TestBookSingleEndpointConflict(t *testing.T) {
	r := newBookingRouter(&stubLessonStore{conflict: true})

	body := `{"teacher_id":"t1","student_id":"s1","date":"` + futureMonday() + `","start_time":"09:00","end_time":"10:00"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SLOT_CONFLICT", envelope.Error.Code)
}

func TestBookSingleEndpointRejectsBadPayload(t *testing.T) {
	r := newBookingRouter(&stubLessonStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(`{"teacher_id":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
