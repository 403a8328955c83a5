package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/service"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

// ScheduleHandler exposes slot and time-off management endpoints.
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// ListSlots godoc
// @Summary List a teacher's declared slots
// @Tags Schedule
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{teacherId}/slots [get]
func (h *ScheduleHandler) ListSlots(c *gin.Context) {
	slots, err := h.schedule.ListSlots(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// CreateSlot godoc
// @Summary Declare an availability slot
// @Tags Schedule
// @Accept json
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/{teacherId}/slots [post]
func (h *ScheduleHandler) CreateSlot(c *gin.Context) {
	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TeacherID = c.Param("teacherId")
	slot, err := h.schedule.CreateSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot, nil)
}

// DisableSlot godoc
// @Summary Disable an availability slot
// @Tags Schedule
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param slotId path string true "Slot ID"
// @Success 204
// @Router /teachers/{teacherId}/slots/{slotId} [delete]
func (h *ScheduleHandler) DisableSlot(c *gin.Context) {
	if err := h.schedule.DisableSlot(c.Request.Context(), c.Param("teacherId"), c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTimeOff godoc
// @Summary List a teacher's time-off periods
// @Tags Schedule
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{teacherId}/time-off [get]
func (h *ScheduleHandler) ListTimeOff(c *gin.Context) {
	from := c.DefaultQuery("from", "0000-01-01")
	to := c.DefaultQuery("to", "9999-12-31")
	periods, err := h.schedule.ListTimeOff(c.Request.Context(), c.Param("teacherId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// CreateTimeOff godoc
// @Summary Declare a time-off period
// @Tags Schedule
// @Accept json
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param payload body service.CreateTimeOffRequest true "Time-off payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/{teacherId}/time-off [post]
func (h *ScheduleHandler) CreateTimeOff(c *gin.Context) {
	var req service.CreateTimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TeacherID = c.Param("teacherId")
	period, err := h.schedule.CreateTimeOff(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period, nil)
}
