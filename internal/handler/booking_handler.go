package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/service"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// BookSingle godoc
// @Summary Book a single lesson
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookSingleRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) BookSingle(c *gin.Context) {
	var req service.BookSingleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, warnings, err := h.bookings.BookSingle(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson, warnings)
}

// BookRecurring godoc
// @Summary Book a weekly recurring series
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookRecurringRequest true "Series payload"
// @Success 201 {object} response.Envelope
// @Router /bookings/recurring [post]
func (h *BookingHandler) BookRecurring(c *gin.Context) {
	var req service.BookRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.bookings.BookRecurring(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Best-effort semantics: a series where every occurrence was skipped is
	// still a successful request, just an empty one.
	response.Created(c, result, result.Warnings)
}
