package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evently/internal/attendance"
	"evently/internal/qr"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Status: status, Message: message, Data: data})
}

func ok(c *gin.Context, message string, data any) {
	respond(c, http.StatusOK, message, data)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrValidation), errors.Is(err, attendance.ErrInvalidDay):
		return http.StatusBadRequest
	case errors.Is(err, qr.ErrInvalidToken), errors.Is(err, qr.ErrIssuerMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrEventNotFound),
		errors.Is(err, attendance.ErrParticipantNotFound),
		errors.Is(err, attendance.ErrScheduleNotFound),
		errors.Is(err, attendance.ErrNoParticipants):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrOutsideEvent),
		errors.Is(err, attendance.ErrAlreadyComplete),
		errors.Is(err, attendance.ErrScanInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an envelope. Unexpected errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		msg = "internal server error"
	}
	_ = c.Error(err)
	respond(c, status, msg, nil)
}

func badRequest(c *gin.Context, err error) {
	respond(c, http.StatusBadRequest, err.Error(), nil)
}
