package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// respondError maps the workflow error taxonomy onto HTTP statuses:
// missing records are 404, lost races and stale writes 409, missing
// fields 422, blocked transitions 400 with their stable reason code.
// Anything else is an unexpected fault and reads as 500.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case domain.IsValidation(err):
		var ve *domain.ValidationError
		errors.As(err, &ve)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": ve.Error(),
			"field": ve.Field,
		})

	case domain.IsStateError(err):
		var se *domain.StateError
		errors.As(err, &se)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  se.Message,
			"reason": se.Reason,
		})

	default:
		h.logger.Error("Unexpected error handling request",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
