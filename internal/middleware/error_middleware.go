package middleware

import (
	"errors"
	"net/http"

	"carelink/internal/transport/httpdto"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler maps service errors attached to the context onto HTTP
// statuses. Handlers call c.Error(err) and return; the mapping lives here
// only.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.ErrorfCtx(c.Request.Context(), "request error: %s", err.Error())
		}

		status, code := statusFor(err)
		body := httpdto.NewErrorResponse(err.Error(), code)
		if requestID, ok := c.Request.Context().Value(logger.RequestIdKey).(string); ok {
			body = body.WithRequestID(requestID)
		}
		c.JSON(status, body)
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, care_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, care_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, care_errors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, care_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, care_errors.ErrConflict), errors.Is(err, care_errors.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, care_errors.ErrInvalidState):
		return http.StatusUnprocessableEntity, "INVALID_STATE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
