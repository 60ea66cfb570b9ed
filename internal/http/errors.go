package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/memory"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, memlog.ErrInvalidUserKey), errors.Is(err, memory.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, embeddings.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as ErrorResponse. Details of internal
// errors are logged, not returned.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFor(err)
		msg := http.StatusText(status)
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		case status < http.StatusInternalServerError:
			msg = err.Error()
		default:
			logger.Error("request failed",
				zap.String("route", c.Path()),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorResponse{Error: msg})
	}
}
