// Package handler exposes the HTTP API.  Handlers translate requests into
// service calls and service errors into the JSON error envelope.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/middleware"
	"github.com/ecodeli/ecodeli-backend/internal/service"
)

const requestTimeout = 5 * time.Second

// statusOf maps a service error kind to its HTTP status.
func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict, service.KindPreconditionFailed, service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {success:false, error, details}.  Internal failures
// are logged and their cause is not exposed.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	kind := service.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		msg = "erreur interne"
		kind = service.KindInternal
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"error":   msg,
		"details": string(kind),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"success": false,
		"error":   msg,
		"details": string(service.KindValidation),
	})
}

func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, service.Validation("invalid %s", name)
	}
	return id, nil
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
