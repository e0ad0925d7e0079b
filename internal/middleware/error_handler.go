package middleware

import (
	"errors"

	"harbor-backend/internal/pkg/apperr"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Typed application errors map to
// their transport status; everything else is a 500 with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		details := appErr.Details
		if details == nil {
			details = map[string]interface{}{}
		}
		return response.Error(c, appErr.Message, statusOf(appErr.Kind), details)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return response.Error(c, fiberErr.Message, fiberErr.Code, nil)
	}

	log.Error().Err(err).
		Str("trace_id", GetTraceID(c)).
		Str("path", c.Path()).
		Msg("Unhandled error")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// statusOf maps error kinds to HTTP statuses. Consistency repairs are
// surfaced as not found: the record no longer exists once repaired.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindAuthorization:
		return fiber.StatusForbidden
	case apperr.KindNotFound, apperr.KindConsistency:
		return fiber.StatusNotFound
	case apperr.KindLedger:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
