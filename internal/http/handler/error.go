package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/repository"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// errorPayload is the body of every non-2xx response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError sends status with a machine code and a client-safe message.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	id, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return c.Status(status).JSON(errorPayload{
		RequestID: id,
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// writeServiceError maps a service error onto a status code. Validation
// messages are ours and safe to return; anything else is reported generically.
func writeServiceError(c *fiber.Ctx, err error, resource string) error {
	switch {
	case errors.Is(err, service.ErrFileTooLarge), errors.Is(err, service.ErrArchiveTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.Is(err, service.ErrTagExists):
		return writeError(c, fiber.StatusConflict, "TAG_EXISTS", err.Error())
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", resource+" not found")
	case errors.Is(err, service.ErrStorage):
		return writeError(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "storage backend failure")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

type statusText struct{ code, message string }

// routingErrors covers the errors fiber raises itself (unknown routes, body limit).
var routingErrors = map[int]statusText{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
}

// ErrorHandler renders errors that escape handlers as errorPayload. Anything
// that is not a *fiber.Error becomes a 500.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		if t, ok := routingErrors[status]; ok {
			return writeError(c, status, t.code, t.message)
		}
		return writeError(c, status, "INTERNAL_ERROR", "internal server error")
	}
}
