package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/terracastio/terracast/internal/logging"
	"github.com/terracastio/terracast/internal/models"
	"github.com/terracastio/terracast/internal/services"
)

// StatusForCode maps service error codes onto HTTP status codes.
func StatusForCode(code string) int {
	switch code {
	case services.CodeInvalidRequest:
		return fiber.StatusBadRequest
	case services.CodeNoData, services.CodeModelNotFound:
		return fiber.StatusNotFound
	case services.CodeNoAlgorithm:
		return fiber.StatusServiceUnavailable
	case services.CodeAllAlgorithmsFailed:
		return fiber.StatusBadGateway
	case services.CodeTrainingFailed:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler returns a custom error handler middleware. Service errors
// returned by handlers are translated to their HTTP status and serialized
// with code, message and details intact.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) {
			status := StatusForCode(svcErr.Code)

			logger.Warn("Request failed",
				"path", c.Path(),
				"method", c.Method(),
				"status", status,
				"code", svcErr.Code,
				"error", svcErr.Message,
			)

			return c.Status(status).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    svcErr.Code,
					Message: svcErr.Message,
					Details: svcErr.Details,
				},
			})
		}

		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		logger.Error("Request error",
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "ERROR",
				Message: message,
			},
		})
	}
}
