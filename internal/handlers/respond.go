package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderdesk/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// storeContext bounds the store work of one request. The request's user
// context is the parent so cancellation propagates to the driver.
func storeContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), timeout)
}

// parseAndValidate decodes the JSON body into req and runs struct validation.
// On failure the 400 response has already been written and ok is false.
func parseAndValidate(c *fiber.Ctx, v *validator.Validate, req interface{}) (ok bool, err error) {
	if err := c.BodyParser(req); err != nil {
		log.Debug().Err(err).Str("path", c.Path()).Msg("invalid request body")
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := v.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
			})
		}
		errorMessages := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			errorMessages[e.Namespace()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, validationFailed(c, errorMessages)
	}
	return true, nil
}

func validationFailed(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  fields,
	})
}

// respondError maps service errors onto the HTTP error taxonomy.
func respondError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return validationFailed(c, vErr.Fields)
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": services.ErrInvalidCredentials.Error()})
	case errors.Is(err, services.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": services.ErrInvalidToken.Error()})
	case errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": services.ErrOrderNotFound.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": services.ErrForbidden.Error()})
	case errors.Is(err, services.ErrDuplicateUsername):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": services.ErrDuplicateUsername.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("store operation timed out")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Request timed out"})
	default:
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}
