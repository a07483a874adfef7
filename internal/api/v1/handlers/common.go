package handlers

import (
	"errors"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/websocket"
	"taskhub/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// EventHub receives task change events for connected WebSocket
// clients. Set during startup; a nil hub drops events silently.
var EventHub *websocket.Hub

// fail converts a service error into the transport response for its
// taxonomy kind. Unrecognized errors are treated as internal.
func fail(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Unexpected error", err)
	}

	status := apperr.HTTPStatus(appErr.Kind)
	if status >= 500 {
		logger.ErrorLogger.Error(appErr.Message, zap.Error(appErr))
	}

	body := fiber.Map{
		"message": appErr.Message,
		"code":    appErr.Code,
		"success": false,
		"status":  status,
	}
	if len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	return c.Status(status).JSON(body)
}

// validationFields flattens struct-tag validation failures into the
// field map carried by every other validation error.
func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = "failed on the '" + fe.Tag() + "' rule"
		}
	} else if err != nil {
		fields["body"] = err.Error()
	}
	return fields
}

// badRequest answers an unparseable request parameter as a validation
// failure on the named field.
func badRequest(c *fiber.Ctx, field, message string) error {
	return fail(c, apperr.Validation(message, map[string]string{field: message}))
}
