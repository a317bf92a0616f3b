package api

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// errorBody is the JSON error envelope. Fields is populated only for
// validation errors; those are the one category whose details are safe
// to hand back to the caller.
type errorBody struct {
	Success bool                      `json:"success"`
	Error   string                    `json:"error"`
	Code    string                    `json:"code,omitempty"`
	Fields  goerrors.ValidationErrors `json:"fields,omitempty"`
}

// statusFor translates an error category to an HTTP status. Internal
// details never reach the response body.
func statusFor(rich *goerrors.Error) int {
	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryOperation:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders the flat error envelope. Anything that is not
// a categorized application error is reported as a generic internal
// failure.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		s.logger.Error("unhandled error", "error", err, "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
			Success: false,
			Error:   "internal error, please try again later",
		})
	}

	status := statusFor(rich)
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "path", c.Path())
		return c.Status(status).JSON(errorBody{
			Success: false,
			Error:   "internal error, please try again later",
		})
	}

	body := errorBody{
		Success: false,
		Error:   rich.Message,
		Code:    rich.TextCode,
	}
	if rich.Category == goerrors.CategoryValidation {
		body.Fields = rich.ValidationErrors
	}

	return c.Status(status).JSON(body)
}
