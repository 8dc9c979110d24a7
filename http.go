package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/safeedu/go-auth/middleware/jwtware"
)

// ErrorResponse is the JSON body returned for failed requests
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Category string         `json:"category,omitempty"`
	TextCode string         `json:"text_code,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewErrorHandler returns a fiber error handler that renders rich errors
// as JSON with the status code they carry
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
			err = withCause(ErrTokenMalformed, err, nil)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error: ErrorBody{Message: fiberErr.Message},
			})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := statusForError(richErr)

		logger.Info(
			"HTTP error handler",
			"error", richErr.Message,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		body := ErrorBody{
			Category: string(richErr.Category),
			TextCode: richErr.TextCode,
			Message:  richErr.Message,
		}

		// internal failures keep their details in the logs
		if status < http.StatusInternalServerError {
			body.Metadata = richErr.Metadata
		}

		return c.Status(status).JSON(ErrorResponse{Error: body})
	}
}

func statusForError(richErr *errors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
