package transport

import (
	"errors"
	"net/http"

	"github.com/Habeeb00/msghelp/internal/handlers"
	"github.com/Habeeb00/msghelp/internal/llm"
	"github.com/Habeeb00/msghelp/internal/models"
	"github.com/Habeeb00/msghelp/internal/prompts"
)

// errorResponse maps a handler failure onto an HTTP status and the shared error body.
// Upstream detail stays in the logs.
func errorResponse(err error) (int, *models.ErrorResponse) {
	var ve *handlers.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, &models.ErrorResponse{
			ErrorCode:    models.ErrorValidation,
			ErrorMessage: ve.Error(),
		}
	case errors.Is(err, handlers.ErrSessionNotFound):
		return http.StatusNotFound, &models.ErrorResponse{
			ErrorCode:    models.ErrorSessionMissing,
			ErrorMessage: "Session not found",
		}
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, &models.ErrorResponse{
			ErrorCode:    models.ErrorRateLimited,
			ErrorMessage: "Too many requests",
			UserMessage:  prompts.RateLimitMessage,
		}
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, &models.ErrorResponse{
			ErrorCode:    models.ErrorLLMTimeout,
			ErrorMessage: "The model took too long to respond",
			UserMessage:  prompts.FallbackMessage,
		}
	default:
		return http.StatusInternalServerError, &models.ErrorResponse{
			ErrorCode:    models.ErrorLLMFailed,
			ErrorMessage: "Failed to generate a suggestion",
			UserMessage:  prompts.FallbackMessage,
		}
	}
}

func parseError(detail string) *models.ErrorResponse {
	return &models.ErrorResponse{
		ErrorCode:    models.ErrorParseError,
		ErrorMessage: "Invalid request format: " + detail,
	}
}
