package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/societyops/internal/apperr"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = apperr.New(apperr.KindNotFound, "not_found", "not found")
	ErrInvalidRequest = apperr.Validation("request", "invalid_request", "invalid request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) error {
	return apperr.Validation(field, code, message)
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if appErr, ok := apperr.As(err); ok {
		switch appErr.Kind {
		case apperr.KindValidation:
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Code:    appErr.Code,
				Message: appErr.Message,
				Errors: []ValidationError{{
					Field:   appErr.Field,
					Code:    appErr.Code,
					Message: appErr.Message,
				}},
			}
		case apperr.KindNotFound:
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Code:    appErr.Code,
				Message: appErr.Message,
			}
		case apperr.KindConflict:
			return http.StatusConflict, errorPayload{
				Type:    "conflict",
				Code:    appErr.Code,
				Message: appErr.Message,
			}
		case apperr.KindInvalidTransition:
			return http.StatusUnprocessableEntity, errorPayload{
				Type:    "invalid_transition",
				Code:    appErr.Code,
				Message: appErr.Message,
			}
		case apperr.KindInconsistentState:
			// never retried; an operator has to reconcile the flat first
			return http.StatusConflict, errorPayload{
				Type:    "inconsistent_state",
				Code:    appErr.Code,
				Message: appErr.Message,
			}
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "not_found",
			Message: "not found",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog reports the error type and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}
