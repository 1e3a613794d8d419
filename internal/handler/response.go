package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/gateway"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError translates service-layer failures into the API error
// table. Gateway failures keep their upstream status and body as details so
// the caller can see why payment setup failed.
func RespondDomainError(w http.ResponseWriter, err error) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		RespondAppError(w, ErrGatewayError, map[string]any{
			"upstreamStatus": gwErr.StatusCode,
			"upstreamBody":   gwErr.Body,
		})
		return
	}

	var appErr *AppError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		appErr = ErrUnauthorizedInvoice
	case errors.Is(err, domain.ErrUnsupportedMethod):
		appErr = ErrUnsupportedMethod
	case errors.Is(err, domain.ErrInvoiceNotPayable):
		appErr = ErrInvoiceNotPayable
	case errors.Is(err, domain.ErrInvalidPhoneNumber):
		appErr = ErrInvalidPhoneNumber
	case errors.Is(err, gateway.ErrMalformedResponse):
		appErr = ErrMalformedGatewayResponse
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
