package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrUnauthorizedInvoice      = &AppError{http.StatusForbidden, "UNAUTHORIZED", "Invoice belongs to another account"}
	ErrUnsupportedMethod        = &AppError{http.StatusUnprocessableEntity, "UNSUPPORTED_METHOD", "Payment method is not supported"}
	ErrInvoiceNotPayable        = &AppError{http.StatusUnprocessableEntity, "INVOICE_NOT_PAYABLE", "Invoice cannot accept payment in its current state"}
	ErrInvalidPhoneNumber       = &AppError{http.StatusBadRequest, "INVALID_PHONE_NUMBER", "Phone number is not a valid wallet number"}
	ErrGatewayError             = &AppError{http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway rejected the request"}
	ErrMalformedGatewayResponse = &AppError{http.StatusBadGateway, "MALFORMED_GATEWAY_RESPONSE", "Payment gateway returned an unrecognized response"}

	ErrMissingInvoiceReference = &AppError{http.StatusBadRequest, "MISSING_INVOICE_REFERENCE", "Webhook payload carries no resolvable invoice reference"}
	ErrInvalidSignature        = &AppError{http.StatusForbidden, "INVALID_SIGNATURE", "Webhook signature is invalid"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
