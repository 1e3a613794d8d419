package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("caller does not own this invoice")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrInvoiceNotPayable  = errors.New("invoice cannot accept payment")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrIntentTerminal     = errors.New("payment intent already in terminal state")
)
