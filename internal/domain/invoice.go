package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft          InvoiceStatus = "draft"
	InvoiceStatusSent           InvoiceStatus = "sent"
	InvoiceStatusPendingPayment InvoiceStatus = "pending_payment"
	InvoiceStatusPaid           InvoiceStatus = "paid"
	InvoiceStatusCancelled      InvoiceStatus = "cancelled"
)

// Invoice is the payment-relevant view of an invoice. Invoices are created by
// the invoicing flow; this service only owns the pending_payment -> paid
// transition. An invoice never leaves paid from here.
type Invoice struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Number           string
	Amount           decimal.Decimal
	Currency         string
	Status           InvoiceStatus
	PaymentMethod    *PaymentMethod
	PaymentReference *string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// Payable reports whether a payment may still be collected for this invoice.
func (i *Invoice) Payable() bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		return false
	default:
		return true
	}
}
