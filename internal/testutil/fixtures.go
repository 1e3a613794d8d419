package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sdiallo/kalpe/internal/domain"
)

var invoiceSeq int

// InsertInvoice seeds an invoice row directly; the invoicing flow that
// normally creates them is outside this service.
func InsertInvoice(t *testing.T, db *sql.DB, accountID uuid.UUID, status domain.InvoiceStatus, method *domain.PaymentMethod, createdAt time.Time) *domain.Invoice {
	t.Helper()

	invoiceSeq++
	inv := &domain.Invoice{
		ID:            uuid.New(),
		AccountID:     accountID,
		Number:        fmt.Sprintf("INV-%03d-%s", invoiceSeq, uuid.NewString()[:8]),
		Amount:        decimal.NewFromInt(25000),
		Currency:      "XOF",
		Status:        status,
		PaymentMethod: method,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	_, err := db.Exec(
		`INSERT INTO invoices (id, account_id, number, amount, currency, status, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.AccountID, inv.Number, inv.Amount, inv.Currency, inv.Status, method, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("insert invoice: %v", err)
	}
	return inv
}

func InsertIntent(t *testing.T, db *sql.DB, invoice *domain.Invoice, method domain.PaymentMethod, gatewayID *string, createdAt time.Time) *domain.PaymentIntent {
	t.Helper()

	intent := &domain.PaymentIntent{
		ID:          uuid.New(),
		InvoiceID:   invoice.ID,
		ExternalID:  fmt.Sprintf("INV-%s-%d", invoice.ID.String()[:8], createdAt.UnixMilli()),
		GatewayID:   gatewayID,
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Method:      method,
		PhoneNumber: "771234567",
		Status:      domain.IntentStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	_, err := db.Exec(
		`INSERT INTO payment_intents (id, invoice_id, external_id, gateway_id, amount, currency, method, phone_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		intent.ID, intent.InvoiceID, intent.ExternalID, intent.GatewayID,
		intent.Amount, intent.Currency, intent.Method, intent.PhoneNumber,
		intent.Status, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("insert payment intent: %v", err)
	}
	return intent
}

func GetInvoiceStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.InvoiceStatus {
	t.Helper()
	var status domain.InvoiceStatus
	if err := db.QueryRow(`SELECT status FROM invoices WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get invoice status: %v", err)
	}
	return status
}
