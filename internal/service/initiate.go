package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/gateway"
	"github.com/sdiallo/kalpe/internal/logging"
)

type initInvoiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	SetPendingPayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod) error
}

type initIntentStore interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	MarkSubmitted(ctx context.Context, id uuid.UUID, gatewayID *string, paymentURL string, raw json.RawMessage) error
}

type collectionClient interface {
	SubmitCollection(ctx context.Context, req gateway.CollectionRequest) (*gateway.CollectionResult, error)
}

// Initiation builds and submits a collection request to the aggregator and
// records the attempt. It owns PaymentIntent creation; everything after that
// belongs to the reconciler.
type Initiation struct {
	invoices initInvoiceStore
	intents  initIntentStore
	gateway  collectionClient
	now      func() time.Time
}

func NewInitiation(invoices initInvoiceStore, intents initIntentStore, gw collectionClient) *Initiation {
	return &Initiation{
		invoices: invoices,
		intents:  intents,
		gateway:  gw,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type InitiationResult struct {
	PaymentURL    string
	TransactionID string
	Status        domain.IntentStatus
}

// Initiate sets up payment collection for one invoice. The intent is written
// before the gateway call and the invoice flips to pending_payment before the
// URL is returned, so a confirmation signal can never arrive for a payment
// this service has no record of being in flight.
func (s *Initiation) Initiate(ctx context.Context, accountID, invoiceID uuid.UUID, methodName, phoneNumber string) (*InitiationResult, error) {
	log := logging.FromContext(ctx)

	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	if invoice.AccountID != accountID {
		return nil, fmt.Errorf("Initiate: %w", domain.ErrUnauthorized)
	}
	if !invoice.Payable() {
		return nil, fmt.Errorf("Initiate: %w", domain.ErrInvoiceNotPayable)
	}

	method, err := domain.ParsePaymentMethod(methodName)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	phone, err := NormalizePhone(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	now := s.now()
	externalID := NewExternalTransactionID(invoiceID, now)

	// The intent is written as initiated before the gateway sees the request,
	// so even an attempt that dies upstream leaves a ledger entry. Losing
	// this write is logged, not fatal: the reconciler falls back to the
	// invoice record when no intent exists.
	intent := &domain.PaymentIntent{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		ExternalID:  externalID,
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Method:      method,
		PhoneNumber: phone,
		Status:      domain.IntentStatusInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	intentStored := true
	if err := s.intents.Create(ctx, intent); err != nil {
		intentStored = false
		log.Error("failed to persist payment intent",
			"invoice_id", invoiceID,
			"external_id", externalID,
			"error", err,
		)
	}

	res, err := s.gateway.SubmitCollection(ctx, gateway.CollectionRequest{
		ExternalID:  externalID,
		ServiceCode: method.ServiceCode(),
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		PhoneNumber: phone,
	})
	if err != nil {
		// The intent stays initiated: a dead attempt the next retry supersedes.
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	if err := s.invoices.SetPendingPayment(ctx, invoiceID, method); err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	if intentStored {
		var gatewayID *string
		if res.GatewayID != "" {
			gatewayID = &res.GatewayID
		}
		if err := s.intents.MarkSubmitted(ctx, intent.ID, gatewayID, res.PaymentURL, res.Raw); err != nil {
			log.Error("failed to advance payment intent to pending",
				"intent_id", intent.ID,
				"invoice_id", invoiceID,
				"error", err,
			)
		}
	}

	log.Info("payment initiated",
		"invoice_id", invoiceID,
		"external_id", externalID,
		"method", method,
	)

	return &InitiationResult{
		PaymentURL:    res.PaymentURL,
		TransactionID: externalID,
		Status:        domain.IntentStatusPending,
	}, nil
}

// NewExternalTransactionID builds the caller-side idempotency anchor:
// INV-<first8(invoiceId)>-<unixMillis>.
func NewExternalTransactionID(invoiceID uuid.UUID, at time.Time) string {
	prefix := strings.ReplaceAll(invoiceID.String(), "-", "")[:8]
	return fmt.Sprintf("INV-%s-%d", prefix, at.UnixMilli())
}
