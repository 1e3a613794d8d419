package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/domain"
)

const intentColumns = `id, invoice_id, external_id, gateway_id, amount, currency,
	method, phone_number, status, payment_url, raw_response, created_at, updated_at`

type PaymentIntentRepository struct {
	db *sql.DB
}

func NewPaymentIntentRepository(db *sql.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_intents (
			id, invoice_id, external_id, gateway_id, amount, currency,
			method, phone_number, status, payment_url, raw_response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		intent.ID, intent.InvoiceID, intent.ExternalID, intent.GatewayID,
		intent.Amount, intent.Currency, intent.Method, intent.PhoneNumber,
		intent.Status, intent.PaymentURL, intent.RawResponse,
		intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentIntentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE external_id = $1`, externalID,
	)
	intent, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByExternalID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByExternalID: %w", err)
	}
	return intent, nil
}

// GetLatestByInvoiceID returns the most recent attempt for an invoice. A
// retried payment setup leaves older attempts behind; the newest one is the
// ledger entry confirmations should merge into.
func (r *PaymentIntentRepository) GetLatestByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents
		WHERE invoice_id = $1 ORDER BY created_at DESC LIMIT 1`, invoiceID,
	)
	intent, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetLatestByInvoiceID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetLatestByInvoiceID: %w", err)
	}
	return intent, nil
}

// MarkSubmitted advances an initiated intent to pending once the aggregator
// has accepted the collection, recording what it assigned. The status guard
// keeps a late retry from rewinding an intent that already moved on.
func (r *PaymentIntentRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, gatewayID *string, paymentURL string, raw json.RawMessage) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		SET status = $1, gateway_id = $2, payment_url = $3, raw_response = $4, updated_at = now()
		WHERE id = $5 AND status = $6`,
		domain.IntentStatusPending, gatewayID, paymentURL, raw, id,
		domain.IntentStatusInitiated,
	)
	if err != nil {
		return fmt.Errorf("MarkSubmitted: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSubmitted: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkSubmitted: %w", domain.ErrNotFound)
	}
	return nil
}

// SetTerminalStatus moves an intent to completed or failed and merges the
// confirmation payload for audit. Terminal states never regress: the guard
// refuses the write once the intent has left the running set.
func (r *PaymentIntentRepository) SetTerminalStatus(ctx context.Context, id uuid.UUID, status domain.IntentStatus, rawPayload json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("SetTerminalStatus: %q is not terminal", status)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		SET status = $1, raw_response = COALESCE($2, raw_response), updated_at = now()
		WHERE id = $3 AND status NOT IN ($4, $5)`,
		status, rawPayload, id,
		domain.IntentStatusCompleted, domain.IntentStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("SetTerminalStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetTerminalStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetTerminalStatus: %w", domain.ErrIntentTerminal)
	}
	return nil
}

func scanIntent(s scanner) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	var raw *[]byte

	err := s.Scan(
		&intent.ID, &intent.InvoiceID, &intent.ExternalID, &intent.GatewayID,
		&intent.Amount, &intent.Currency, &intent.Method, &intent.PhoneNumber,
		&intent.Status, &intent.PaymentURL, &raw,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if raw != nil {
		intent.RawResponse = *raw
	}
	return &intent, nil
}
