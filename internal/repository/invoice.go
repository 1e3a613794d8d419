package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/domain"
)

const invoiceColumns = `id, account_id, number, amount, currency, status,
	payment_method, payment_reference, paid_at, created_at, updated_at`

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByNumber: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByNumber: %w", err)
	}
	return inv, nil
}

// SetPendingPayment flips an invoice into pending_payment and records the
// requested channel. The method stored here is provisional: it lets the
// reconciler fall back to the invoice record when no intent row exists.
func (r *InvoiceRepository) SetPendingPayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, payment_method = $2, updated_at = now()
		WHERE id = $3 AND status NOT IN ($4, $5)`,
		domain.InvoiceStatusPendingPayment, method, id,
		domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("SetPendingPayment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetPendingPayment: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetPendingPayment: %w", domain.ErrInvoiceNotPayable)
	}
	return nil
}

// MarkPaid performs the single guarded compare-and-set transition to paid.
// The status <> 'paid' precondition is re-checked at write time, which closes
// the race between the reconciler's advisory read and this write. A false
// return means another caller won the race; it is not an error.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, reference string, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, payment_method = $2, payment_reference = $3,
			paid_at = $4, updated_at = now()
		WHERE id = $5 AND status <> $1`,
		domain.InvoiceStatusPaid, method, reference, paidAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("MarkPaid: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkPaid: rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListPendingOlderThan returns invoices stuck in pending_payment since before
// cutoff, oldest first, for the auto-confirm sweeper.
func (r *InvoiceRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at LIMIT $3`,
		domain.InvoiceStatusPendingPayment, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListPendingOlderThan: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPendingOlderThan: scan: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPendingOlderThan: rows: %w", err)
	}
	return invoices, nil
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var method *string

	err := s.Scan(
		&inv.ID, &inv.AccountID, &inv.Number, &inv.Amount, &inv.Currency, &inv.Status,
		&method, &inv.PaymentReference, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if method != nil {
		m := domain.PaymentMethod(*method)
		inv.PaymentMethod = &m
	}
	return &inv, nil
}
