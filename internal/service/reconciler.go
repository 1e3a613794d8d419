package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/logging"
)

type invoiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, reference string, paidAt time.Time) (bool, error)
}

type intentStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error)
	GetLatestByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*domain.PaymentIntent, error)
	SetTerminalStatus(ctx context.Context, id uuid.UUID, status domain.IntentStatus, rawPayload json.RawMessage) error
}

type statisticsStore interface {
	IncrementDaily(ctx context.Context, day time.Time, delta domain.StatisticsDelta) error
}

// Outcome is the result of one reconciliation pass. AlreadyPaid is reported
// for both the fast-path read and a lost compare-and-set race; callers treat
// either as success.
type Outcome struct {
	Confirmed   bool                `json:"confirmed"`
	AlreadyPaid bool                `json:"alreadyPaid,omitempty"`
	Source      domain.SignalSource `json:"source,omitempty"`
	Status      string              `json:"status"`
	Reference   string              `json:"reference,omitempty"`
}

// Reconciler is the single authority allowed to move an invoice to paid. All
// coordination between concurrent passes happens through the guarded invoice
// update; every other read here is advisory.
type Reconciler struct {
	invoices invoiceStore
	intents  intentStore
	stats    statisticsStore
	sources  []ConfirmationSource
	now      func() time.Time
}

func NewReconciler(invoices invoiceStore, intents intentStore, stats statisticsStore, sources []ConfirmationSource) *Reconciler {
	return &Reconciler{
		invoices: invoices,
		intents:  intents,
		stats:    stats,
		sources:  sources,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile resolves invoiceRef to an invoice, walks the confirmation sources
// in precedence order, and applies at most one paid transition. Absence of
// confirmation is the expected common case for a legitimately unpaid invoice
// and comes back as status pending, not as an error.
func (r *Reconciler) Reconcile(ctx context.Context, invoiceRef string, trigger *domain.ConfirmationSignal) (*Outcome, error) {
	log := logging.FromContext(ctx)

	invoice, intent, err := r.resolve(ctx, invoiceRef)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	if invoice.IsPaid() {
		return &Outcome{Confirmed: true, AlreadyPaid: true, Status: "already_paid"}, nil
	}

	if intent == nil {
		// Tolerated: the initiation flow flips the invoice before the ledger
		// write, so a confirmation can race a missing intent row.
		log.Warn("reconciling without payment intent", "invoice_id", invoice.ID)
	}

	in := &ReconcileInput{
		Invoice: invoice,
		Intent:  intent,
		Trigger: trigger,
		Now:     r.now(),
	}

	if triggerReportsFailure(trigger) {
		r.failIntent(ctx, in)
		return &Outcome{Status: "failed"}, nil
	}

	var source domain.SignalSource
	confirmed := false
	for _, s := range r.sources {
		verdict := s.Check(ctx, in)
		log.Debug("confirmation source checked",
			"invoice_id", invoice.ID,
			"source", s.Name(),
			"confirmed", verdict.Confirmed,
			"status", verdict.Status,
		)
		if verdict.Confirmed {
			confirmed = true
			source = s.Name()
			break
		}
	}

	if !confirmed {
		return &Outcome{Status: "pending"}, nil
	}

	reference := paymentReference(in)
	method, hasMethod := methodFor(in)

	won, err := r.invoices.MarkPaid(ctx, invoice.ID, method, reference, in.Now)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: mark paid: %w", err)
	}
	if !won {
		// Another pass got there between our read and the guarded write.
		log.Info("invoice already paid by concurrent reconciliation", "invoice_id", invoice.ID)
		return &Outcome{Confirmed: true, AlreadyPaid: true, Status: "already_paid"}, nil
	}

	log.Info("invoice marked paid",
		"invoice_id", invoice.ID,
		"source", source,
		"reference", reference,
		"method", method,
	)

	// Everything past the invoice transition is best-effort. The invoice row
	// is the source of truth; a failed ledger or statistics write must not
	// undo or fail the confirmation.
	r.completeIntent(ctx, in)
	if hasMethod {
		r.recordStatistics(ctx, in, method, source)
	} else {
		log.Warn("skipping statistics, payment method unknown", "invoice_id", invoice.ID)
	}

	return &Outcome{Confirmed: true, Source: source, Status: "paid", Reference: reference}, nil
}

// resolve accepts an invoice id, an external transaction id, or an invoice
// number, in that order, and loads the newest intent for the invoice.
func (r *Reconciler) resolve(ctx context.Context, ref string) (*domain.Invoice, *domain.PaymentIntent, error) {
	if id, err := uuid.Parse(ref); err == nil {
		invoice, err := r.invoices.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return r.withLatestIntent(ctx, invoice)
	}

	intent, err := r.intents.GetByExternalID(ctx, ref)
	if err == nil {
		invoice, err := r.invoices.GetByID(ctx, intent.InvoiceID)
		if err != nil {
			return nil, nil, err
		}
		return invoice, intent, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	invoice, err := r.invoices.GetByNumber(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return r.withLatestIntent(ctx, invoice)
}

func (r *Reconciler) withLatestIntent(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, *domain.PaymentIntent, error) {
	it, err := r.intents.GetLatestByInvoiceID(ctx, invoice.ID)
	switch {
	case err == nil:
		return invoice, it, nil
	case errors.Is(err, domain.ErrNotFound):
		return invoice, nil, nil
	default:
		return nil, nil, err
	}
}

func (r *Reconciler) completeIntent(ctx context.Context, in *ReconcileInput) {
	if in.Intent == nil {
		return
	}
	var payload json.RawMessage
	if in.Trigger != nil {
		payload = in.Trigger.Payload
	}
	if err := r.intents.SetTerminalStatus(ctx, in.Intent.ID, domain.IntentStatusCompleted, payload); err != nil && !errors.Is(err, domain.ErrIntentTerminal) {
		logging.FromContext(ctx).Error("failed to complete payment intent",
			"intent_id", in.Intent.ID,
			"invoice_id", in.Invoice.ID,
			"error", err,
		)
	}
}

func (r *Reconciler) failIntent(ctx context.Context, in *ReconcileInput) {
	if in.Intent == nil {
		return
	}
	var payload json.RawMessage
	if in.Trigger != nil {
		payload = in.Trigger.Payload
	}
	if err := r.intents.SetTerminalStatus(ctx, in.Intent.ID, domain.IntentStatusFailed, payload); err != nil && !errors.Is(err, domain.ErrIntentTerminal) {
		logging.FromContext(ctx).Error("failed to record intent failure",
			"intent_id", in.Intent.ID,
			"invoice_id", in.Invoice.ID,
			"error", err,
		)
	}
}

func (r *Reconciler) recordStatistics(ctx context.Context, in *ReconcileInput, method domain.PaymentMethod, source domain.SignalSource) {
	amount := in.Invoice.Amount
	if in.Intent != nil {
		amount = in.Intent.Amount
	}
	delta := domain.StatisticsDelta{
		Method:     method,
		Amount:     amount,
		AutoMarked: source == domain.SignalSourceTemporal,
	}
	if err := r.stats.IncrementDaily(ctx, in.Now, delta); err != nil {
		logging.FromContext(ctx).Error("failed to update daily statistics",
			"invoice_id", in.Invoice.ID,
			"error", err,
		)
	}
}

func paymentReference(in *ReconcileInput) string {
	if in.Trigger != nil && in.Trigger.TransactionID != "" {
		return in.Trigger.TransactionID
	}
	if in.Intent != nil {
		return in.Intent.ExternalID
	}
	return in.Invoice.Number
}

// triggerReportsFailure detects a webhook that explicitly says the payment is
// dead. The invoice is left untouched so the client can retry; only the
// intent is closed out.
func triggerReportsFailure(trigger *domain.ConfirmationSignal) bool {
	if trigger == nil || trigger.Confirmed || len(trigger.Payload) == 0 {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(trigger.Payload, &body); err != nil {
		return false
	}
	switch strings.ToLower(body.Status) {
	case "failed", "cancelled", "canceled", "expired":
		return true
	default:
		return false
	}
}
