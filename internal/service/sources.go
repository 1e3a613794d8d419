package service

import (
	"context"
	"time"

	"github.com/sdiallo/kalpe/internal/domain"
)

// Verdict is one source's answer for one reconciliation pass. Sources never
// return errors: a source that cannot decide answers unconfirmed and lets the
// next one try.
type Verdict struct {
	Confirmed bool
	Status    string
}

// ReconcileInput is the shared context a source decides against. Intent and
// Trigger may be nil: confirmations can arrive for invoices whose ledger
// write was lost, and sweep-driven passes have no triggering signal.
type ReconcileInput struct {
	Invoice *domain.Invoice
	Intent  *domain.PaymentIntent
	Trigger *domain.ConfirmationSignal
	Now     time.Time
}

// ConfirmationSource produces a confirmed/unknown answer for a payment. The
// reconciler walks an ordered slice of these and short-circuits on the first
// confirmation, which is what makes the webhook > poll > temporal precedence
// a property of the wiring rather than of each source.
type ConfirmationSource interface {
	Name() domain.SignalSource
	Check(ctx context.Context, in *ReconcileInput) Verdict
}

// WebhookSource evaluates the triggering signal itself. The confirmation
// predicate was already applied when the signal was built from the raw
// payload, so this only has to be a passthrough with a source check.
type WebhookSource struct{}

func (WebhookSource) Name() domain.SignalSource { return domain.SignalSourceWebhook }

func (WebhookSource) Check(_ context.Context, in *ReconcileInput) Verdict {
	if in.Trigger == nil || in.Trigger.Source != domain.SignalSourceWebhook {
		return Verdict{Status: "no_webhook_signal"}
	}
	if !in.Trigger.Confirmed {
		return Verdict{Status: "webhook_inconclusive"}
	}
	return Verdict{Confirmed: true, Status: "webhook_confirmed"}
}
