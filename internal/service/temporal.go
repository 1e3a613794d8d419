package service

import (
	"context"
	"time"

	"github.com/sdiallo/kalpe/internal/domain"
)

// TemporalSource presumes success once a configured dwell has elapsed since
// initiation. It is a conservative, opt-in-per-channel safety net for
// channels whose webhook delivery under-reports; it must never fire for a
// channel whose delivery is trusted, and never before the dwell is up.
type TemporalSource struct {
	dwell time.Duration
}

func NewTemporalSource(dwell time.Duration) *TemporalSource {
	return &TemporalSource{dwell: dwell}
}

func (t *TemporalSource) Name() domain.SignalSource { return domain.SignalSourceTemporal }

func (t *TemporalSource) Check(_ context.Context, in *ReconcileInput) Verdict {
	if in.Invoice.IsPaid() {
		return Verdict{Status: "already_paid"}
	}

	method, ok := methodFor(in)
	if !ok || !method.RequiresTemporalFallback() {
		return Verdict{Status: "method_not_eligible"}
	}

	if in.Now.Sub(initiatedAt(in)) < t.dwell {
		return Verdict{Status: "within_dwell"}
	}
	return Verdict{Confirmed: true, Status: "auto_confirmed"}
}

// initiatedAt is the intent-creation time when the ledger entry survives, the
// invoice record otherwise.
func initiatedAt(in *ReconcileInput) time.Time {
	if in.Intent != nil {
		return in.Intent.CreatedAt
	}
	return in.Invoice.CreatedAt
}

func methodFor(in *ReconcileInput) (domain.PaymentMethod, bool) {
	if in.Intent != nil {
		return in.Intent.Method, true
	}
	if in.Invoice.PaymentMethod != nil {
		return *in.Invoice.PaymentMethod, true
	}
	return "", false
}
