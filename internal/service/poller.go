package service

import (
	"context"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/gateway"
	"github.com/sdiallo/kalpe/internal/logging"
)

type statusClient interface {
	GetTransactionStatus(ctx context.Context, gatewayID string) (*gateway.StatusResult, error)
}

// PollSource actively queries the aggregator's read endpoint. Polling is
// best-effort: an upstream error or timeout degrades to unconfirmed with
// status api_error so the reconciler can continue down the chain.
type PollSource struct {
	client statusClient
}

func NewPollSource(client statusClient) *PollSource {
	return &PollSource{client: client}
}

func (p *PollSource) Name() domain.SignalSource { return domain.SignalSourcePoll }

func (p *PollSource) Check(ctx context.Context, in *ReconcileInput) Verdict {
	gatewayID := pollableTransactionID(in)
	if gatewayID == "" {
		return Verdict{Status: "no_transaction_id"}
	}

	res, err := p.client.GetTransactionStatus(ctx, gatewayID)
	if err != nil {
		logging.FromContext(ctx).Warn("status poll failed",
			"gateway_id", gatewayID,
			"invoice_id", in.Invoice.ID,
			"error", err,
		)
		return Verdict{Status: "api_error"}
	}

	if !res.Confirmed {
		return Verdict{Status: res.Status}
	}
	return Verdict{Confirmed: true, Status: res.Status}
}

// pollableTransactionID prefers the gateway-assigned id from the ledger; a
// webhook-carried id is the fallback when the intent row is missing.
func pollableTransactionID(in *ReconcileInput) string {
	if in.Intent != nil && in.Intent.GatewayID != nil && *in.Intent.GatewayID != "" {
		return *in.Intent.GatewayID
	}
	if in.Trigger != nil {
		return in.Trigger.TransactionID
	}
	return ""
}
