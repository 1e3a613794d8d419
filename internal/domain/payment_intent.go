package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodFreeMoney   PaymentMethod = "free_money"
)

// ParsePaymentMethod maps a caller-supplied method name to a supported
// mobile-money channel.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodWave, PaymentMethodOrangeMoney, PaymentMethodFreeMoney:
		return PaymentMethod(s), nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// ServiceCode returns the aggregator cash-in service code for the channel.
func (m PaymentMethod) ServiceCode() string {
	switch m {
	case PaymentMethodWave:
		return "WAVE_SN_API_CASH_IN"
	case PaymentMethodOrangeMoney:
		return "ORANGE_SN_API_CASH_IN"
	case PaymentMethodFreeMoney:
		return "FREE_SN_WALLET_CASH_IN"
	default:
		return ""
	}
}

// RequiresTemporalFallback reports whether the channel's webhook delivery is
// unreliable enough that elapsed time may stand in for a confirmation.
// Only wave under-reports today; the trusted channels must never auto-confirm.
func (m PaymentMethod) RequiresTemporalFallback() bool {
	return m == PaymentMethodWave
}

type IntentStatus string

const (
	IntentStatusInitiated IntentStatus = "initiated"
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusCompleted IntentStatus = "completed"
	IntentStatusFailed    IntentStatus = "failed"
)

// IsTerminal reports whether no further transition is defined for the status.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusFailed
}

// PaymentIntent is the durable record of one payment attempt against an
// invoice. ExternalID is the caller-generated idempotency anchor; GatewayID
// is assigned by the aggregator once it accepts the request.
type PaymentIntent struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ExternalID  string
	GatewayID   *string
	Amount      decimal.Decimal
	Currency    string
	Method      PaymentMethod
	PhoneNumber string
	Status      IntentStatus
	PaymentURL  *string
	RawResponse json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
