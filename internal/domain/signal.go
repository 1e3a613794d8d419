package domain

import (
	"encoding/json"
	"time"
)

type SignalSource string

const (
	SignalSourceWebhook  SignalSource = "webhook"
	SignalSourcePoll     SignalSource = "poll"
	SignalSourceTemporal SignalSource = "temporal"
)

// ConfirmationSignal is an ephemeral assertion from one source that a payment
// transaction succeeded (or did not). It is consumed immediately by the
// reconciler and never persisted on its own.
type ConfirmationSignal struct {
	Source        SignalSource
	Confirmed     bool
	TransactionID string
	InvoiceRef    string
	Payload       json.RawMessage
	ObservedAt    time.Time
}
