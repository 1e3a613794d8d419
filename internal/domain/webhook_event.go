package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the audit record of one raw gateway delivery, stored before
// reconciliation so payloads can be replayed or inspected after the fact.
// IdempotencyKey dedupes redeliveries of the same gateway event.
type WebhookEvent struct {
	ID             uuid.UUID
	IdempotencyKey string
	Payload        json.RawMessage
	SignatureOK    bool
	ReceivedAt     time.Time
}
