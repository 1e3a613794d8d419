package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sdiallo/kalpe/internal/domain"
)

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create stores one raw delivery for audit. Redelivered gateway events hit
// the idempotency_key unique index; callers treat that as already recorded.
func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, idempotency_key, payload, signature_ok, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.IdempotencyKey, event.Payload, event.SignatureOK, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
