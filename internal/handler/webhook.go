package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/logging"
	"github.com/sdiallo/kalpe/internal/repository"
	"github.com/sdiallo/kalpe/internal/service"
)

// Any one of these carrying the shared secret authenticates a delivery; the
// aggregator has used all three names across gateway versions.
var signatureHeaders = []string{"X-Webhook-Secret", "X-Signature", "X-Wave-Signature"}

type webhookReconciler interface {
	Reconcile(ctx context.Context, invoiceRef string, trigger *domain.ConfirmationSignal) (*service.Outcome, error)
}

type webhookAuditStore interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

type WebhookHandler struct {
	reconciler webhookReconciler
	audit      webhookAuditStore
	secret     string
}

func NewWebhookHandler(reconciler webhookReconciler, audit webhookAuditStore, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, audit: audit, secret: secret}
}

// webhookAck is the fixed response contract for the aggregator: every
// delivery gets a definitive status plus the request id, so its retry policy
// has something to key on.
type webhookAck struct {
	Status      string `json:"status"`
	RequestID   string `json:"requestId"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	AlreadyPaid bool   `json:"alreadyPaid,omitempty"`
	Source      string `json:"source,omitempty"`
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	requestID := logging.TraceIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		h.ackError(w, requestID, ErrInvalidRequest)
		return
	}

	// A bare POST is the aggregator's liveness ping.
	if len(strings.TrimSpace(string(body))) == 0 {
		RespondJSON(w, http.StatusOK, webhookAck{
			Status:    "ok",
			RequestID: requestID,
			Message:   "webhook listener ready",
		})
		return
	}

	signatureOK := h.verifySignature(r)
	if !signatureOK {
		if h.secret != "" {
			log.Warn("webhook signature verification failed")
			h.ackError(w, requestID, ErrInvalidSignature)
			return
		}
		// Reduced-trust mode: no secret configured, accept but say so.
		log.Warn("accepting unverified webhook, no secret configured")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		h.ackError(w, requestID, ErrInvalidRequest)
		return
	}

	h.recordAudit(r.Context(), payload, body, signatureOK)

	invoiceRef, ok := resolveInvoiceRef(payload)
	if !ok {
		log.Warn("webhook payload has no invoice reference")
		h.ackError(w, requestID, ErrMissingInvoiceReference)
		return
	}

	signal := &domain.ConfirmationSignal{
		Source:        domain.SignalSourceWebhook,
		Confirmed:     confirmsPayment(payload),
		TransactionID: resolveTransactionID(payload),
		InvoiceRef:    invoiceRef,
		Payload:       body,
		ObservedAt:    time.Now().UTC(),
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), invoiceRef, signal)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("webhook references unknown invoice", "invoice_ref", invoiceRef)
			h.ackError(w, requestID, ErrMissingInvoiceReference)
			return
		}
		log.Error("webhook reconciliation failed", "invoice_ref", invoiceRef, "error", err)
		h.ackError(w, requestID, ErrInternalError)
		return
	}

	ack := webhookAck{RequestID: requestID, Source: string(outcome.Source)}
	switch outcome.Status {
	case "pending":
		ack.Status = "pending"
	default:
		ack.Status = "ok"
		ack.AlreadyPaid = outcome.AlreadyPaid
	}
	RespondJSON(w, http.StatusOK, ack)
}

func (h *WebhookHandler) ackError(w http.ResponseWriter, requestID string, appErr *AppError) {
	RespondJSON(w, appErr.Status, webhookAck{
		Status:    "error",
		RequestID: requestID,
		Code:      appErr.Code,
		Message:   appErr.Message,
	})
}

func (h *WebhookHandler) verifySignature(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	for _, name := range signatureHeaders {
		v := r.Header.Get(name)
		if v != "" && hmac.Equal([]byte(v), []byte(h.secret)) {
			return true
		}
	}
	return false
}

func (h *WebhookHandler) recordAudit(ctx context.Context, payload map[string]any, body []byte, signatureOK bool) {
	key := auditKey(payload, body)
	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Payload:        body,
		SignatureOK:    signatureOK,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := h.audit.Create(ctx, event); err != nil {
		if repository.IsDuplicateKey(err) {
			logging.FromContext(ctx).Info("duplicate webhook delivery", "idempotency_key", key)
			return
		}
		logging.FromContext(ctx).Error("failed to store webhook audit event", "error", err)
	}
}

// auditKey prefers the gateway's own event id; a body hash stands in when the
// payload has none, so byte-identical redeliveries still dedupe.
func auditKey(payload map[string]any, body []byte) string {
	for _, k := range []string{"event_id", "eventId", "id"} {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Payload shapes the aggregator has shipped: fields at the top level, under
// data, or under data.object. Each lookup walks the shapes in that order.
func payloadSections(payload map[string]any) []map[string]any {
	sections := []map[string]any{payload}
	if data, ok := payload["data"].(map[string]any); ok {
		sections = append(sections, data)
		if obj, ok := data["object"].(map[string]any); ok {
			sections = append(sections, obj)
		}
	}
	return sections
}

func resolveInvoiceRef(payload map[string]any) (string, bool) {
	for _, section := range payloadSections(payload) {
		for _, k := range []string{"invoice_id", "invoiceId", "invoice_number", "invoiceNumber"} {
			if s, ok := section[k].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func resolveTransactionID(payload map[string]any) string {
	for _, section := range payloadSections(payload) {
		for _, k := range []string{"transaction_id", "transactionId", "externalTransactionId", "external_transaction_id"} {
			if s, ok := section[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// confirmsPayment is the webhook confirmation predicate: the event type
// mentions success or completion, or the payload status says so outright.
func confirmsPayment(payload map[string]any) bool {
	for _, section := range payloadSections(payload) {
		for _, k := range []string{"type", "event", "event_type"} {
			if s, ok := section[k].(string); ok {
				lower := strings.ToLower(s)
				if strings.Contains(lower, "success") || strings.Contains(lower, "completed") {
					return true
				}
			}
		}
		if s, ok := section["status"].(string); ok {
			switch strings.ToLower(s) {
			case "completed", "succeeded":
				return true
			}
		}
	}
	return false
}
