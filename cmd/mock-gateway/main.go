// mock-gateway simulates the mobile-money aggregator for local development:
// it accepts collection submissions, serves transaction status reads, and
// pushes a signed confirmation webhook back after a short delay.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sdiallo/kalpe/internal/logging"
)

type transaction struct {
	ID         string
	ExternalID string
	Status     string
}

type mockGateway struct {
	mu           sync.Mutex
	transactions map[string]*transaction

	callbackDelay time.Duration
	webhookSecret string
	httpClient    *http.Client
}

func main() {
	if os.Getenv("APP_ENV") == "development" {
		_ = godotenv.Load()
	}

	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	g := &mockGateway{
		transactions:  make(map[string]*transaction),
		callbackDelay: 5 * time.Second,
		webhookSecret: os.Getenv("WEBHOOK_SECRET"),
		httpClient:    &http.Client{Timeout: 5 * time.Second},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /api/v1/operation", g.handleCollection)
	mux.HandleFunc("GET /api/v1/transactions/{id}", g.handleStatus)

	slog.Info("mock gateway started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type collectionRequest struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	CodeService           string `json:"codeService"`
	Amount                string `json:"amount"`
	RecipientNumber       string `json:"recipientNumber"`
	CallbackURL           string `json:"callbackUrl"`
}

func (g *mockGateway) handleCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	tx := &transaction{
		ID:         uuid.NewString(),
		ExternalID: req.ExternalTransactionID,
		Status:     "pending",
	}

	g.mu.Lock()
	g.transactions[tx.ID] = tx
	g.mu.Unlock()

	slog.Info("collection accepted",
		"gateway_id", tx.ID,
		"external_id", tx.ExternalID,
		"service_code", req.CodeService,
	)

	if req.CallbackURL != "" {
		go g.completeAndNotify(tx, req.CallbackURL)
	}

	// Answer with the v2 envelope shape the production aggregator ships.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{
			"transaction": map[string]any{
				"id":          tx.ID,
				"status":      tx.Status,
				"payment_url": fmt.Sprintf("http://localhost:8081/pay/%s", tx.ID),
			},
		},
	})
}

func (g *mockGateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	g.mu.Lock()
	tx, ok := g.transactions[id]
	g.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transaction": map[string]any{
			"id":     tx.ID,
			"status": tx.Status,
		},
	})
}

// completeAndNotify flips the transaction to completed after the configured
// delay and pushes a signed webhook, the way the real aggregator does.
func (g *mockGateway) completeAndNotify(tx *transaction, callbackURL string) {
	time.Sleep(g.callbackDelay)

	g.mu.Lock()
	tx.Status = "completed"
	g.mu.Unlock()

	payload, err := json.Marshal(map[string]any{
		"event_id": uuid.NewString(),
		"type":     "payment.completed",
		"data": map[string]any{
			"transaction_id": tx.ID,
			"invoice_id":     tx.ExternalID,
			"status":         "completed",
		},
	})
	if err != nil {
		slog.Error("failed to marshal webhook payload", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if g.webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", g.webhookSecret)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Error("webhook delivery failed", "gateway_id", tx.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("webhook delivered", "gateway_id", tx.ID, "status", resp.StatusCode)
}
