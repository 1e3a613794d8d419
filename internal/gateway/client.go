package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sdiallo/kalpe/internal/logging"
)

// Error is a typed upstream failure carrying the aggregator's status and
// body, so callers can distinguish gateway rejection from local faults.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the mobile-money aggregator. Both calls apply the
// configured bounded timeout; a timed-out status read is reported as an
// upstream error, never as a confirmation.
type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
}

func NewClient(baseURL, apiKey, callbackURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type CollectionRequest struct {
	ExternalID  string
	ServiceCode string
	Amount      decimal.Decimal
	Currency    string
	PhoneNumber string
}

type CollectionResult struct {
	GatewayID  string
	PaymentURL string
	Raw        json.RawMessage
}

type collectionPayload struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	Codeservice           string `json:"codeService"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	RecipientNumber       string `json:"recipientNumber"`
	CallbackURL           string `json:"callbackUrl"`
}

// SubmitCollection asks the aggregator to collect funds from the client's
// wallet and returns the redirect URL the payer must visit.
func (c *Client) SubmitCollection(ctx context.Context, req CollectionRequest) (*CollectionResult, error) {
	log := logging.FromContext(ctx)

	payload := collectionPayload{
		ExternalTransactionID: req.ExternalID,
		Codeservice:           req.ServiceCode,
		Amount:                req.Amount.String(),
		Currency:              req.Currency,
		RecipientNumber:       req.PhoneNumber,
		CallbackURL:           c.callbackURL,
	}

	body, err := c.post(ctx, "/api/v1/operation", payload)
	if err != nil {
		return nil, fmt.Errorf("SubmitCollection: %w", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("SubmitCollection: decode response: %w", err)
	}

	url, ok := extractPaymentURL(parsed)
	if !ok {
		log.Error("no payment url in gateway response", "external_id", req.ExternalID)
		return nil, fmt.Errorf("SubmitCollection: %w", ErrMalformedResponse)
	}

	gatewayID, _ := extractTransactionID(parsed)

	log.Info("collection submitted",
		"external_id", req.ExternalID,
		"gateway_id", gatewayID,
		"service_code", req.ServiceCode,
	)

	return &CollectionResult{
		GatewayID:  gatewayID,
		PaymentURL: url,
		Raw:        body,
	}, nil
}

type StatusResult struct {
	Status    string
	Confirmed bool
	Raw       json.RawMessage
}

// GetTransactionStatus reads the aggregator's view of a transaction.
func (c *Client) GetTransactionStatus(ctx context.Context, gatewayID string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/transactions/"+gatewayID, nil)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionStatus: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionStatus: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("GetTransactionStatus: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GetTransactionStatus: %w", &Error{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)})
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("GetTransactionStatus: decode response: %w", err)
	}

	status, _ := extractStatus(parsed)
	return &StatusResult{
		Status:    status,
		Confirmed: isConfirmedStatus(status),
		Raw:       body,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	log.Info("gateway response received",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
