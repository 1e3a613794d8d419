package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/gateway"
)

type initFakeInvoices struct {
	invoice      *domain.Invoice
	pendingCalls int
}

func (f *initFakeInvoices) GetByID(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	if f.invoice == nil || f.invoice.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *f.invoice
	return &cp, nil
}

func (f *initFakeInvoices) SetPendingPayment(_ context.Context, id uuid.UUID, method domain.PaymentMethod) error {
	f.pendingCalls++
	if f.invoice == nil || f.invoice.ID != id {
		return domain.ErrNotFound
	}
	if !f.invoice.Payable() {
		return domain.ErrInvoiceNotPayable
	}
	f.invoice.Status = domain.InvoiceStatusPendingPayment
	f.invoice.PaymentMethod = &method
	return nil
}

type initFakeIntents struct {
	created   []*domain.PaymentIntent
	createErr error
	submitted int
}

func (f *initFakeIntents) Create(_ context.Context, intent *domain.PaymentIntent) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *intent
	f.created = append(f.created, &cp)
	return nil
}

func (f *initFakeIntents) MarkSubmitted(_ context.Context, id uuid.UUID, gatewayID *string, paymentURL string, raw json.RawMessage) error {
	for _, it := range f.created {
		if it.ID != id {
			continue
		}
		if it.Status != domain.IntentStatusInitiated {
			return domain.ErrNotFound
		}
		f.submitted++
		it.Status = domain.IntentStatusPending
		it.GatewayID = gatewayID
		it.PaymentURL = &paymentURL
		it.RawResponse = raw
		return nil
	}
	return domain.ErrNotFound
}

type fakeCollectionClient struct {
	lastReq gateway.CollectionRequest
	result  *gateway.CollectionResult
	err     error
}

func (f *fakeCollectionClient) SubmitCollection(_ context.Context, req gateway.CollectionRequest) (*gateway.CollectionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sentInvoice() *domain.Invoice {
	inv := pendingInvoice(domain.PaymentMethodWave, 0)
	inv.Status = domain.InvoiceStatusSent
	inv.PaymentMethod = nil
	return inv
}

func TestInitiate_Success(t *testing.T) {
	inv := sentInvoice()
	invoices := &initFakeInvoices{invoice: inv}
	intents := &initFakeIntents{}
	gw := &fakeCollectionClient{result: &gateway.CollectionResult{
		GatewayID:  "gw-777",
		PaymentURL: "https://pay.example.test/x",
		Raw:        json.RawMessage(`{"data":{}}`),
	}}

	s := NewInitiation(invoices, intents, gw)

	res, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "wave", "+221 77 123 45 67")
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.test/x", res.PaymentURL)
	assert.Equal(t, domain.IntentStatusPending, res.Status)

	assert.Equal(t, "WAVE_SN_API_CASH_IN", gw.lastReq.ServiceCode)
	assert.Equal(t, "771234567", gw.lastReq.PhoneNumber)
	assert.Equal(t, "XOF", gw.lastReq.Currency)
	assert.True(t, gw.lastReq.Amount.Equal(inv.Amount))

	assert.Equal(t, domain.InvoiceStatusPendingPayment, inv.Status)

	require.Len(t, intents.created, 1)
	intent := intents.created[0]
	assert.Equal(t, res.TransactionID, intent.ExternalID)
	assert.Equal(t, domain.IntentStatusPending, intent.Status)
	require.NotNil(t, intent.GatewayID)
	assert.Equal(t, "gw-777", *intent.GatewayID)
	require.NotNil(t, intent.PaymentURL)
	assert.Equal(t, "https://pay.example.test/x", *intent.PaymentURL)
	assert.Equal(t, domain.PaymentMethodWave, intent.Method)
	assert.Equal(t, 1, intents.submitted)
}

func TestInitiate_ExternalIDFormat(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	got := NewExternalTransactionID(id, at)

	assert.Regexp(t, regexp.MustCompile(`^INV-[0-9a-f]{8}-\d{13}$`), got)
}

func TestInitiate_ForeignInvoiceRejected(t *testing.T) {
	inv := sentInvoice()
	invoices := &initFakeInvoices{invoice: inv}
	gw := &fakeCollectionClient{}

	s := NewInitiation(invoices, &initFakeIntents{}, gw)

	_, err := s.Initiate(context.Background(), uuid.New(), inv.ID, "wave", "771234567")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, gw.lastReq.ExternalID, "gateway must not be called for a foreign invoice")
}

func TestInitiate_PaidInvoiceRejected(t *testing.T) {
	inv := sentInvoice()
	inv.Status = domain.InvoiceStatusPaid
	invoices := &initFakeInvoices{invoice: inv}

	s := NewInitiation(invoices, &initFakeIntents{}, &fakeCollectionClient{})

	_, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "wave", "771234567")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotPayable)
}

func TestInitiate_UnsupportedMethod(t *testing.T) {
	inv := sentInvoice()
	s := NewInitiation(&initFakeInvoices{invoice: inv}, &initFakeIntents{}, &fakeCollectionClient{})

	_, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "mpesa", "771234567")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMethod)
}

func TestInitiate_InvalidPhone(t *testing.T) {
	inv := sentInvoice()
	s := NewInitiation(&initFakeInvoices{invoice: inv}, &initFakeIntents{}, &fakeCollectionClient{})

	_, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "wave", "12345")
	assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
}

func TestInitiate_GatewayErrorLeavesInvoiceAlone(t *testing.T) {
	inv := sentInvoice()
	invoices := &initFakeInvoices{invoice: inv}
	intents := &initFakeIntents{}
	gwErr := &gateway.Error{StatusCode: 503, Body: "unavailable"}

	s := NewInitiation(invoices, intents, &fakeCollectionClient{err: gwErr})

	_, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "wave", "771234567")

	var upstream *gateway.Error
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 503, upstream.StatusCode)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	assert.Zero(t, invoices.pendingCalls)

	// The attempt is still on record, parked in initiated.
	require.Len(t, intents.created, 1)
	assert.Equal(t, domain.IntentStatusInitiated, intents.created[0].Status)
	assert.Nil(t, intents.created[0].GatewayID)
	assert.Zero(t, intents.submitted)
}

func TestInitiate_IntentAdvancesInitiatedToPending(t *testing.T) {
	inv := sentInvoice()
	intents := &initFakeIntents{}
	gw := &fakeCollectionClient{result: &gateway.CollectionResult{
		GatewayID:  "gw-9",
		PaymentURL: "https://pay.example.test/y",
		Raw:        json.RawMessage(`{}`),
	}}

	s := NewInitiation(&initFakeInvoices{invoice: inv}, intents, gw)

	_, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "orange_money", "771234567")
	require.NoError(t, err)

	require.Len(t, intents.created, 1)
	assert.Equal(t, domain.IntentStatusPending, intents.created[0].Status)
	assert.Equal(t, 1, intents.submitted)
}

func TestInitiate_LostLedgerWriteStillSucceeds(t *testing.T) {
	inv := sentInvoice()
	invoices := &initFakeInvoices{invoice: inv}
	intents := &initFakeIntents{createErr: errors.New("connection reset")}
	gw := &fakeCollectionClient{result: &gateway.CollectionResult{
		PaymentURL: "https://pay.example.test/x",
		Raw:        json.RawMessage(`{}`),
	}}

	s := NewInitiation(invoices, intents, gw)

	res, err := s.Initiate(context.Background(), inv.AccountID, inv.ID, "wave", "771234567")
	require.NoError(t, err)
	assert.NotEmpty(t, res.PaymentURL)
	assert.Equal(t, domain.InvoiceStatusPendingPayment, inv.Status)
}
