package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/sdiallo/kalpe/internal/auth"
	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/logging"
	"github.com/sdiallo/kalpe/internal/service"
)

type initiationService interface {
	Initiate(ctx context.Context, accountID, invoiceID uuid.UUID, method, phoneNumber string) (*service.InitiationResult, error)
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, invoiceRef string, trigger *domain.ConfirmationSignal) (*service.Outcome, error)
}

type intentReader interface {
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error)
}

type invoiceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
}

type PaymentHandler struct {
	initiation initiationService
	reconciler paymentReconciler
	intents    intentReader
	invoices   invoiceReader
}

func NewPaymentHandler(initiation initiationService, reconciler paymentReconciler, intents intentReader, invoices invoiceReader) *PaymentHandler {
	return &PaymentHandler{
		initiation: initiation,
		reconciler: reconciler,
		intents:    intents,
		invoices:   invoices,
	}
}

type initiateRequest struct {
	InvoiceID     string `json:"invoiceId"`
	PaymentMethod string `json:"paymentMethod"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (req initiateRequest) validate() []FieldError {
	var errs []FieldError

	if req.InvoiceID == "" {
		errs = append(errs, FieldError{Field: "invoiceId", Message: "required"})
	} else if _, err := uuid.Parse(req.InvoiceID); err != nil {
		errs = append(errs, FieldError{Field: "invoiceId", Message: "must be a valid UUID"})
	}

	if req.PaymentMethod == "" {
		errs = append(errs, FieldError{Field: "paymentMethod", Message: "required"})
	}

	if req.PhoneNumber == "" {
		errs = append(errs, FieldError{Field: "phoneNumber", Message: "required"})
	}

	return errs
}

type initiateResponse struct {
	PaymentURL    string `json:"paymentUrl"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	invoiceID := uuid.MustParse(req.InvoiceID)

	result, err := h.initiation.Initiate(r.Context(), accountID, invoiceID, req.PaymentMethod, req.PhoneNumber)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment initiation failed",
			"invoice_id", invoiceID,
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, initiateResponse{
		PaymentURL:    result.PaymentURL,
		TransactionID: result.TransactionID,
		Status:        string(result.Status),
	})
}

type statusResponse struct {
	Status      string `json:"status"`
	AlreadyPaid bool   `json:"alreadyPaid,omitempty"`
	Source      string `json:"source,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Status lets the paying client ask whether its payment landed. The check
// itself runs a reconciliation pass, so an answer of paid is authoritative
// and a pending payment gets a fresh poll on every ask.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	externalID := r.PathValue("externalId")
	if externalID == "" {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	intent, err := h.intents.GetByExternalID(r.Context(), externalID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	invoice, err := h.invoices.GetByID(r.Context(), intent.InvoiceID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	// Foreign invoices look like missing ones; don't leak their existence.
	if invoice.AccountID != accountID {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), externalID, nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			RespondAppError(w, ErrResourceNotFound, nil)
			return
		}
		logging.FromContext(r.Context()).Error("status reconciliation failed",
			"external_id", externalID,
			"error", err,
		)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, statusResponse{
		Status:      outcome.Status,
		AlreadyPaid: outcome.AlreadyPaid,
		Source:      string(outcome.Source),
		Reference:   outcome.Reference,
	})
}
