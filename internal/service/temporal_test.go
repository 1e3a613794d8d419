package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sdiallo/kalpe/internal/domain"
)

func TestTemporalSource_Check(t *testing.T) {
	dwell := 3 * time.Minute

	tests := []struct {
		name          string
		method        domain.PaymentMethod
		age           time.Duration
		paid          bool
		wantConfirmed bool
		wantStatus    string
	}{
		{
			name:          "wave past dwell auto-confirms",
			method:        domain.PaymentMethodWave,
			age:           5 * time.Minute,
			wantConfirmed: true,
			wantStatus:    "auto_confirmed",
		},
		{
			name:       "wave within dwell stays pending",
			method:     domain.PaymentMethodWave,
			age:        90 * time.Second,
			wantStatus: "within_dwell",
		},
		{
			name:       "wave exactly at creation stays pending",
			method:     domain.PaymentMethodWave,
			age:        0,
			wantStatus: "within_dwell",
		},
		{
			name:       "orange money never auto-confirms",
			method:     domain.PaymentMethodOrangeMoney,
			age:        24 * time.Hour,
			wantStatus: "method_not_eligible",
		},
		{
			name:       "free money never auto-confirms",
			method:     domain.PaymentMethodFreeMoney,
			age:        24 * time.Hour,
			wantStatus: "method_not_eligible",
		},
		{
			name:       "paid invoice is left alone",
			method:     domain.PaymentMethodWave,
			age:        time.Hour,
			paid:       true,
			wantStatus: "already_paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := pendingInvoice(tt.method, tt.age)
			if tt.paid {
				inv.Status = domain.InvoiceStatusPaid
			}
			intent := intentFor(inv, nil)

			src := NewTemporalSource(dwell)
			verdict := src.Check(context.Background(), &ReconcileInput{
				Invoice: inv,
				Intent:  intent,
				Now:     time.Now().UTC(),
			})

			assert.Equal(t, tt.wantConfirmed, verdict.Confirmed)
			assert.Equal(t, tt.wantStatus, verdict.Status)
		})
	}
}

func TestTemporalSource_FallsBackToInvoiceCreation(t *testing.T) {
	inv := pendingInvoice(domain.PaymentMethodWave, 10*time.Minute)

	src := NewTemporalSource(3 * time.Minute)
	verdict := src.Check(context.Background(), &ReconcileInput{
		Invoice: inv,
		Now:     time.Now().UTC(),
	})

	assert.True(t, verdict.Confirmed)
}

func TestTemporalSource_NoMethodNoConfirmation(t *testing.T) {
	inv := pendingInvoice(domain.PaymentMethodWave, time.Hour)
	inv.PaymentMethod = nil

	src := NewTemporalSource(3 * time.Minute)
	verdict := src.Check(context.Background(), &ReconcileInput{
		Invoice: inv,
		Now:     time.Now().UTC(),
	})

	assert.False(t, verdict.Confirmed)
	assert.Equal(t, "method_not_eligible", verdict.Status)
}
