package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdiallo/kalpe/internal/domain"
	"github.com/sdiallo/kalpe/internal/repository"
	"github.com/sdiallo/kalpe/internal/testutil"
)

func newDBReconciler(db *sql.DB, sources []ConfirmationSource) *Reconciler {
	return NewReconciler(
		repository.NewInvoiceRepository(db),
		repository.NewPaymentIntentRepository(db),
		repository.NewStatisticsRepository(db),
		sources,
	)
}

func getIntentStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.IntentStatus {
	t.Helper()
	var status domain.IntentStatus
	require.NoError(t, db.QueryRow(`SELECT status FROM payment_intents WHERE id = $1`, id).Scan(&status))
	return status
}

func TestReconcilerIntegration_WebhookConfirmation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	wave := domain.PaymentMethodWave
	now := time.Now().UTC()
	inv := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &wave, now.Add(-time.Minute))
	intent := testutil.InsertIntent(t, db, inv, wave, nil, now.Add(-time.Minute))

	r := newDBReconciler(db, []ConfirmationSource{WebhookSource{}})
	signal := webhookSignal(inv.Number, "TXN-42", true)

	outcome, err := r.Reconcile(ctx, inv.ID.String(), signal)
	require.NoError(t, err)
	assert.Equal(t, "paid", outcome.Status)
	assert.Equal(t, domain.SignalSourceWebhook, outcome.Source)

	assert.Equal(t, domain.InvoiceStatusPaid, testutil.GetInvoiceStatus(t, db, inv.ID))
	assert.Equal(t, domain.IntentStatusCompleted, getIntentStatus(t, db, intent.ID))

	stats, err := repository.NewStatisticsRepository(db).GetByDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SuccessfulPayments)
	assert.Equal(t, int64(1), stats.WaveCount)
	assert.Equal(t, int64(0), stats.AutoMarkedCount)
	assert.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(25000)))

	// Redelivery of the same confirmation must be a no-op.
	again, err := r.Reconcile(ctx, inv.ID.String(), signal)
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)

	stats, err = repository.NewStatisticsRepository(db).GetByDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SuccessfulPayments)
}

func TestReconcilerIntegration_ConcurrentConfirmationsPaidOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	wave := domain.PaymentMethodWave
	now := time.Now().UTC()
	inv := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &wave, now.Add(-time.Minute))
	testutil.InsertIntent(t, db, inv, wave, nil, now.Add(-time.Minute))

	r := newDBReconciler(db, []ConfirmationSource{WebhookSource{}})

	const workers = 8
	outcomes := make([]*Outcome, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := r.Reconcile(ctx, inv.ID.String(), webhookSignal(inv.Number, "TXN-42", true))
			require.NoError(t, err)
			outcomes[i] = outcome
		}()
	}
	wg.Wait()

	paid := 0
	for _, o := range outcomes {
		require.True(t, o.Confirmed)
		if !o.AlreadyPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid, "exactly one pass may win the paid transition")

	stats, err := repository.NewStatisticsRepository(db).GetByDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SuccessfulPayments)
	assert.Equal(t, int64(1), stats.WaveCount)
}

func TestReconcilerIntegration_TemporalAutoConfirm(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	wave := domain.PaymentMethodWave
	now := time.Now().UTC()
	inv := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &wave, now.Add(-10*time.Minute))
	gatewayID := "gw-1"
	testutil.InsertIntent(t, db, inv, wave, &gatewayID, now.Add(-10*time.Minute))

	r := newDBReconciler(db, []ConfirmationSource{
		WebhookSource{},
		NewPollSource(failingStatusClient{}),
		NewTemporalSource(3 * time.Minute),
	})

	outcome, err := r.Reconcile(ctx, inv.ID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, "paid", outcome.Status)
	assert.Equal(t, domain.SignalSourceTemporal, outcome.Source)

	stats, err := repository.NewStatisticsRepository(db).GetByDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.AutoMarkedCount)
}

func TestReconcilerIntegration_TrustedMethodNeverAutoConfirms(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	om := domain.PaymentMethodOrangeMoney
	now := time.Now().UTC()
	inv := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &om, now.Add(-24*time.Hour))
	testutil.InsertIntent(t, db, inv, om, nil, now.Add(-24*time.Hour))

	r := newDBReconciler(db, []ConfirmationSource{
		WebhookSource{},
		NewTemporalSource(3 * time.Minute),
	})

	outcome, err := r.Reconcile(ctx, inv.ID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, "pending", outcome.Status)
	assert.Equal(t, domain.InvoiceStatusPendingPayment, testutil.GetInvoiceStatus(t, db, inv.ID))
}

func TestReconcilerIntegration_StatisticsAccumulateAcrossMethods(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	r := newDBReconciler(db, []ConfirmationSource{WebhookSource{}})

	wave := domain.PaymentMethodWave
	om := domain.PaymentMethodOrangeMoney
	invA := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &wave, now.Add(-time.Minute))
	invB := testutil.InsertInvoice(t, db, uuid.New(), domain.InvoiceStatusPendingPayment, &om, now.Add(-time.Minute))
	testutil.InsertIntent(t, db, invA, wave, nil, now.Add(-time.Minute))
	testutil.InsertIntent(t, db, invB, om, nil, now.Add(-time.Minute))

	for _, inv := range []*domain.Invoice{invA, invB} {
		outcome, err := r.Reconcile(ctx, inv.ID.String(), webhookSignal(inv.Number, "TXN-"+inv.Number, true))
		require.NoError(t, err)
		assert.Equal(t, "paid", outcome.Status)
	}

	stats, err := repository.NewStatisticsRepository(db).GetByDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.SuccessfulPayments)
	assert.Equal(t, int64(1), stats.WaveCount)
	assert.Equal(t, int64(1), stats.OrangeMoneyCount)
	assert.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(50000)))
}
