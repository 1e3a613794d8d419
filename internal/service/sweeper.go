package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sdiallo/kalpe/internal/domain"
)

type pendingLister interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Invoice, error)
}

type sweepReconciler interface {
	Reconcile(ctx context.Context, invoiceRef string, trigger *domain.ConfirmationSignal) (*Outcome, error)
}

// Sweeper periodically pushes stale pending_payment invoices through the
// reconciler. This is what drives the poll and temporal sources for payments
// whose webhook never arrived and whose payer never asked for a status.
type Sweeper struct {
	invoices   pendingLister
	reconciler sweepReconciler
	logger     *slog.Logger
	interval   time.Duration
	dwell      time.Duration
	batchSize  int
}

func NewSweeper(invoices pendingLister, reconciler sweepReconciler, logger *slog.Logger, interval, dwell time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		invoices:   invoices,
		reconciler: reconciler,
		logger:     logger,
		interval:   interval,
		dwell:      dwell,
		batchSize:  batchSize,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("auto-confirm sweeper started", "interval", s.interval, "dwell", s.dwell)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-confirm sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.dwell)

	invoices, err := s.invoices.ListPendingOlderThan(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list stale pending invoices", "error", err)
		return
	}

	for _, inv := range invoices {
		outcome, err := s.reconciler.Reconcile(ctx, inv.ID.String(), nil)
		if err != nil {
			s.logger.Error("sweep reconciliation failed", "invoice_id", inv.ID, "error", err)
			continue
		}
		if outcome.Confirmed && !outcome.AlreadyPaid {
			s.logger.Info("sweep confirmed payment",
				"invoice_id", inv.ID,
				"source", outcome.Source,
			)
		}
	}
}
