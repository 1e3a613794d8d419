package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sdiallo/kalpe/internal/domain"
)

type StatisticsRepository struct {
	db *sql.DB
}

func NewStatisticsRepository(db *sql.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// IncrementDaily applies one confirmed payment to the rollup for its UTC day.
// The upsert is additive on the existing row, so concurrent reconciliations
// both land; nothing here ever overwrites a counter with a stale read.
func (r *StatisticsRepository) IncrementDaily(ctx context.Context, day time.Time, delta domain.StatisticsDelta) error {
	methodCountCol, methodAmountCol, err := methodColumns(delta.Method)
	if err != nil {
		return fmt.Errorf("IncrementDaily: %w", err)
	}

	autoMarked := 0
	if delta.AutoMarked {
		autoMarked = 1
	}

	// Column names come from methodColumns, never from input.
	query := fmt.Sprintf(
		`INSERT INTO daily_payment_statistics (
			day, successful_payments, total_amount, %s, %s, auto_marked_count
		) VALUES ($1, 1, $2, 1, $2, $3)
		ON CONFLICT (day) DO UPDATE SET
			successful_payments = daily_payment_statistics.successful_payments + 1,
			total_amount = daily_payment_statistics.total_amount + EXCLUDED.total_amount,
			%s = daily_payment_statistics.%s + 1,
			%s = daily_payment_statistics.%s + EXCLUDED.%s,
			auto_marked_count = daily_payment_statistics.auto_marked_count + EXCLUDED.auto_marked_count`,
		methodCountCol, methodAmountCol,
		methodCountCol, methodCountCol,
		methodAmountCol, methodAmountCol, methodAmountCol,
	)

	if _, err := r.db.ExecContext(ctx, query, day.UTC().Truncate(24*time.Hour), delta.Amount, autoMarked); err != nil {
		return fmt.Errorf("IncrementDaily: %w", err)
	}
	return nil
}

func (r *StatisticsRepository) GetByDay(ctx context.Context, day time.Time) (*domain.DailyPaymentStatistics, error) {
	var s domain.DailyPaymentStatistics
	err := r.db.QueryRowContext(ctx,
		`SELECT day, successful_payments, total_amount,
			wave_count, wave_amount, orange_money_count, orange_money_amount,
			free_money_count, free_money_amount, auto_marked_count
		FROM daily_payment_statistics WHERE day = $1`,
		day.UTC().Truncate(24*time.Hour),
	).Scan(
		&s.Day, &s.SuccessfulPayments, &s.TotalAmount,
		&s.WaveCount, &s.WaveAmount, &s.OrangeMoneyCount, &s.OrangeMoneyAmount,
		&s.FreeMoneyCount, &s.FreeMoneyAmount, &s.AutoMarkedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetByDay: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetByDay: %w", err)
	}
	return &s, nil
}

func methodColumns(m domain.PaymentMethod) (countCol, amountCol string, err error) {
	switch m {
	case domain.PaymentMethodWave:
		return "wave_count", "wave_amount", nil
	case domain.PaymentMethodOrangeMoney:
		return "orange_money_count", "orange_money_amount", nil
	case domain.PaymentMethodFreeMoney:
		return "free_money_count", "free_money_amount", nil
	default:
		return "", "", domain.ErrUnsupportedMethod
	}
}
