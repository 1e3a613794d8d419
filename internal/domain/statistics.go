package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPaymentStatistics is the per-UTC-day rollup of confirmed payments.
// Counters only ever grow within a day; updates are additive so concurrent
// reconciliations never clobber each other.
type DailyPaymentStatistics struct {
	Day                time.Time
	SuccessfulPayments int64
	TotalAmount        decimal.Decimal
	WaveCount          int64
	WaveAmount         decimal.Decimal
	OrangeMoneyCount   int64
	OrangeMoneyAmount  decimal.Decimal
	FreeMoneyCount     int64
	FreeMoneyAmount    decimal.Decimal
	AutoMarkedCount    int64
}

// StatisticsDelta is one confirmed payment's contribution to the daily rollup.
type StatisticsDelta struct {
	Method     PaymentMethod
	Amount     decimal.Decimal
	AutoMarked bool
}
