package transcription

import (
	"github.com/shopspring/decimal"
)

// monetaryScale is the number of fractional digits kept on minutes and
// monetary amounts. Decimal arithmetic avoids float drift on micro-dollar
// prices.
const monetaryScale = 6

var secondsPerMinute = decimal.NewFromInt(60)

// Estimate is the priced outcome of one transcription: billable minutes and
// cost in USD and BRL. Never persisted directly; it is folded into a usage
// record.
type Estimate struct {
	MinutesBilled decimal.Decimal
	USD           decimal.Decimal
	BRL           decimal.Decimal
}

// Estimator turns audio durations into billable minutes and cost using the
// configured per-minute price and FX rate.
type Estimator struct {
	pricePerMinuteUSD decimal.Decimal
	fxUSDToBRL        decimal.Decimal
}

// NewEstimator creates an estimator from the configured pricing constants.
func NewEstimator(pricePerMinuteUSD, fxUSDToBRL decimal.Decimal) *Estimator {
	return &Estimator{
		pricePerMinuteUSD: pricePerMinuteUSD,
		fxUSDToBRL:        fxUSDToBRL,
	}
}

// EstimateFromSeconds prices a provider-reported duration. When the
// provider reported no duration (zero or negative), billing falls back to a
// fixed one-minute minimum.
func (e *Estimator) EstimateFromSeconds(seconds float64) Estimate {
	if seconds <= 0 {
		return e.EstimateFromMinutes(decimal.NewFromInt(1))
	}
	minutes := decimal.NewFromFloat(seconds).DivRound(secondsPerMinute, monetaryScale)
	return e.EstimateFromMinutes(minutes)
}

// EstimateFromMinutes prices a precomputed number of billable minutes.
// Fractional minutes are billed as-is, rounded half-up to six places.
func (e *Estimator) EstimateFromMinutes(minutes decimal.Decimal) Estimate {
	usd := minutes.Mul(e.pricePerMinuteUSD).Round(monetaryScale)
	brl := usd.Mul(e.fxUSDToBRL).Round(monetaryScale)
	return Estimate{
		MinutesBilled: minutes.Round(monetaryScale),
		USD:           usd,
		BRL:           brl,
	}
}

// ZeroCost builds a free estimate that still records the billable minutes,
// used by the local providers so every transcription leaves a usage record.
func ZeroCost(minutes decimal.Decimal) Estimate {
	return Estimate{
		MinutesBilled: minutes.Round(monetaryScale),
		USD:           decimal.Zero,
		BRL:           decimal.Zero,
	}
}
