package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadSample is one effective-spread observation for a notional size.
type SpreadSample struct {
	Size      decimal.Decimal `json:"size"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// SpreadStats summarizes the rolling window of samples for one size.
type SpreadStats struct {
	Size   decimal.Decimal `json:"size"`
	Avg    decimal.Decimal `json:"avg"`
	Median decimal.Decimal `json:"median"`
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
	Count  int             `json:"count"`
}
