package event

import (
	"time"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
)

// Type tags the feed event variants.
type Type int

const (
	TypeBookUpdate Type = iota + 1
	TypeTrade
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case TypeBookUpdate:
		return "BOOK_UPDATE"
	case TypeTrade:
		return "TRADE"
	default:
		return "UNKNOWN"
	}
}

// Event is the tagged variant the feed worker hands to the engine.
// Required fields are validated by the worker before ingestion.
type Event interface {
	Kind() Type
	GetSeq() uint64
}

// BookUpdate carries price levels for both sides. IsSnapshot means the
// levels replace the whole book; otherwise each (price, qty) pair is a
// diff where qty 0 removes the level.
type BookUpdate struct {
	Seq        uint64
	Bids       []domain.PriceLevel
	Asks       []domain.PriceLevel
	IsSnapshot bool
	Ts         time.Time
}

func (e *BookUpdate) Kind() Type     { return TypeBookUpdate }
func (e *BookUpdate) GetSeq() uint64 { return e.Seq }

// Trade carries a single market trade with its aggressor side.
type Trade struct {
	Seq       uint64
	ID        string
	Price     decimal.Decimal
	Qty       decimal.Decimal
	Aggressor domain.Side
	Ts        time.Time
}

func (e *Trade) Kind() Type     { return TypeTrade }
func (e *Trade) GetSeq() uint64 { return e.Seq }

// AsDomain converts the feed event to the immutable domain trade.
func (e *Trade) AsDomain() domain.Trade {
	return domain.Trade{
		ID:        e.ID,
		Price:     e.Price,
		Qty:       e.Qty,
		Aggressor: e.Aggressor,
		Timestamp: e.Ts,
	}
}
