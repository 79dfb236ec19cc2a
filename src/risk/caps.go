package risk

import (
	"github.com/shopspring/decimal"
)

// Cap names the limit that bound a buy quantity.
type Cap string

const (
	CapNone        Cap = ""
	CapPerPosition Cap = "per_position"
	CapGross       Cap = "gross"
	CapCash        Cap = "cash"
	CapLot         Cap = "lot"
)

// DefaultLotSize is used when the venue does not report a board lot.
const DefaultLotSize int64 = 100

// Limits are fractions of total portfolio value.
type Limits struct {
	MaxPerPosition decimal.Decimal
	MaxGross       decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		MaxPerPosition: decimal.NewFromFloat(0.05),
		MaxGross:       decimal.NewFromFloat(0.80),
	}
}

// Portfolio is the account state a buy is sized against.
type Portfolio struct {
	Total         decimal.Decimal // cash + equity
	Equity        decimal.Decimal // market value of every holding
	Cash          decimal.Decimal // cash free for new buys
	PositionValue decimal.Decimal // market value already held in the symbol being bought
}

// Caps holds the maximum whole quantity each limit allows.
type Caps struct {
	PerPosition int64
	Gross       int64
	Cash        int64
}

// BuyCaps sizes every limit at price. The per-position budget subtracts what is
// already held so adding to a position can never push it past the cap.
func BuyCaps(l Limits, p Portfolio, price decimal.Decimal) Caps {
	if !price.IsPositive() {
		return Caps{}
	}

	perPosition := p.Total.Mul(l.MaxPerPosition).Sub(p.PositionValue)
	gross := p.Total.Mul(l.MaxGross).Sub(p.Equity)

	return Caps{
		PerPosition: quantityFor(perPosition, price),
		Gross:       quantityFor(gross, price),
		Cash:        quantityFor(p.Cash, price),
	}
}

func quantityFor(budget, price decimal.Decimal) int64 {
	if !budget.IsPositive() {
		return 0
	}
	return budget.Div(price).Floor().IntPart()
}

// Allow clamps requested to the smallest cap. On ties the earlier cap in
// per_position, gross, cash order is reported. CapNone means nothing bound.
func (c Caps) Allow(requested int64) (int64, Cap) {
	allowed, binding := requested, CapNone

	limits := []struct {
		cap Cap
		qty int64
	}{
		{CapPerPosition, c.PerPosition},
		{CapGross, c.Gross},
		{CapCash, c.Cash},
	}
	for _, lim := range limits {
		if lim.qty < allowed {
			allowed, binding = lim.qty, lim.cap
		}
	}

	if allowed < 0 {
		allowed = 0
	}
	return allowed, binding
}

// FloorToLot rounds qty down to a whole number of lots.
func FloorToLot(qty, lot int64) int64 {
	if lot <= 0 {
		lot = DefaultLotSize
	}
	if qty <= 0 {
		return 0
	}
	return qty / lot * lot
}
