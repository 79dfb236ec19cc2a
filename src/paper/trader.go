package paper

import (
	"context"

	"github.com/shopspring/decimal"

	"quantsystem/src/model"
	"quantsystem/src/risk"
)

// PriceSource returns the latest reference price. ok is false when the symbol has none.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)
}

// Trader is implemented by the local engine and the broker-backed engine. Both
// persist rejected orders and return the order alongside the rejection error.
type Trader interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	GetPositions(ctx context.Context) ([]model.Position, error)
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	GetOrderStatus(ctx context.Context, id uint) (*model.Order, error)
	CancelOrder(ctx context.Context, id uint) (*model.Order, error)
	ExecuteSignal(ctx context.Context, signalID uint) (*OrderResult, bool, error)
	TakeSnapshot(ctx context.Context) (*model.PortfolioSnapshot, error)
}

type OrderRequest struct {
	Symbol    string
	Market    string
	Side      string
	OrderType string
	Price     decimal.Decimal // limit price, ignored for MARKET
	Quantity  int64
	Reason    string
}

type OrderResult struct {
	Order   model.Order `json:"order"`
	Binding risk.Cap    `json:"binding_cap,omitempty"` // cap that reduced or rejected the quantity, CapNone otherwise
}

type AccountInfo struct {
	Cash       decimal.Decimal `json:"cash"`
	Equity     decimal.Decimal `json:"equity"`
	TotalValue decimal.Decimal `json:"total_value"`
	Positions  int             `json:"positions"`
}
