package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusRejected        = "REJECTED"

	OrderSourceManual = "manual"
	OrderSourceSignal = "signal"
)

// Order is a paper order. Quantity is what the engine accepted after risk
// caps; RequestedQuantity is what the caller asked for.
type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Symbol            string          `gorm:"size:32;not null;index" json:"symbol"`
	Market            string          `gorm:"size:10" json:"market"`
	Side              string          `gorm:"size:4;not null" json:"side"`
	OrderType         string          `gorm:"size:10;not null" json:"order_type"`
	Price             decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"price"`
	RequestedQuantity int64           `json:"requested_quantity"`
	Quantity          int64           `json:"quantity"`
	Status            string          `gorm:"size:20;not null;index" json:"status"`
	FilledQuantity    int64           `gorm:"not null;default:0" json:"filled_quantity"`
	AvgFillPrice      decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"avg_fill_price"`
	ExternalOrderID   *string         `gorm:"size:64;index" json:"external_order_id,omitempty"`
	ClientOrderID     string          `gorm:"size:64" json:"client_order_id,omitempty"`
	SignalID          *uint           `gorm:"index" json:"signal_id,omitempty"`
	Source            string          `gorm:"size:20" json:"source"`
	BindingCap        string          `gorm:"size:20" json:"binding_cap,omitempty"`
	Reason            string          `gorm:"type:text" json:"reason,omitempty"`
	ExecutedAt        *time.Time      `json:"executed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Logs []OrderLog `gorm:"foreignKey:OrderID" json:"order_logs,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsOpen reports whether the order can still receive fills.
func (o Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// Remaining is the unfilled part of an open order.
func (o Order) Remaining() int64 {
	if !o.IsOpen() {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

// OrderLog records each status transition of an order.
type OrderLog struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"index" json:"order_id"`
	Symbol         string          `gorm:"size:32" json:"symbol"`
	Side           string          `gorm:"size:4" json:"side"`
	Status         string          `gorm:"size:20;not null" json:"status"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `gorm:"type:double precision;not null;default:0" json:"avg_fill_price"`
	Reason         string          `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (OrderLog) TableName() string {
	return "order_logs"
}

// NewOrderLog snapshots the order's current state.
func NewOrderLog(o *Order, reason string, at time.Time) *OrderLog {
	return &OrderLog{
		OrderID:        o.ID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Status:         o.Status,
		FilledQuantity: o.FilledQuantity,
		AvgFillPrice:   o.AvgFillPrice,
		Reason:         reason,
		CreatedAt:      at,
	}
}
