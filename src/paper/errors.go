package paper

import (
	"errors"
	"fmt"

	"quantsystem/src/risk"
)

var (
	ErrNoPriceData         = errors.New("no price data")
	ErrNoPosition          = errors.New("no open position")
	ErrInvalidSide         = errors.New("invalid side, expected BUY or SELL")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidOrderType    = errors.New("invalid order type, expected LIMIT or MARKET")
	ErrInvalidPrice        = errors.New("limit price must be positive")
	ErrInvalidSymbol       = errors.New("symbol is required")
	ErrRiskLimitExceeded   = errors.New("risk limit exceeded")
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrSignalNotFound      = errors.New("trading signal not found")
	ErrBrokerRejected      = errors.New("broker rejected order")
)

// RiskLimitError reports which cap left no room for a buy.
// It matches ErrInsufficientCash when cash bound and ErrRiskLimitExceeded otherwise.
type RiskLimitError struct {
	Cap       risk.Cap
	Requested int64
	Allowed   int64
}

func (e *RiskLimitError) Error() string {
	return fmt.Sprintf("%s: %s cap allows %d of %d requested", e.sentinel(), e.Cap, e.Allowed, e.Requested)
}

func (e *RiskLimitError) sentinel() error {
	if e.Cap == risk.CapCash {
		return ErrInsufficientCash
	}
	return ErrRiskLimitExceeded
}

func (e *RiskLimitError) Is(target error) bool {
	return target == e.sentinel()
}
