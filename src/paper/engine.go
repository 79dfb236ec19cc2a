package paper

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/risk"
)

// Engine is the local paper trader. Orders settle instantly against the
// reference price inside one database transaction.
type Engine struct {
	*ledger
}

func NewEngine(db *gorm.DB, prices PriceSource, cfg Config, log *logger.Entry) *Engine {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Engine{ledger: newLedger(db, prices, cfg, log.WithField("component", "paper_engine"))}
}

// PlaceOrder validates, risk-checks and fills the order. Input errors are returned
// without persisting anything. Business rejections persist a REJECTED order that
// is returned together with the error.
func (e *Engine) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	req, err := normalize(req, e.cfg.Market)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	marks, err := e.marks(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	var res *OrderResult
	var rejected error
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := e.repos(tx)
		b, err := e.loadBook(ctx, r, marks)
		if err != nil {
			return err
		}
		res, rejected, err = e.fill(ctx, r, b, newOrder(req, model.OrderSourceManual, nil))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, rejected
}

// ExecuteSignal claims the signal and fills its order in the same transaction.
// A signal that was already claimed is a no-op reported as executed=false.
// Rejected signals stay claimed and are never retried.
func (e *Engine) ExecuteSignal(ctx context.Context, signalID uint) (*OrderResult, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sig, err := repository.NewTradingSignalRepository(e.db).FindByID(ctx, signalID)
	if err != nil {
		return nil, false, err
	}
	if sig == nil {
		return nil, false, ErrSignalNotFound
	}
	if sig.IsExecuted {
		return nil, false, nil
	}

	marks, err := e.marks(ctx, sig.Symbol)
	if err != nil {
		return nil, false, err
	}

	var res *OrderResult
	var rejected error
	claimed := false
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := e.repos(tx)

		ok, err := r.signals.Claim(ctx, sig.ID, e.now())
		if err != nil || !ok {
			return err
		}
		claimed = true

		b, err := e.loadBook(ctx, r, marks)
		if err != nil {
			return err
		}

		req := e.signalRequest(sig, b, risk.DefaultLotSize)
		res, rejected, err = e.fill(ctx, r, b, newOrder(req, model.OrderSourceSignal, &sig.ID))
		if err != nil {
			return err
		}
		return r.signals.AttachOrder(ctx, sig.ID, res.Order.ID)
	})
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		return nil, false, nil
	}

	e.logger.WithFields(logger.Fields{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"type":      sig.SignalType,
		"order_id":  res.Order.ID,
		"status":    res.Order.Status,
	}).Info("signal executed")

	return res, true, rejected
}

// fill settles the order against the book. The first error is the business
// rejection, the second aborts the transaction.
func (e *Engine) fill(ctx context.Context, r repos, b *book, order *model.Order) (*OrderResult, error, error) {
	ref, ok := b.marks[order.Symbol]
	if !ok {
		return e.reject(ctx, r, order, risk.CapNone, ErrNoPriceData)
	}
	if order.OrderType == model.OrderTypeMarket {
		order.Price = e.marketPrice(order.Side, ref)
	}

	var binding risk.Cap
	var qty int64
	var price decimal.Decimal

	if order.Side == model.OrderSideBuy {
		price = e.buyPrice(order.Price, ref)
		caps := e.buyCaps(b, order.Symbol, price, ref)
		qty, binding = caps.Allow(order.RequestedQuantity)
		if qty <= 0 {
			return e.reject(ctx, r, order, binding, &RiskLimitError{Cap: binding, Requested: order.RequestedQuantity})
		}

		p, err := e.position(ctx, r, b, order.Symbol, order.Market)
		if err != nil {
			return nil, nil, err
		}
		e.applyBuy(b, p, qty, price)
		if err := r.positions.Save(ctx, p); err != nil {
			return nil, nil, err
		}
	} else {
		p, held := b.positions[order.Symbol]
		if !held || p.Quantity <= 0 {
			return e.reject(ctx, r, order, risk.CapNone, ErrNoPosition)
		}

		price = e.sellPrice(order.Price, ref)
		qty = order.RequestedQuantity
		if qty > p.Quantity {
			qty = p.Quantity
		}
		e.applySell(b, p, qty, price)
		if err := r.positions.Save(ctx, p); err != nil {
			return nil, nil, err
		}
	}

	now := e.now()
	order.Quantity = qty
	order.FilledQuantity = qty
	order.AvgFillPrice = price
	order.Status = model.OrderStatusFilled
	order.BindingCap = string(binding)
	order.ExecutedAt = &now
	if err := r.orders.CreateWithAutoLog(ctx, order, order.Reason); err != nil {
		return nil, nil, err
	}

	if _, err := e.appendSnapshot(ctx, r, b, model.SnapshotReasonFill, &order.ID); err != nil {
		return nil, nil, err
	}

	e.logger.WithFields(logger.Fields{
		"order_id":  order.ID,
		"symbol":    order.Symbol,
		"side":      order.Side,
		"requested": order.RequestedQuantity,
		"filled":    qty,
		"price":     price.String(),
		"binding":   binding,
		"cash":      b.cash.String(),
	}).Info("order filled")

	return &OrderResult{Order: *order, Binding: binding}, nil, nil
}

// CancelOrder always fails locally because fills are instantaneous.
func (e *Engine) CancelOrder(ctx context.Context, id uint) (*model.Order, error) {
	order, err := e.GetOrderStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return order, ErrOrderNotCancellable
}
