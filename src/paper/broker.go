package paper

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/connectors"
	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/risk"
)

// Broker is the subset of the broker REST client the engine needs.
type Broker interface {
	PlaceOrder(ctx context.Context, req connectors.BrokerOrderRequest) (*connectors.BrokerOrder, error)
	CancelOrder(ctx context.Context, externalID string) (*connectors.BrokerOrder, error)
	OrderStatus(ctx context.Context, externalID string) (*connectors.BrokerOrder, error)
	LotSize(ctx context.Context, symbol string) (int64, error)
}

// Syncer is implemented by traders whose orders fill asynchronously.
type Syncer interface {
	SyncOpen(ctx context.Context) (int, error)
}

// BrokerEngine routes orders to the broker's paper account. Risk checks run
// locally first, then orders rest as NEW until SyncOrder sees the broker fill them.
type BrokerEngine struct {
	*ledger
	broker Broker
}

func NewBrokerEngine(db *gorm.DB, prices PriceSource, broker Broker, cfg Config, log *logger.Entry) *BrokerEngine {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &BrokerEngine{
		ledger: newLedger(db, prices, cfg, log.WithField("component", "broker_engine")),
		broker: broker,
	}
}

// pending is what open orders have already committed.
type pending struct {
	buyValue  decimal.Decimal
	buyBySym  map[string]decimal.Decimal
	sellBySym map[string]int64
}

// loadPending values resting buys at the price a fill would book them at,
// falling back to the limit when the symbol has no mark.
func (e *BrokerEngine) loadPending(ctx context.Context, r repos, marks map[string]decimal.Decimal) (*pending, error) {
	open, err := r.orders.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	p := &pending{
		buyValue:  decimal.Zero,
		buyBySym:  make(map[string]decimal.Decimal),
		sellBySym: make(map[string]int64),
	}
	for _, o := range open {
		if o.Side == model.OrderSideSell {
			p.sellBySym[o.Symbol] += o.Remaining()
			continue
		}
		price := o.Price
		if ref, ok := marks[o.Symbol]; ok {
			price = e.buyPrice(o.Price, ref)
		}
		v := price.Mul(decimal.NewFromInt(o.Remaining()))
		p.buyValue = p.buyValue.Add(v)
		p.buyBySym[o.Symbol] = p.buyBySym[o.Symbol].Add(v)
	}
	return p, nil
}

func (e *BrokerEngine) lotSize(ctx context.Context, symbol string) int64 {
	lot, err := e.broker.LotSize(ctx, symbol)
	if err != nil || lot <= 0 {
		if err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Warn("lot size lookup failed, using default")
		}
		return risk.DefaultLotSize
	}
	return lot
}

// PlaceOrder risk-checks and records the order as NEW, then submits it.
// Broker failures mark the order REJECTED and return ErrBrokerRejected.
func (e *BrokerEngine) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	req, err := normalize(req, e.cfg.Market)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	lot := e.lotSize(ctx, req.Symbol)
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
		res, rejected, err = e.prepare(ctx, r, b, newOrder(req, model.OrderSourceManual, nil), lot)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return res, rejected
	}
	return e.submit(ctx, res, marks)
}

// ExecuteSignal claims the signal and records its order in one transaction, then submits it.
func (e *BrokerEngine) ExecuteSignal(ctx context.Context, signalID uint) (*OrderResult, bool, error) {
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

	lot := e.lotSize(ctx, sig.Symbol)
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

		req := e.signalRequest(sig, b, lot)
		res, rejected, err = e.prepare(ctx, r, b, newOrder(req, model.OrderSourceSignal, &sig.ID), lot)
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
	if rejected != nil {
		return res, true, rejected
	}

	res, err = e.submit(ctx, res, marks)
	return res, true, err
}

// prepare applies the risk pre-check net of open orders and stores the order as NEW.
func (e *BrokerEngine) prepare(ctx context.Context, r repos, b *book, order *model.Order, lot int64) (*OrderResult, error, error) {
	ref, ok := b.marks[order.Symbol]
	if !ok {
		return e.reject(ctx, r, order, risk.CapNone, ErrNoPriceData)
	}
	if order.OrderType == model.OrderTypeMarket {
		order.Price = e.marketPrice(order.Side, ref)
	}

	pend, err := e.loadPending(ctx, r, b.marks)
	if err != nil {
		return nil, nil, err
	}

	var binding risk.Cap
	var qty int64

	if order.Side == model.OrderSideBuy {
		pf := e.buyPortfolio(b, order.Symbol)
		pf.Equity = pf.Equity.Add(pend.buyValue)
		pf.Cash = pf.Cash.Sub(pend.buyValue)
		pf.PositionValue = pf.PositionValue.Add(pend.buyBySym[order.Symbol])
		caps := e.sizeBuy(pf, e.buyPrice(order.Price, ref), ref)

		var allowed int64
		allowed, binding = caps.Allow(order.RequestedQuantity)
		if allowed <= 0 {
			return e.reject(ctx, r, order, binding, &RiskLimitError{Cap: binding, Requested: order.RequestedQuantity})
		}

		qty = risk.FloorToLot(allowed, lot)
		if qty <= 0 {
			return e.reject(ctx, r, order, risk.CapLot, &RiskLimitError{Cap: risk.CapLot, Requested: order.RequestedQuantity, Allowed: allowed})
		}
		if qty < allowed {
			binding = risk.CapLot
		}
	} else {
		held := int64(0)
		if p, ok := b.positions[order.Symbol]; ok {
			held = p.Quantity
		}
		free := held - pend.sellBySym[order.Symbol]
		if free <= 0 {
			return e.reject(ctx, r, order, risk.CapNone, ErrNoPosition)
		}
		qty = order.RequestedQuantity
		if qty > free {
			qty = free
		}
	}

	order.Quantity = qty
	order.BindingCap = string(binding)
	order.ClientOrderID = uuid.NewString()
	if err := r.orders.CreateWithAutoLog(ctx, order, "submitted to broker"); err != nil {
		return nil, nil, err
	}
	return &OrderResult{Order: *order, Binding: binding}, nil, nil
}

// submit sends a prepared order and settles whatever the broker filled immediately.
func (e *BrokerEngine) submit(ctx context.Context, res *OrderResult, marks map[string]decimal.Decimal) (*OrderResult, error) {
	order := res.Order

	price := decimal.Zero
	if order.OrderType == model.OrderTypeLimit {
		price = order.Price
	}
	bo, err := e.broker.PlaceOrder(ctx, connectors.BrokerOrderRequest{
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Market:        order.Market,
		Side:          order.Side,
		OrderType:     order.OrderType,
		Quantity:      order.Quantity,
		Price:         price,
	})
	if err != nil {
		order.Status = model.OrderStatusRejected
		order.Reason = err.Error()
		if serr := repository.NewOrderRepository(e.db).SaveWithAutoLog(ctx, &order, err.Error()); serr != nil {
			return nil, serr
		}
		e.logger.WithFields(logger.Fields{
			"order_id": order.ID,
			"symbol":   order.Symbol,
		}).WithError(err).Warn("broker rejected order")

		res.Order = order
		return res, fmt.Errorf("%w: %v", ErrBrokerRejected, err)
	}

	if bo.OrderID != "" {
		order.ExternalOrderID = &bo.OrderID
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := e.repos(tx)
		b, err := e.loadBook(ctx, r, marks)
		if err != nil {
			return err
		}
		return e.settle(ctx, r, b, &order, bo)
	})
	if err != nil {
		return nil, err
	}

	res.Order = order
	return res, nil
}

// SyncOrder pulls the broker's view of one order and books any new fills.
func (e *BrokerEngine) SyncOrder(ctx context.Context, id uint) (*model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncOrder(ctx, id)
}

// SyncOpen reconciles every open order that reached the broker and returns how many changed.
func (e *BrokerEngine) SyncOpen(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	open, err := repository.NewOrderRepository(e.db).FindOpen(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, o := range open {
		if o.ExternalOrderID == nil {
			continue
		}
		synced, err := e.syncOrder(ctx, o.ID)
		if err != nil {
			e.logger.WithError(err).WithField("order_id", o.ID).Error("order sync failed")
			continue
		}
		if synced.Status != o.Status || synced.FilledQuantity != o.FilledQuantity {
			changed++
		}
	}
	return changed, nil
}

func (e *BrokerEngine) syncOrder(ctx context.Context, id uint) (*model.Order, error) {
	order, err := e.GetOrderStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsOpen() || order.ExternalOrderID == nil {
		return order, nil
	}

	bo, err := e.broker.OrderStatus(ctx, *order.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	if bo.FilledQuantity == order.FilledQuantity && brokerStatus(bo.Status, order) == order.Status {
		return order, nil
	}
	return e.apply(ctx, order, bo)
}

func (e *BrokerEngine) apply(ctx context.Context, order *model.Order, bo *connectors.BrokerOrder) (*model.Order, error) {
	marks, err := e.marks(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := e.repos(tx)
		b, err := e.loadBook(ctx, r, marks)
		if err != nil {
			return err
		}
		return e.settle(ctx, r, b, order, bo)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels at the broker, books fills that happened first, and
// closes the order locally.
func (e *BrokerEngine) CancelOrder(ctx context.Context, id uint) (*model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.GetOrderStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsOpen() {
		return order, ErrOrderNotCancellable
	}

	if order.ExternalOrderID == nil {
		order.Status = model.OrderStatusCancelled
		if err := repository.NewOrderRepository(e.db).SaveWithAutoLog(ctx, order, "cancelled before submission"); err != nil {
			return nil, err
		}
		return order, nil
	}

	bo, err := e.broker.CancelOrder(ctx, *order.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	if bo.Status == connectors.BrokerStatusNew || bo.Status == connectors.BrokerStatusPartiallyFilled {
		bo.Status = connectors.BrokerStatusCancelled
	}
	return e.apply(ctx, order, bo)
}

// settle books the fill delta between the broker's report and the stored order,
// then persists the order with the broker's status.
func (e *BrokerEngine) settle(ctx context.Context, r repos, b *book, order *model.Order, bo *connectors.BrokerOrder) error {
	filled := bo.FilledQuantity
	if filled > order.Quantity {
		filled = order.Quantity
	}
	delta := filled - order.FilledQuantity

	if delta > 0 {
		price := deltaPrice(order.AvgFillPrice, order.FilledQuantity, bo.AvgFillPrice, filled)

		p, err := e.position(ctx, r, b, order.Symbol, order.Market)
		if err != nil {
			return err
		}
		if order.Side == model.OrderSideBuy {
			e.applyBuy(b, p, delta, price)
		} else {
			if delta > p.Quantity {
				e.logger.WithFields(logger.Fields{
					"order_id": order.ID,
					"symbol":   order.Symbol,
					"reported": delta,
					"held":     p.Quantity,
				}).Warn("broker sold more than held, clamping")
				delta = p.Quantity
				filled = order.FilledQuantity + delta
			}
			e.applySell(b, p, delta, price)
		}
		if err := r.positions.Save(ctx, p); err != nil {
			return err
		}

		order.FilledQuantity = filled
		order.AvgFillPrice = bo.AvgFillPrice
	}

	prev := order.Status
	order.Status = brokerStatus(bo.Status, order)
	if order.Status == model.OrderStatusFilled && order.ExecutedAt == nil {
		now := e.now()
		order.ExecutedAt = &now
	}
	if bo.Reason != "" {
		order.Reason = bo.Reason
	}

	reason := fmt.Sprintf("broker %s", bo.Status)
	if delta <= 0 && prev == order.Status {
		reason = "broker acknowledged"
	}
	if err := r.orders.SaveWithAutoLog(ctx, order, reason); err != nil {
		return err
	}

	if delta > 0 {
		if _, err := e.appendSnapshot(ctx, r, b, model.SnapshotReasonFill, &order.ID); err != nil {
			return err
		}
		e.logger.WithFields(logger.Fields{
			"order_id": order.ID,
			"symbol":   order.Symbol,
			"side":     order.Side,
			"delta":    delta,
			"filled":   order.FilledQuantity,
			"status":   order.Status,
			"cash":     b.cash.String(),
		}).Info("broker fill booked")
	}
	return nil
}

// deltaPrice is the average price of the newly filled quantity.
func deltaPrice(prevAvg decimal.Decimal, prevQty int64, avg decimal.Decimal, qty int64) decimal.Decimal {
	delta := qty - prevQty
	if prevQty <= 0 || delta <= 0 {
		return avg
	}
	px := avg.Mul(decimal.NewFromInt(qty)).
		Sub(prevAvg.Mul(decimal.NewFromInt(prevQty))).
		Div(decimal.NewFromInt(delta))
	if !px.IsPositive() {
		return avg
	}
	return px
}

func brokerStatus(status string, order *model.Order) string {
	switch status {
	case connectors.BrokerStatusFilled:
		return model.OrderStatusFilled
	case connectors.BrokerStatusCancelled:
		return model.OrderStatusCancelled
	case connectors.BrokerStatusRejected:
		return model.OrderStatusRejected
	case connectors.BrokerStatusPartiallyFilled:
		return model.OrderStatusPartiallyFilled
	}
	if order.FilledQuantity > 0 && order.FilledQuantity < order.Quantity {
		return model.OrderStatusPartiallyFilled
	}
	if order.FilledQuantity > 0 && order.FilledQuantity == order.Quantity {
		return model.OrderStatusFilled
	}
	return model.OrderStatusNew
}
