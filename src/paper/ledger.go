package paper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/risk"
)

// ledger is the state shared by both engines: cash, positions, orders and
// snapshots, plus the lock that serializes check-then-act sequences.
type ledger struct {
	mu sync.Mutex

	db       *gorm.DB
	prices   PriceSource
	cfg      Config
	limits   risk.Limits
	slippage decimal.Decimal
	logger   *logger.Entry
	now      func() time.Time
}

func newLedger(db *gorm.DB, prices PriceSource, cfg Config, log *logger.Entry) *ledger {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &ledger{
		db:       db,
		prices:   prices,
		cfg:      cfg,
		limits:   cfg.limits(),
		slippage: decimal.NewFromFloat(cfg.Slippage),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type repos struct {
	orders    *repository.OrderRepository
	positions *repository.PositionRepository
	snapshots *repository.SnapshotRepository
	signals   *repository.TradingSignalRepository
}

func (l *ledger) repos(db *gorm.DB) repos {
	return repos{
		orders:    repository.NewOrderRepository(db),
		positions: repository.NewPositionRepository(db),
		snapshots: repository.NewSnapshotRepository(db),
		signals:   repository.NewTradingSignalRepository(db),
	}
}

// book is the account as seen inside one transaction.
type book struct {
	cash      decimal.Decimal
	positions map[string]*model.Position
	marks     map[string]decimal.Decimal
}

func (b *book) mark(p *model.Position) decimal.Decimal {
	if m, ok := b.marks[p.Symbol]; ok {
		return m
	}
	return p.AvgPrice
}

func (b *book) positionValue(symbol string) decimal.Decimal {
	p, ok := b.positions[symbol]
	if !ok || p.Quantity <= 0 {
		return decimal.Zero
	}
	return b.mark(p).Mul(decimal.NewFromInt(p.Quantity))
}

// equity marks every holding to its latest price, falling back to cost.
func (b *book) equity() decimal.Decimal {
	total := decimal.Zero
	for _, p := range b.positions {
		if p.Quantity > 0 {
			total = total.Add(b.mark(p).Mul(decimal.NewFromInt(p.Quantity)))
		}
	}
	return total
}

func (b *book) total() decimal.Decimal {
	return b.cash.Add(b.equity())
}

func (b *book) openCount() int {
	n := 0
	for _, p := range b.positions {
		if p.Quantity > 0 {
			n++
		}
	}
	return n
}

// marks prices every held symbol plus extra. Prices are fetched before any
// transaction opens so a single-connection database never waits on itself.
func (l *ledger) marks(ctx context.Context, extra ...string) (map[string]decimal.Decimal, error) {
	held, err := repository.NewPositionRepository(l.db).FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(held)+len(extra))
	for _, p := range held {
		symbols = append(symbols, p.Symbol)
	}
	symbols = append(symbols, extra...)

	out := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		if _, done := out[sym]; done {
			continue
		}
		price, ok, err := l.prices.LatestPrice(ctx, sym)
		if err != nil {
			return nil, err
		}
		if ok && price.IsPositive() {
			out[sym] = price
		}
	}
	return out, nil
}

// cash is the latest snapshot's balance, or the initial capital on a fresh account.
func (l *ledger) cash(ctx context.Context, r repos) (decimal.Decimal, error) {
	snap, err := r.snapshots.Latest(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if snap == nil {
		return decimal.NewFromFloat(l.cfg.InitialCash), nil
	}
	return snap.Cash, nil
}

func (l *ledger) loadBook(ctx context.Context, r repos, marks map[string]decimal.Decimal) (*book, error) {
	cash, err := l.cash(ctx, r)
	if err != nil {
		return nil, err
	}

	held, err := r.positions.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	b := &book{cash: cash, positions: make(map[string]*model.Position, len(held)), marks: marks}
	for i := range held {
		b.positions[held[i].Symbol] = &held[i]
	}
	return b, nil
}

func (l *ledger) appendSnapshot(ctx context.Context, r repos, b *book, reason string, orderID *uint) (*model.PortfolioSnapshot, error) {
	equity := b.equity()
	snap := &model.PortfolioSnapshot{
		TakenAt:    l.now(),
		Cash:       b.cash,
		Equity:     equity,
		TotalValue: b.cash.Add(equity),
		Reason:     reason,
		OrderID:    orderID,
	}
	if err := r.snapshots.Append(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// position returns the symbol's row, loading a flat one when it was never held or is closed.
func (l *ledger) position(ctx context.Context, r repos, b *book, symbol, market string) (*model.Position, error) {
	if p, ok := b.positions[symbol]; ok {
		return p, nil
	}
	p, err := r.positions.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.Position{Symbol: symbol, Market: market}
	}
	b.positions[symbol] = p
	return p, nil
}

// applyBuy blends qty at price into the position and debits cash.
func (l *ledger) applyBuy(b *book, p *model.Position, qty int64, price decimal.Decimal) {
	q := decimal.NewFromInt(qty)
	b.cash = b.cash.Sub(price.Mul(q))

	now := l.now()
	if p.Quantity <= 0 {
		p.Quantity = 0
		p.AvgPrice = decimal.Zero
		p.HighWaterMark = decimal.Zero
		p.EntryDate = &now
	}

	held := decimal.NewFromInt(p.Quantity)
	p.AvgPrice = p.AvgPrice.Mul(held).Add(price.Mul(q)).Div(held.Add(q))
	p.Quantity += qty
	p.HighWaterMark = decimal.Max(p.HighWaterMark, p.AvgPrice)
	p.LastUpdated = now
}

// applySell reduces the position by qty at price and credits cash. The average cost is untouched.
func (l *ledger) applySell(b *book, p *model.Position, qty int64, price decimal.Decimal) {
	b.cash = b.cash.Add(price.Mul(decimal.NewFromInt(qty)))

	p.Quantity -= qty
	if p.Quantity <= 0 {
		p.Quantity = 0
		p.HighWaterMark = decimal.Zero
		p.EntryDate = nil
	}
	p.LastUpdated = l.now()
}

func (l *ledger) buyPrice(limit, ref decimal.Decimal) decimal.Decimal {
	return decimal.Min(limit, ref.Mul(decimal.NewFromInt(1).Add(l.slippage)))
}

func (l *ledger) sellPrice(limit, ref decimal.Decimal) decimal.Decimal {
	return decimal.Max(limit, ref.Mul(decimal.NewFromInt(1).Sub(l.slippage)))
}

// marketPrice is the price a MARKET order is treated as having asked for.
func (l *ledger) marketPrice(side string, ref decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == model.OrderSideBuy {
		return ref.Mul(one.Add(l.slippage))
	}
	return ref.Mul(one.Sub(l.slippage))
}

func (l *ledger) buyPortfolio(b *book, symbol string) risk.Portfolio {
	return risk.Portfolio{
		Total:         b.total(),
		Equity:        b.equity(),
		Cash:          b.cash,
		PositionValue: b.positionValue(symbol),
	}
}

// sizeBuy sizes a buy at the worse of fill and reference price, so the post-trade
// position value measured at the reference mark stays inside the caps. Both
// engines size through here.
func (l *ledger) sizeBuy(p risk.Portfolio, fill, ref decimal.Decimal) risk.Caps {
	return risk.BuyCaps(l.limits, p, decimal.Max(fill, ref))
}

func (l *ledger) buyCaps(b *book, symbol string, fill, ref decimal.Decimal) risk.Caps {
	return l.sizeBuy(l.buyPortfolio(b, symbol), fill, ref)
}

// normalize checks caller input. Failures here are not persisted.
func normalize(req OrderRequest, defaultMarket string) (OrderRequest, error) {
	req.Symbol = strings.TrimSpace(req.Symbol)
	req.Side = strings.ToUpper(strings.TrimSpace(req.Side))
	req.OrderType = strings.ToUpper(strings.TrimSpace(req.OrderType))
	if req.OrderType == "" {
		req.OrderType = model.OrderTypeLimit
	}
	if req.Market == "" {
		req.Market = defaultMarket
	}

	switch {
	case req.Symbol == "":
		return req, ErrInvalidSymbol
	case req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell:
		return req, ErrInvalidSide
	case req.OrderType != model.OrderTypeLimit && req.OrderType != model.OrderTypeMarket:
		return req, ErrInvalidOrderType
	case req.Quantity <= 0:
		return req, ErrInvalidQuantity
	case req.OrderType == model.OrderTypeLimit && !req.Price.IsPositive():
		return req, ErrInvalidPrice
	}
	return req, nil
}

func newOrder(req OrderRequest, source string, signalID *uint) *model.Order {
	return &model.Order{
		Symbol:            req.Symbol,
		Market:            req.Market,
		Side:              req.Side,
		OrderType:         req.OrderType,
		Price:             req.Price,
		RequestedQuantity: req.Quantity,
		Quantity:          req.Quantity,
		Status:            model.OrderStatusNew,
		SignalID:          signalID,
		Source:            source,
		Reason:            req.Reason,
	}
}

// reject persists the order as REJECTED. The returned error is the business
// rejection for the caller; a non-nil third value means persistence failed.
func (l *ledger) reject(ctx context.Context, r repos, order *model.Order, binding risk.Cap, cause error) (*OrderResult, error, error) {
	order.Status = model.OrderStatusRejected
	order.Quantity = 0
	order.BindingCap = string(binding)
	order.Reason = cause.Error()

	if err := r.orders.CreateWithAutoLog(ctx, order, cause.Error()); err != nil {
		return nil, nil, err
	}

	l.logger.WithFields(logger.Fields{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"binding":  binding,
	}).WithError(cause).Warn("order rejected")

	return &OrderResult{Order: *order, Binding: binding}, cause, nil
}

// signalRequest turns a claimed signal into a MARKET order. Buys are sized to the
// per-position room rounded down to whole lots, at least one lot so a full book
// is rejected with its binding cap. Sells close the whole position.
func (l *ledger) signalRequest(sig *model.TradingSignal, b *book, lot int64) OrderRequest {
	market := sig.Market
	if market == "" {
		market = l.cfg.Market
	}
	req := OrderRequest{
		Symbol:    sig.Symbol,
		Market:    market,
		Side:      sig.SignalType,
		OrderType: model.OrderTypeMarket,
		Reason:    sig.Reason,
	}

	if sig.SignalType == model.SignalTypeSell {
		if p, ok := b.positions[sig.Symbol]; ok {
			req.Quantity = p.Quantity
		}
		return req
	}

	ref, ok := b.marks[sig.Symbol]
	if !ok {
		req.Quantity = lot
		return req
	}
	fill := l.marketPrice(model.OrderSideBuy, ref)
	room := risk.FloorToLot(l.buyCaps(b, sig.Symbol, fill, ref).PerPosition, lot)
	if room <= 0 {
		room = lot
	}
	req.Quantity = room
	return req
}

func (l *ledger) GetPositions(ctx context.Context) ([]model.Position, error) {
	return repository.NewPositionRepository(l.db).FindOpen(ctx)
}

func (l *ledger) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	marks, err := l.marks(ctx)
	if err != nil {
		return nil, err
	}
	b, err := l.loadBook(ctx, l.repos(l.db), marks)
	if err != nil {
		return nil, err
	}

	equity := b.equity()
	return &AccountInfo{
		Cash:       b.cash,
		Equity:     equity,
		TotalValue: b.cash.Add(equity),
		Positions:  b.openCount(),
	}, nil
}

func (l *ledger) GetOrderStatus(ctx context.Context, id uint) (*model.Order, error) {
	order, err := repository.NewOrderRepository(l.db).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// TakeSnapshot records the current valuation, used by the scheduler tick.
func (l *ledger) TakeSnapshot(ctx context.Context) (*model.PortfolioSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	marks, err := l.marks(ctx)
	if err != nil {
		return nil, err
	}

	var snap *model.PortfolioSnapshot
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := l.repos(tx)
		b, err := l.loadBook(ctx, r, marks)
		if err != nil {
			return err
		}
		snap, err = l.appendSnapshot(ctx, r, b, model.SnapshotReasonTick, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
