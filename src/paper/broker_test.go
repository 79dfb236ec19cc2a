package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsystem/src/connectors"
	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/risk"
)

type fakeBroker struct {
	mu          sync.Mutex
	lot         int64
	placeErr    error
	fillOnPlace decimal.Decimal // zero leaves orders resting as NEW
	seq         int
	orders      map[string]*connectors.BrokerOrder
	placed      []connectors.BrokerOrderRequest
}

func newFakeBroker(lot int64) *fakeBroker {
	return &fakeBroker{lot: lot, orders: map[string]*connectors.BrokerOrder{}}
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req connectors.BrokerOrderRequest) (*connectors.BrokerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return nil, f.placeErr
	}

	f.seq++
	bo := &connectors.BrokerOrder{
		OrderID:       fmt.Sprintf("B-%d", f.seq),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        connectors.BrokerStatusNew,
		Quantity:      req.Quantity,
	}
	if f.fillOnPlace.IsPositive() {
		bo.Status = connectors.BrokerStatusFilled
		bo.FilledQuantity = req.Quantity
		bo.AvgFillPrice = f.fillOnPlace
	}
	f.orders[bo.OrderID] = bo
	cp := *bo
	return &cp, nil
}

func (f *fakeBroker) fill(id string, qty int64, avg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bo := f.orders[id]
	bo.FilledQuantity = qty
	bo.AvgFillPrice = decimal.NewFromFloat(avg)
	if qty >= bo.Quantity {
		bo.Status = connectors.BrokerStatusFilled
	} else {
		bo.Status = connectors.BrokerStatusPartiallyFilled
	}
}

func (f *fakeBroker) CancelOrder(_ context.Context, id string) (*connectors.BrokerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bo, ok := f.orders[id]
	if !ok {
		return nil, &connectors.BrokerError{Code: 11030}
	}
	if bo.Status == connectors.BrokerStatusNew || bo.Status == connectors.BrokerStatusPartiallyFilled {
		bo.Status = connectors.BrokerStatusCancelled
	}
	cp := *bo
	return &cp, nil
}

func (f *fakeBroker) OrderStatus(_ context.Context, id string) (*connectors.BrokerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bo, ok := f.orders[id]
	if !ok {
		return nil, &connectors.BrokerError{Code: 11030}
	}
	cp := *bo
	return &cp, nil
}

func (f *fakeBroker) LotSize(context.Context, string) (int64, error) {
	return f.lot, nil
}

func newTestBrokerEngine(t *testing.T, cfg Config, p *prices, b *fakeBroker) *BrokerEngine {
	t.Helper()
	return NewBrokerEngine(newTestDB(t), p, b, cfg, nullLog())
}

func TestBrokerEngineFloorsToLotAndReservesOpenOrders(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 250})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusNew, res.Order.Status)
	assert.Equal(t, int64(200), res.Order.Quantity)
	assert.Equal(t, int64(250), res.Order.RequestedQuantity)
	assert.Equal(t, risk.CapLot, res.Binding)
	assert.NotEmpty(t, res.Order.ClientOrderID)
	require.NotNil(t, res.Order.ExternalOrderID)
	assert.Equal(t, "B-1", *res.Order.ExternalOrderID)

	require.Len(t, fb.placed, 1)
	assert.Equal(t, res.Order.ClientOrderID, fb.placed[0].ClientOrderID)
	assert.Equal(t, int64(200), fb.placed[0].Quantity)

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 1000000, info.Cash, "resting orders do not move cash")

	// the resting 2,000 is counted against the per-position budget
	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(4800), res.Order.Quantity)
	assert.Equal(t, risk.CapPerPosition, res.Binding)

	fb.fill("B-1", 200, 10.02)
	changed, err := eng.SyncOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(200), positions[0].Quantity)
	assertDecimal(t, 10.02, positions[0].AvgPrice)

	info, err = eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 997996, info.Cash)
}

func TestBrokerEnginePartialFillsBookDeltas(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10.5), Quantity: 200})
	require.NoError(t, err)

	fb.fill("B-1", 100, 10)
	order, err := eng.SyncOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPartiallyFilled, order.Status)
	assert.Equal(t, int64(100), order.FilledQuantity)

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 999000, info.Cash)

	// unchanged broker state is a no-op
	order, err = eng.SyncOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), order.FilledQuantity)

	fb.fill("B-1", 200, 10.01)
	order, err = eng.SyncOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, order.Status)
	assert.NotNil(t, order.ExecutedAt)
	assertDecimal(t, 10.01, order.AvgFillPrice)

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(200), positions[0].Quantity)
	assertDecimal(t, 10.01, positions[0].AvgPrice)

	info, err = eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 997998, info.Cash)

	stored, err := repository.NewOrderRepository(eng.db).FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	// created, acknowledged with the broker id, partially filled, filled
	require.Len(t, stored.Logs, 4)
	assert.Equal(t, model.OrderStatusNew, stored.Logs[0].Status)
	assert.Equal(t, model.OrderStatusNew, stored.Logs[1].Status)
	assert.Equal(t, model.OrderStatusPartiallyFilled, stored.Logs[2].Status)
	assert.Equal(t, model.OrderStatusFilled, stored.Logs[3].Status)
}

func TestBrokerEngineBrokerErrorRejectsOrder(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	fb.placeErr = &connectors.BrokerError{Code: 11020, Msg: "closed"}
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrokerRejected))
	require.NotNil(t, res)
	assert.Equal(t, model.OrderStatusRejected, res.Order.Status)
	assert.Contains(t, res.Order.Reason, "MARKET_CLOSED")

	open, err := repository.NewOrderRepository(eng.db).FindOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestBrokerEngineRejectsWhenNoWholeLotFits(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.InitialCash = 100000
	fb := newFakeBroker(1000)
	eng := newTestBrokerEngine(t, cfg, newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 1000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRiskLimitExceeded))

	var rle *RiskLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, risk.CapLot, rle.Cap)
	assert.Equal(t, int64(500), rle.Allowed)

	require.NotNil(t, res)
	assert.Equal(t, model.OrderStatusRejected, res.Order.Status)
	assert.Empty(t, fb.placed)
}

func TestBrokerEngineCancelBooksPriorFills(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 200})
	require.NoError(t, err)

	fb.fill("B-1", 100, 10)
	order, err := eng.CancelOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)
	assert.Equal(t, int64(100), order.FilledQuantity)

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(100), positions[0].Quantity)

	_, err = eng.CancelOrder(ctx, res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
}

func TestBrokerEnginePendingSellsLimitWhatCanBeSold(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	fb.fillOnPlace = dec(10)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 200})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, res.Order.Status)

	fb.fillOnPlace = decimal.Zero
	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", Price: dec(10), Quantity: 500})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusNew, res.Order.Status)
	assert.Equal(t, int64(200), res.Order.Quantity)

	_, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", Price: dec(10), Quantity: 100})
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestBrokerEngineExecuteSignal(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(100)
	fb.fillOnPlace = dec(10.03)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)
	sig := createSignal(t, eng.db, "0700.HK", model.SignalTypeBuy)

	res, executed, err := eng.ExecuteSignal(ctx, sig.ID)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, model.OrderStatusFilled, res.Order.Status)
	assert.Equal(t, int64(4900), res.Order.FilledQuantity)
	assert.True(t, fb.placed[0].Price.IsZero(), "market orders carry no limit price")

	_, executed, err = eng.ExecuteSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Len(t, fb.placed, 1)
}

func TestDeltaPrice(t *testing.T) {
	assertDecimal(t, 10.02, deltaPrice(dec(10), 100, dec(10.01), 200))
	assertDecimal(t, 9, deltaPrice(decimal.Zero, 0, dec(9), 50))
	assertDecimal(t, 5, deltaPrice(dec(10), 100, dec(5), 100))
}

func TestBrokerEngineSizesBuysLikeLocalEngine(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		req  OrderRequest
	}{
		{"limit above market", OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "LIMIT", Price: dec(20), Quantity: 100000}},
		{"limit below market", OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "LIMIT", Price: dec(9.5), Quantity: 100000}},
		{"market", OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "MARKET", Quantity: 100000}},
		{"within caps", OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "LIMIT", Price: dec(12), Quantity: 300}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))
			want, err := local.PlaceOrder(ctx, tc.req)
			require.NoError(t, err)

			for _, lot := range []int64{1, 100} {
				broker := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), newFakeBroker(lot))
				got, err := broker.PlaceOrder(ctx, tc.req)
				require.NoError(t, err)

				assert.Equal(t, risk.FloorToLot(want.Order.Quantity, lot), got.Order.Quantity, "lot %d", lot)
				if got.Order.Quantity == want.Order.Quantity {
					assert.Equal(t, want.Binding, got.Binding, "lot %d", lot)
				} else {
					assert.Equal(t, risk.CapLot, got.Binding, "lot %d", lot)
				}
			}
		})
	}
}

func TestBrokerEngineValuesRestingBuysAtFillPrice(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBroker(1)
	eng := newTestBrokerEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0), fb)

	// rests at a limit of 20 but would fill at 10.03
	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "LIMIT", Price: dec(20), Quantity: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Order.Quantity)

	// 50,000 per-position room less 10,030 reserved, sized at 10.03
	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "LIMIT", Price: dec(20), Quantity: 100000})
	require.NoError(t, err)
	assert.Equal(t, int64(3985), res.Order.Quantity)
	assert.Equal(t, risk.CapPerPosition, res.Binding)
}
