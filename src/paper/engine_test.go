package paper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsystem/src/model"
	"quantsystem/src/repository"
	"quantsystem/src/risk"
)

func newTestEngine(t *testing.T, cfg Config, p *prices) (*Engine, *repository.OrderRepository) {
	t.Helper()
	db := newTestDB(t)
	return NewEngine(db, p, cfg, nullLog()), repository.NewOrderRepository(db)
}

func TestEngineLimitBuyWithinCapsFillsInFull(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	res, err := eng.PlaceOrder(ctx, OrderRequest{
		Symbol: "0700.HK", Side: "buy", OrderType: "limit", Price: dec(10), Quantity: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, model.OrderStatusFilled, res.Order.Status)
	assert.Equal(t, int64(1000), res.Order.FilledQuantity)
	assert.Equal(t, risk.CapNone, res.Binding)
	assert.True(t, res.Order.AvgFillPrice.LessThanOrEqual(dec(10.03)))
	assertDecimal(t, 10, res.Order.AvgFillPrice)

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 990000, info.Cash)
	assertDecimal(t, 10000, info.Equity)
	assertDecimal(t, 1000000, info.TotalValue)
	assert.Equal(t, 1, info.Positions)

	order, err := eng.GetOrderStatus(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Len(t, order.Logs, 1)
	assert.Equal(t, model.OrderStatusFilled, order.Logs[0].Status)

	snap, err := repository.NewSnapshotRepository(eng.db).Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.SnapshotReasonFill, snap.Reason)
	require.NotNil(t, snap.OrderID)
	assert.Equal(t, res.Order.ID, *snap.OrderID)
}

func TestEngineMarketOrderPaysSlippage(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "MARKET", Quantity: 100})
	require.NoError(t, err)
	assertDecimal(t, 10.03, res.Order.AvgFillPrice)

	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", OrderType: "MARKET", Quantity: 100})
	require.NoError(t, err)
	assertDecimal(t, 9.97, res.Order.AvgFillPrice)

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 999994, info.Cash)
	assert.Equal(t, 0, info.Positions)
}

func TestEngineAverageCostAndSells(t *testing.T) {
	ctx := context.Background()
	px := newPrices("0700.HK", 10.0)
	eng, _ := newTestEngine(t, DefaultConfig(), px)

	_, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 100})
	require.NoError(t, err)

	px.set("0700.HK", 12)
	_, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(12), Quantity: 100})
	require.NoError(t, err)

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(200), positions[0].Quantity)
	assertDecimal(t, 11, positions[0].AvgPrice)
	assertDecimal(t, 11, positions[0].HighWaterMark)
	require.NotNil(t, positions[0].EntryDate)

	// a limit far below market still fills at the slipped reference price
	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", Price: dec(1), Quantity: 50})
	require.NoError(t, err)
	assertDecimal(t, 11.964, res.Order.AvgFillPrice)

	positions, err = eng.GetPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), positions[0].Quantity)
	assertDecimal(t, 11, positions[0].AvgPrice, "selling must not move the average cost")

	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", Price: dec(1), Quantity: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Order.RequestedQuantity)
	assert.Equal(t, int64(150), res.Order.FilledQuantity)

	positions, err = eng.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	closed, err := repository.NewPositionRepository(eng.db).FindBySymbol(ctx, "0700.HK")
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Nil(t, closed.EntryDate)
	assert.True(t, closed.HighWaterMark.IsZero())

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 1000192.8, info.Cash)
}

func TestEnginePerPositionCapClampsThenRejects(t *testing.T) {
	ctx := context.Background()
	eng, orders := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 10000})
	require.NoError(t, err)
	assert.Equal(t, risk.CapPerPosition, res.Binding)
	assert.Equal(t, int64(5000), res.Order.FilledQuantity)
	assert.Equal(t, string(risk.CapPerPosition), res.Order.BindingCap)

	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRiskLimitExceeded))
	assert.False(t, errors.Is(err, ErrInsufficientCash))

	var rle *RiskLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, risk.CapPerPosition, rle.Cap)

	require.NotNil(t, res)
	stored, err := orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.OrderStatusRejected, stored.Status)
	assert.Equal(t, int64(100), stored.RequestedQuantity)
	assert.Contains(t, stored.Reason, "per_position")

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Equity.LessThanOrEqual(info.TotalValue.Mul(dec(0.05))))
}

func TestEngineCashCapNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.InitialCash = 10000
	cfg.MaxPerPosition = 2
	cfg.MaxGross = 2
	eng, _ := newTestEngine(t, cfg, newPrices("0700.HK", 10.0))

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 2000})
	require.NoError(t, err)
	assert.Equal(t, risk.CapCash, res.Binding)
	assert.Equal(t, int64(1000), res.Order.FilledQuantity)

	_, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientCash))

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assert.False(t, info.Cash.IsNegative())
	assertDecimal(t, 0, info.Cash)
}

func TestEngineBusinessRejectionsArePersisted(t *testing.T) {
	ctx := context.Background()
	eng, orders := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "SELL", Price: dec(10), Quantity: 100})
	assert.ErrorIs(t, err, ErrNoPosition)
	require.NotNil(t, res)
	assert.Equal(t, model.OrderStatusRejected, res.Order.Status)

	res, err = eng.PlaceOrder(ctx, OrderRequest{Symbol: "9999.HK", Side: "BUY", Price: dec(10), Quantity: 100})
	assert.ErrorIs(t, err, ErrNoPriceData)
	require.NotNil(t, res)

	latest, err := orders.FindLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	for _, o := range latest {
		assert.Equal(t, model.OrderStatusRejected, o.Status)
		assert.Equal(t, int64(0), o.FilledQuantity)
	}

	info, err := eng.GetAccountInfo(ctx)
	require.NoError(t, err)
	assertDecimal(t, 1000000, info.Cash)
}

func TestEngineInputErrorsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	cases := []struct {
		name string
		req  OrderRequest
		want error
	}{
		{"side", OrderRequest{Symbol: "0700.HK", Side: "HOLD", Price: dec(10), Quantity: 100}, ErrInvalidSide},
		{"quantity", OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10)}, ErrInvalidQuantity},
		{"type", OrderRequest{Symbol: "0700.HK", Side: "BUY", OrderType: "STOP", Price: dec(10), Quantity: 1}, ErrInvalidOrderType},
		{"price", OrderRequest{Symbol: "0700.HK", Side: "BUY", Quantity: 1}, ErrInvalidPrice},
		{"symbol", OrderRequest{Symbol: "  ", Side: "BUY", Price: dec(10), Quantity: 1}, ErrInvalidSymbol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := eng.PlaceOrder(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, res)
		})
	}
	assert.Equal(t, int64(0), countOrders(t, eng.db))
}

func TestEngineConcurrentBuysRespectCap(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 1000})
			if err != nil {
				mu.Lock()
				if errors.Is(err, ErrRiskLimitExceeded) {
					rejected++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(5000), positions[0].Quantity)
	assert.Equal(t, 3, rejected)
}

func TestEngineExecuteSignalIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices("0700.HK", 10.0))
	sig := createSignal(t, eng.db, "0700.HK", model.SignalTypeBuy)

	res, executed, err := eng.ExecuteSignal(ctx, sig.ID)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, model.OrderTypeMarket, res.Order.OrderType)
	assert.Equal(t, model.OrderSourceSignal, res.Order.Source)
	assert.Equal(t, int64(4900), res.Order.FilledQuantity)
	assertDecimal(t, 10.03, res.Order.AvgFillPrice)
	require.NotNil(t, res.Order.SignalID)
	assert.Equal(t, sig.ID, *res.Order.SignalID)

	again, executed, err := eng.ExecuteSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Nil(t, again)
	assert.Equal(t, int64(1), countOrders(t, eng.db))

	stored, err := repository.NewTradingSignalRepository(eng.db).FindByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsExecuted)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, res.Order.ID, *stored.OrderID)

	sell := createSignal(t, eng.db, "0700.HK", model.SignalTypeSell)
	res, executed, err = eng.ExecuteSignal(ctx, sell.ID)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, int64(4900), res.Order.FilledQuantity)

	positions, err := eng.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	_, _, err = eng.ExecuteSignal(ctx, 4242)
	assert.ErrorIs(t, err, ErrSignalNotFound)
}

func TestEngineRejectedSignalStaysClaimed(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, DefaultConfig(), newPrices())
	sig := createSignal(t, eng.db, "0700.HK", model.SignalTypeSell)

	res, executed, err := eng.ExecuteSignal(ctx, sig.ID)
	assert.ErrorIs(t, err, ErrNoPriceData)
	assert.True(t, executed)
	require.NotNil(t, res)
	assert.Equal(t, model.OrderStatusRejected, res.Order.Status)

	_, executed, err = eng.ExecuteSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.False(t, executed)
}

func TestEngineSnapshotsAndCancel(t *testing.T) {
	ctx := context.Background()
	px := newPrices("0700.HK", 10.0)
	eng, _ := newTestEngine(t, DefaultConfig(), px)

	res, err := eng.PlaceOrder(ctx, OrderRequest{Symbol: "0700.HK", Side: "BUY", Price: dec(10), Quantity: 1000})
	require.NoError(t, err)

	px.set("0700.HK", 11)
	snap, err := eng.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SnapshotReasonTick, snap.Reason)
	assertDecimal(t, 990000, snap.Cash)
	assertDecimal(t, 11000, snap.Equity)
	assertDecimal(t, 1001000, snap.TotalValue)

	order, err := eng.CancelOrder(ctx, res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusFilled, order.Status)

	_, err = eng.CancelOrder(ctx, 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
