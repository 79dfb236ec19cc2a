package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"

	"quantsystem/src/model"
)

// GoexSource pulls crypto klines through goex. Symbols are BASE_QUOTE, e.g. BTC_USDT.
type GoexSource struct {
	exchange goex.API
	limit    int
}

func NewGoexSource(endpoint string, limit int) *GoexSource {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	if limit <= 0 {
		limit = 1000
	}
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   endpoint,
	}
	return &GoexSource{exchange: binance.NewWithConfig(apiConfig), limit: limit}
}

func goexPeriod(timeframe string) (goex.KlinePeriod, error) {
	switch timeframe {
	case model.Timeframe1m:
		return goex.KLINE_PERIOD_1MIN, nil
	case model.Timeframe1d:
		return goex.KLINE_PERIOD_1DAY, nil
	default:
		return 0, ErrUnsupportedTimeframe
	}
}

func currencyPair(symbol string) (goex.CurrencyPair, error) {
	parts := strings.FieldsFunc(strings.ToUpper(symbol), func(r rune) bool { return r == '_' || r == '-' || r == '/' })
	if len(parts) != 2 {
		return goex.CurrencyPair{}, fmt.Errorf("invalid crypto symbol %q, expected BASE_QUOTE", symbol)
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: parts[0]}, goex.Currency{Symbol: parts[1]}), nil
}

func (g *GoexSource) FetchBars(_ context.Context, symbol, timeframe string, start, end time.Time) ([]model.Bar, error) {
	period, err := goexPeriod(timeframe)
	if err != nil {
		return nil, err
	}
	pair, err := currencyPair(symbol)
	if err != nil {
		return nil, err
	}

	const millis = 1000
	klines, err := g.exchange.GetKlineRecords(
		pair,
		period,
		g.limit,
		goex.OptionalParameter{}.
			Optional("startTime", start.Unix()*millis).
			Optional("endTime", end.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Datetime:  time.Unix(k.Timestamp, 0).UTC(),
			Market:    model.MarketCrypto,
			Open:      decimal.NewFromFloat(k.Open),
			High:      decimal.NewFromFloat(k.High),
			Low:       decimal.NewFromFloat(k.Low),
			Close:     decimal.NewFromFloat(k.Close),
			Volume:    decimal.NewFromFloat(k.Vol),
		})
	}
	return bars, nil
}
