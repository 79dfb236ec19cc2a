package marketdata

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"quantsystem/src/connectors"
	"quantsystem/src/repository"
)

// BarPriceSource prices a symbol at its most recent stored close.
type BarPriceSource struct {
	bars *repository.BarRepository
}

func NewBarPriceSource(bars *repository.BarRepository) *BarPriceSource {
	return &BarPriceSource{bars: bars}
}

func (s *BarPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	bar, err := s.bars.Latest(ctx, symbol)
	if err != nil {
		return decimal.Zero, false, err
	}
	if bar == nil || !bar.Close.IsPositive() {
		return decimal.Zero, false, nil
	}
	return bar.Close, true, nil
}

type quoter interface {
	Last(symbol string) (connectors.Quote, bool)
}

type priceSource interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
}

// StreamPriceSource prefers a fresh websocket quote and falls back to stored bars.
type StreamPriceSource struct {
	stream   quoter
	fallback priceSource
}

func NewStreamPriceSource(stream *connectors.QuoteStream, fallback priceSource) *StreamPriceSource {
	return &StreamPriceSource{stream: stream, fallback: fallback}
}

func (s *StreamPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if q, ok := s.stream.Last(symbol); ok {
		return q.Price, true, nil
	}
	return s.fallback.LatestPrice(ctx, symbol)
}

// StaticPrices is a fixed price table, used for dry runs and tests.
type StaticPrices struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticPrices(prices map[string]decimal.Decimal) *StaticPrices {
	s := &StaticPrices{prices: make(map[string]decimal.Decimal, len(prices))}
	for k, v := range prices {
		s.prices[strings.ToUpper(k)] = v
	}
	return s
}

func (s *StaticPrices) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}

func (s *StaticPrices) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false, nil
	}
	return p, true, nil
}
