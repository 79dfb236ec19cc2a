// Package indicator derives technical indicators from an ordered OHLCV series.
//
// Every function here is pure: each output row depends only on bars at or
// before its own date, and values that lack enough history are left invalid.
package indicator

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
	RSIPeriod  = 14
	KDJPeriod  = 9
	KDJSmoothK = 3
	KDJSmoothD = 3
	BollPeriod = 20
	BollMult   = 2.0
	ATRPeriod  = 14
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("indicator: invalid input")

// ErrEmptySeries is returned by Compute for a series with no bars. It also
// matches ErrValidation.
var ErrEmptySeries = errors.New("indicator: empty series")

const reasonEmptySeries = "empty series"

// RequiredColumns are the OHLCV fields Compute cannot work without.
var RequiredColumns = []string{"open", "high", "low", "close", "volume"}

// ValidationError reports malformed input. It is fatal for the symbol being
// processed and must be handled by the caller.
type ValidationError struct {
	Reason  string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("indicator: %s: %s", e.Reason, strings.Join(e.Missing, ","))
	}
	return "indicator: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrEmptySeries {
		return e.Reason == reasonEmptySeries
	}
	return target == ErrValidation
}

// Value is an optional indicator value. Valid is false until enough history exists.
type Value = sql.NullFloat64

func some(f float64) Value { return Value{Float64: f, Valid: true} }

// Bar is one trading-period observation.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Row is a Bar plus every derived indicator, keyed 1:1 by date.
type Row struct {
	Bar

	MA5  Value
	MA10 Value
	MA20 Value
	MA60 Value

	EMA12 Value
	EMA26 Value

	MACD       Value
	MACDSignal Value
	MACDHist   Value

	RSI Value

	KDJK Value
	KDJD Value
	KDJJ Value

	BollUpper  Value
	BollMiddle Value
	BollLower  Value

	ATR Value
	OBV Value

	VolumeMA5  Value
	VolumeMA10 Value
}

// FromColumns builds a bar series from column vectors, the shape most data
// vendors return. Missing columns or mismatched lengths are rejected.
func FromColumns(dates []time.Time, columns map[string][]float64) ([]Bar, error) {
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ValidationError{Reason: "missing required columns", Missing: missing}
	}

	n := len(dates)
	for _, name := range RequiredColumns {
		if len(columns[name]) != n {
			return nil, &ValidationError{Reason: fmt.Sprintf("column %s has %d values, want %d", name, len(columns[name]), n)}
		}
	}

	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{
			Date:   dates[i],
			Open:   columns["open"][i],
			High:   columns["high"][i],
			Low:    columns["low"][i],
			Close:  columns["close"][i],
			Volume: columns["volume"][i],
		}
	}
	return bars, nil
}

// Compute returns one Row per bar. Bars must already be ordered by date;
// prices are not otherwise checked.
func Compute(bars []Bar) ([]Row, error) {
	if len(bars) == 0 {
		return nil, &ValidationError{Reason: reasonEmptySeries}
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	ma5 := SMA(closes, 5)
	ma10 := SMA(closes, 10)
	ma20 := SMA(closes, 20)
	ma60 := SMA(closes, 60)

	ema12 := EMA(closes, MACDFast)
	ema26 := EMA(closes, MACDSlow)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMA(macd, MACDSignal)

	rsi := RSI(closes, RSIPeriod)
	k, d, j := KDJ(highs, lows, closes, KDJPeriod, KDJSmoothK, KDJSmoothD)

	std := RollingStd(closes, BollPeriod)
	atr := SMA(TrueRange(highs, lows, closes), ATRPeriod)
	obv := OBV(closes, volumes)
	vma5 := SMA(volumes, 5)
	vma10 := SMA(volumes, 10)

	rows := make([]Row, n)
	for i := range rows {
		r := Row{
			Bar:        bars[i],
			MA5:        ma5[i],
			MA10:       ma10[i],
			MA20:       ma20[i],
			MA60:       ma60[i],
			EMA12:      some(ema12[i]),
			EMA26:      some(ema26[i]),
			MACD:       some(macd[i]),
			MACDSignal: some(signal[i]),
			MACDHist:   some(macd[i] - signal[i]),
			RSI:        rsi[i],
			KDJK:       k[i],
			KDJD:       d[i],
			KDJJ:       j[i],
			BollMiddle: ma20[i],
			ATR:        atr[i],
			OBV:        some(obv[i]),
			VolumeMA5:  vma5[i],
			VolumeMA10: vma10[i],
		}
		if ma20[i].Valid && std[i].Valid {
			r.BollUpper = some(ma20[i].Float64 + BollMult*std[i].Float64)
			r.BollLower = some(ma20[i].Float64 - BollMult*std[i].Float64)
		}
		rows[i] = r
	}
	return rows, nil
}

// Bars strips the derived fields from rows.
func Bars(rows []Row) []Bar {
	out := make([]Bar, len(rows))
	for i, r := range rows {
		out[i] = r.Bar
	}
	return out
}
