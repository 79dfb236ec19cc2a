package indicator

import "math"

// SMA is the arithmetic mean over the trailing period values.
func SMA(xs []float64, period int) []Value {
	out := make([]Value, len(xs))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = some(sum / float64(period))
		}
	}
	return out
}

// EMA is seeded from the first value with alpha = 2/(period+1).
func EMA(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RollingStd is the sample standard deviation (n-1) over the trailing period.
func RollingStd(xs []float64, period int) []Value {
	out := make([]Value, len(xs))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(xs); i++ {
		window := xs[i-period+1 : i+1]
		mean := 0.0
		for _, x := range window {
			mean += x
		}
		mean /= float64(period)
		ss := 0.0
		for _, x := range window {
			ss += (x - mean) * (x - mean)
		}
		out[i] = some(math.Sqrt(ss / float64(period-1)))
	}
	return out
}

// RollingMin is the minimum over the trailing period.
func RollingMin(xs []float64, period int) []Value {
	return rollingExtreme(xs, period, func(a, b float64) bool { return a < b })
}

// RollingMax is the maximum over the trailing period.
func RollingMax(xs []float64, period int) []Value {
	return rollingExtreme(xs, period, func(a, b float64) bool { return a > b })
}

func rollingExtreme(xs []float64, period int, better func(a, b float64) bool) []Value {
	out := make([]Value, len(xs))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(xs); i++ {
		best := xs[i-period+1]
		for _, x := range xs[i-period+2 : i+1] {
			if better(x, best) {
				best = x
			}
		}
		out[i] = some(best)
	}
	return out
}

// TrueRange uses high-low for the first bar, which has no previous close.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
			tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		}
		out[i] = tr
	}
	return out
}

// OBV starts at the first volume and adds or subtracts volume on up or down closes.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = volumes[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// RSI averages the last period deltas, so the first value appears at index period.
// A window with no losses reads 100, and a window with no movement at all reads 50.
func RSI(closes []float64, period int) []Value {
	out := make([]Value, len(closes))
	if period <= 0 {
		return out
	}
	for i := period; i < len(closes); i++ {
		gain, loss := 0.0, 0.0
		for t := i - period + 1; t <= i; t++ {
			delta := closes[t] - closes[t-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		gain /= float64(period)
		loss /= float64(period)

		switch {
		case gain == 0 && loss == 0:
			out[i] = some(50)
		case loss == 0:
			out[i] = some(100)
		default:
			out[i] = some(100 - 100/(1+gain/loss))
		}
	}
	return out
}

// KDJ smooths RSV with a recursive EWMA (alpha = 1/m) seeded from the first
// defined RSV. A flat window (highest high equals lowest low) yields RSV 50.
func KDJ(highs, lows, closes []float64, n, m1, m2 int) (k, d, j []Value) {
	size := len(closes)
	k = make([]Value, size)
	d = make([]Value, size)
	j = make([]Value, size)

	lowest := RollingMin(lows, n)
	highest := RollingMax(highs, n)
	alphaK := 1.0 / float64(m1)
	alphaD := 1.0 / float64(m2)

	seeded := false
	var prevK, prevD float64
	for i := 0; i < size; i++ {
		if !lowest[i].Valid || !highest[i].Valid {
			continue
		}
		rsv := 50.0
		if span := highest[i].Float64 - lowest[i].Float64; span != 0 {
			rsv = (closes[i] - lowest[i].Float64) / span * 100
		}
		if !seeded {
			prevK, prevD = rsv, rsv
			seeded = true
		} else {
			prevK = alphaK*rsv + (1-alphaK)*prevK
			prevD = alphaD*prevK + (1-alphaD)*prevD
		}
		k[i] = some(prevK)
		d[i] = some(prevD)
		j[i] = some(3*prevK - 2*prevD)
	}
	return k, d, j
}
