package sellstrategy

import "quantsystem/src/indicator"

func IsBullish(b indicator.Bar) bool { return b.Close > b.Open }

func AvgLow(bars []indicator.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Low
	}
	return sum / float64(len(bars))
}

// ComputeNextStopLoss ratchets a long stop from candle structure.
//
// - gate: previous bar bullish
// - floor: avg(low) over lookback
// - clamp: candidate <= prev.Low
// - update: SL = max(SL, candidate)
func ComputeNextStopLoss(currentSL float64, bars []indicator.Bar, lookback int) (newSL float64, moved bool) {
	if len(bars) < 2 {
		return currentSL, false
	}
	if lookback <= 0 {
		lookback = 20
	}
	if lookback > len(bars) {
		lookback = len(bars)
	}

	prev := bars[len(bars)-2]
	window := bars[len(bars)-lookback:]

	if !IsBullish(prev) {
		return currentSL, false
	}

	candidate := AvgLow(window)
	if candidate > prev.Low {
		candidate = prev.Low
	}

	if candidate > currentSL {
		return candidate, true
	}
	return currentSL, false
}
