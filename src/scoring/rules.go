package scoring

import "quantsystem/src/indicator"

// window is the view every rule sees: the latest row, the one before it and,
// for multi-bar patterns, the full history.
type window struct {
	cur  indicator.Row
	prev indicator.Row
	rows []indicator.Row
}

// rule is one branch of a cascade. Cascades are evaluated in order and the
// first matching rule wins, so overlapping predicates are intentional.
type rule struct {
	name   string
	points int
	when   func(w window) bool
}

type cascade struct {
	rules    []rule
	fallback int
}

func (c cascade) eval(w window) (int, string) {
	for _, r := range c.rules {
		if r.when(w) {
			return r.points, r.name
		}
	}
	return c.fallback, "default"
}

func valid(vs ...indicator.Value) bool {
	for _, v := range vs {
		if !v.Valid {
			return false
		}
	}
	return true
}

func crossUp(a, b, prevA, prevB indicator.Value) bool {
	return valid(a, b, prevA, prevB) && a.Float64 > b.Float64 && prevA.Float64 <= prevB.Float64
}

func crossDown(a, b, prevA, prevB indicator.Value) bool {
	return valid(a, b, prevA, prevB) && a.Float64 < b.Float64 && prevA.Float64 >= prevB.Float64
}

var macdCascade = cascade{
	rules: []rule{
		{"golden_cross", 10, func(w window) bool {
			return crossUp(w.cur.MACD, w.cur.MACDSignal, w.prev.MACD, w.prev.MACDSignal)
		}},
		{"above_signal", 7, func(w window) bool {
			return valid(w.cur.MACD, w.cur.MACDSignal) && w.cur.MACD.Float64 > w.cur.MACDSignal.Float64
		}},
		{"hist_turns_positive", 8, func(w window) bool {
			return valid(w.cur.MACDHist, w.prev.MACDHist) && w.prev.MACDHist.Float64 <= 0 && w.cur.MACDHist.Float64 > 0
		}},
		{"above_zero", 5, func(w window) bool {
			return valid(w.cur.MACD) && w.cur.MACD.Float64 > 0
		}},
		{"death_cross", 0, func(w window) bool {
			return crossDown(w.cur.MACD, w.cur.MACDSignal, w.prev.MACD, w.prev.MACDSignal)
		}},
	},
	fallback: 3,
}

func rsiBetween(lo, hi float64, hiInclusive bool) func(w window) bool {
	return func(w window) bool {
		if !valid(w.cur.RSI) {
			return false
		}
		v := w.cur.RSI.Float64
		if hiInclusive {
			return v >= lo && v <= hi
		}
		return v >= lo && v < hi
	}
}

var rsiCascade = cascade{
	rules: []rule{
		{"healthy", 10, rsiBetween(50, 70, true)},
		{"neutral", 7, rsiBetween(30, 50, false)},
		{"oversold", 5, rsiBetween(20, 30, false)},
		{"overbought", 3, func(w window) bool { return valid(w.cur.RSI) && w.cur.RSI.Float64 > 70 }},
	},
	fallback: 2,
}

var kdjCascade = cascade{
	rules: []rule{
		{"golden_cross", 10, func(w window) bool {
			return crossUp(w.cur.KDJK, w.cur.KDJD, w.prev.KDJK, w.prev.KDJD) && w.cur.KDJK.Float64 < 80
		}},
		{"mid_bullish", 8, func(w window) bool {
			k, d := w.cur.KDJK, w.cur.KDJD
			return valid(k, d) && k.Float64 > 20 && k.Float64 < 80 && d.Float64 > 20 && d.Float64 < 80 && k.Float64 > d.Float64
		}},
		{"low_bullish", 7, func(w window) bool {
			k, d := w.cur.KDJK, w.cur.KDJD
			return valid(k, d) && k.Float64 < 20 && d.Float64 < 20 && k.Float64 > d.Float64
		}},
		{"death_cross", 2, func(w window) bool {
			return crossDown(w.cur.KDJK, w.cur.KDJD, w.prev.KDJK, w.prev.KDJD)
		}},
		{"overbought", 3, func(w window) bool { return valid(w.cur.KDJK) && w.cur.KDJK.Float64 > 80 }},
	},
	fallback: 5,
}

// volumeStats returns the latest price change and the ratio of the latest
// volume to the mean of the last five volumes, today included.
func volumeStats(w window) (change, ratio float64) {
	if w.prev.Close != 0 {
		change = (w.cur.Close - w.prev.Close) / w.prev.Close
	}
	n := len(w.rows)
	if n > 5 {
		n = 5
	}
	sum := 0.0
	for _, r := range w.rows[len(w.rows)-n:] {
		sum += r.Volume
	}
	if avg := sum / float64(n); avg > 0 {
		ratio = w.cur.Volume / avg
	}
	return change, ratio
}

func volumePrice(minChange, minRatio, maxRatio float64) func(w window) bool {
	return func(w window) bool {
		change, ratio := volumeStats(w)
		return change > minChange && ratio > minRatio && ratio < maxRatio
	}
}

const unbounded = 1e308

var volumePriceCascade = cascade{
	rules: []rule{
		{"breakout_volume", 15, volumePrice(0.02, 1.5, unbounded)},
		{"rise_with_volume", 12, volumePrice(0.01, 1.2, unbounded)},
		{"mild_rise", 8, volumePrice(0, 1, unbounded)},
		{"rise_on_shrinking_volume", 6, volumePrice(0.01, -unbounded, 0.8)},
		{"distribution", 2, func(w window) bool {
			change, ratio := volumeStats(w)
			return change < -0.01 && ratio > 1.5
		}},
	},
	fallback: 5,
}

var volumeTrendCascade = cascade{
	rules: []rule{
		{"expanding", 10, func(w window) bool {
			return valid(w.cur.VolumeMA5, w.cur.VolumeMA10) && w.cur.VolumeMA5.Float64 > w.cur.VolumeMA10.Float64*1.1
		}},
		{"rising", 7, func(w window) bool {
			return valid(w.cur.VolumeMA5, w.cur.VolumeMA10) && w.cur.VolumeMA5.Float64 > w.cur.VolumeMA10.Float64
		}},
	},
	fallback: 4,
}

// descending reports close > a > b > ... with every level defined.
func descending(close float64, levels ...indicator.Value) bool {
	last := close
	for _, l := range levels {
		if !l.Valid || !(last > l.Float64) {
			return false
		}
		last = l.Float64
	}
	return true
}

func ascending(close float64, levels ...indicator.Value) bool {
	last := close
	for _, l := range levels {
		if !l.Valid || !(last < l.Float64) {
			return false
		}
		last = l.Float64
	}
	return true
}

var maAlignmentCascade = cascade{
	rules: []rule{
		{"full_bullish", 15, func(w window) bool {
			return descending(w.cur.Close, w.cur.MA5, w.cur.MA10, w.cur.MA20, w.cur.MA60)
		}},
		{"bullish_20", 12, func(w window) bool { return descending(w.cur.Close, w.cur.MA5, w.cur.MA10, w.cur.MA20) }},
		{"bullish_10", 9, func(w window) bool { return descending(w.cur.Close, w.cur.MA5, w.cur.MA10) }},
		{"above_ma5", 6, func(w window) bool { return descending(w.cur.Close, w.cur.MA5) }},
		{"bearish", 2, func(w window) bool { return ascending(w.cur.Close, w.cur.MA5, w.cur.MA10, w.cur.MA20) }},
	},
	fallback: 4,
}

func bollPosition(r indicator.Row) (float64, bool) {
	if !valid(r.BollUpper, r.BollLower) {
		return 0, false
	}
	width := r.BollUpper.Float64 - r.BollLower.Float64
	if width == 0 {
		return 0, false
	}
	return (r.Close - r.BollLower.Float64) / width, true
}

func bollIn(match func(pos float64) bool) func(w window) bool {
	return func(w window) bool {
		pos, ok := bollPosition(w.cur)
		return ok && match(pos)
	}
}

var bollCascade = cascade{
	rules: []rule{
		{"upper_half", 10, bollIn(func(p float64) bool { return p >= 0.5 && p <= 0.8 })},
		{"lower_half", 7, bollIn(func(p float64) bool { return p >= 0.2 && p < 0.5 })},
		{"near_upper", 6, bollIn(func(p float64) bool { return p > 0.8 })},
		{"near_lower", 5, bollIn(func(p float64) bool { return p < 0.2 })},
	},
	fallback: 4,
}

type candle struct {
	body, upper, lower, span float64
	bullish, bearish         bool
}

func shape(b indicator.Bar) candle {
	top, bottom := b.Open, b.Close
	if b.Close > b.Open {
		top, bottom = b.Close, b.Open
	}
	return candle{
		body:    top - bottom,
		upper:   b.High - top,
		lower:   bottom - b.Low,
		span:    b.High - b.Low,
		bullish: b.Close > b.Open,
		bearish: b.Close < b.Open,
	}
}

// bodyRatio is 0 for a bar with no range.
func (c candle) bodyRatio() float64 {
	if c.span == 0 {
		return 0
	}
	return c.body / c.span
}

// morningStar: a bearish bar, a small-bodied bar, then a bullish bar that
// closes above the midpoint of the first body.
func morningStar(rows []indicator.Row) bool {
	if len(rows) < 3 {
		return false
	}
	first := rows[len(rows)-3].Bar
	c1, c2, c3 := shape(first), shape(rows[len(rows)-2].Bar), shape(rows[len(rows)-1].Bar)
	mid := (first.Open + first.Close) / 2
	return c1.bearish && c2.body < 0.3*c1.body && c3.bullish && rows[len(rows)-1].Close > mid
}

var candleCascade = cascade{
	rules: []rule{
		{"big_bullish", 10, func(w window) bool {
			c := shape(w.cur.Bar)
			return c.bullish && c.bodyRatio() > 0.7
		}},
		{"hammer", 8, func(w window) bool {
			c := shape(w.cur.Bar)
			return c.lower > 2*c.body && c.upper < c.body
		}},
		{"morning_star", 9, func(w window) bool { return morningStar(w.rows) }},
		{"bullish", 6, func(w window) bool { return shape(w.cur.Bar).bullish }},
		{"doji", 5, func(w window) bool { return shape(w.cur.Bar).bodyRatio() < 0.1 }},
	},
	fallback: 3,
}

var breakthroughCascade = cascade{
	rules: []rule{
		{"crosses_ma20", 10, func(w window) bool {
			return valid(w.cur.MA20, w.prev.MA20) && w.prev.Close <= w.prev.MA20.Float64 && w.cur.Close > w.cur.MA20.Float64
		}},
		{"above_ma20", 7, func(w window) bool { return valid(w.cur.MA20) && w.cur.Close > w.cur.MA20.Float64 }},
	},
	fallback: 3,
}
