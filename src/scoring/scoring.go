// Package scoring turns the latest indicator rows of a symbol into a 0-100
// composite attractiveness score across four weighted dimensions.
package scoring

import (
	"sort"

	"quantsystem/src/indicator"
)

const (
	MaxTechnical = 30
	MaxVolume    = 25
	MaxTrend     = 25
	MaxPattern   = 20

	minRows        = 2
	minPatternRows = 3
)

// Breakdown holds every component score along with the branch that produced it.
type Breakdown struct {
	MACD         int `json:"macd"`
	RSI          int `json:"rsi"`
	KDJ          int `json:"kdj"`
	VolumePrice  int `json:"volume_price"`
	VolumeTrend  int `json:"volume_trend"`
	MAAlignment  int `json:"ma_alignment"`
	BollPosition int `json:"boll_position"`
	Candle       int `json:"candle"`
	Breakthrough int `json:"breakthrough"`

	Branches map[string]string `json:"branches,omitempty"`
}

// Result is the composite score for one symbol as of its latest row.
type Result struct {
	Total     int `json:"total_score"`
	Technical int `json:"technical_score"`
	Volume    int `json:"volume_score"`
	Trend     int `json:"trend_score"`
	Pattern   int `json:"pattern_score"`

	Breakdown Breakdown `json:"breakdown"`
}

// Score computes the composite score. With fewer than two rows the result is
// all zeros; the pattern dimension additionally needs three rows.
func Score(rows []indicator.Row) Result {
	if len(rows) < minRows {
		return Result{}
	}

	w := window{
		cur:  rows[len(rows)-1],
		prev: rows[len(rows)-2],
		rows: rows,
	}

	var b Breakdown
	b.Branches = map[string]string{}
	apply := func(name string, c cascade, dst *int) {
		points, branch := c.eval(w)
		*dst = points
		b.Branches[name] = branch
	}

	apply("macd", macdCascade, &b.MACD)
	apply("rsi", rsiCascade, &b.RSI)
	apply("kdj", kdjCascade, &b.KDJ)
	apply("volume_price", volumePriceCascade, &b.VolumePrice)
	apply("volume_trend", volumeTrendCascade, &b.VolumeTrend)
	apply("ma_alignment", maAlignmentCascade, &b.MAAlignment)
	apply("boll_position", bollCascade, &b.BollPosition)
	if len(rows) >= minPatternRows {
		apply("candle", candleCascade, &b.Candle)
		apply("breakthrough", breakthroughCascade, &b.Breakthrough)
	}

	res := Result{
		Technical: b.MACD + b.RSI + b.KDJ,
		Volume:    b.VolumePrice + b.VolumeTrend,
		Trend:     b.MAAlignment + b.BollPosition,
		Pattern:   b.Candle + b.Breakthrough,
		Breakdown: b,
	}
	res.Total = res.Technical + res.Volume + res.Trend + res.Pattern
	return res
}

// Ranked pairs a symbol with its score for ordering.
type Ranked struct {
	Symbol string
	Result Result
	Rank   int
}

// Rank orders by total score descending, ties broken by symbol, and assigns
// 1-based ranks.
func Rank(items []Ranked) []Ranked {
	out := make([]Ranked, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Result.Total != out[j].Result.Total {
			return out[i].Result.Total > out[j].Result.Total
		}
		return out[i].Symbol < out[j].Symbol
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
