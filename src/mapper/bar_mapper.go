package mapper

import (
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/indicator"
	"quantsystem/src/model"
)

// BarsToIndicator converts stored bars into the float series the indicator engine reads.
// Bars with a non-positive close are dropped.
func BarsToIndicator(bars []model.Bar) []indicator.Bar {
	out := make([]indicator.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Close.IsPositive() {
			logger.WithFields(map[string]interface{}{
				"mapper":   "BarsToIndicator",
				"symbol":   b.Symbol,
				"datetime": b.Datetime,
			}).Warn("Skipping bar without a close")
			continue
		}
		out = append(out, indicator.Bar{
			Date:   b.Datetime,
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: b.Volume.InexactFloat64(),
		})
	}
	return out
}

// RowsToRecords maps computed rows onto indicator table records.
func RowsToRecords(symbol string, rows []indicator.Row) []model.IndicatorRecord {
	out := make([]model.IndicatorRecord, len(rows))
	for i, r := range rows {
		out[i] = model.IndicatorRecord{
			Symbol:     symbol,
			Date:       r.Date,
			Close:      r.Close,
			MA5:        r.MA5,
			MA10:       r.MA10,
			MA20:       r.MA20,
			MA60:       r.MA60,
			EMA12:      r.EMA12,
			EMA26:      r.EMA26,
			MACD:       r.MACD,
			MACDSignal: r.MACDSignal,
			MACDHist:   r.MACDHist,
			RSI:        r.RSI,
			KDJK:       r.KDJK,
			KDJD:       r.KDJD,
			KDJJ:       r.KDJJ,
			BollUpper:  r.BollUpper,
			BollMiddle: r.BollMiddle,
			BollLower:  r.BollLower,
			ATR:        r.ATR,
			OBV:        r.OBV,
			VolumeMA5:  r.VolumeMA5,
			VolumeMA10: r.VolumeMA10,
		}
	}
	return out
}

// ClosesSince returns closes on or after since, used to rebuild a trailing peak.
func ClosesSince(bars []model.Bar, since time.Time) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		if !b.Datetime.Before(since) {
			out = append(out, b.Close.InexactFloat64())
		}
	}
	return out
}
