package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"quantsystem/src/model"
)

type vendorResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type vendorBar struct {
	Datetime time.Time       `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// VendorSource pulls equity bars from the market-data vendor's REST API.
type VendorSource struct {
	market string
	limit  int
	http   *resty.Client
}

func isRetryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewVendorSource(baseURL, apiKey, market string, limit int) *VendorSource {
	if limit <= 0 {
		limit = 1000
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(20*time.Second).
		SetHeader("x-api-key", apiKey).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(isRetryable)

	return &VendorSource{market: market, limit: limit, http: client}
}

func (v *VendorSource) FetchBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Bar, error) {
	if _, err := timeframeStep(timeframe); err != nil {
		return nil, err
	}

	resp, err := v.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"timeframe": timeframe,
			"start":     start.UTC().Format(time.RFC3339),
			"end":       end.UTC().Format(time.RFC3339),
			"limit":     strconv.Itoa(v.limit),
		}).
		Get("/v1/bars")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var env vendorResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("vendor error %d: %s", env.Code, env.Msg)
	}

	var raw []vendorBar
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Datetime:  b.Datetime.UTC(),
			Market:    v.market,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Datetime.Before(bars[j].Datetime) })

	logger.WithFields(logger.Fields{
		"symbol":    symbol,
		"timeframe": timeframe,
		"count":     len(bars),
	}).Debug("vendor bars fetched")

	return bars, nil
}
