package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// Broker order states as reported by the sandbox.
const (
	BrokerStatusNew             = "NEW"
	BrokerStatusPartiallyFilled = "PARTIALLY_FILLED"
	BrokerStatusFilled          = "FILLED"
	BrokerStatusCancelled       = "CANCELLED"
	BrokerStatusRejected        = "REJECTED"
)

// apiResponse is the envelope every broker endpoint answers with.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type BrokerOrderRequest struct {
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Market        string          `json:"market"`
	Side          string          `json:"side"`
	OrderType     string          `json:"order_type"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

type BrokerOrder struct {
	OrderID        string          `json:"order_id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Status         string          `json:"status"`
	Quantity       int64           `json:"quantity"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFillPrice   decimal.Decimal `json:"avg_fill_price"`
	Reason         string          `json:"reason,omitempty"`
}

type instrument struct {
	Symbol  string `json:"symbol"`
	LotSize int64  `json:"lot_size"`
}

// BrokerError is a business error reported inside a 200 envelope.
type BrokerError struct {
	Code int
	Msg  string
}

func (e *BrokerError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("broker error %d (%s): %s", e.Code, GetErrorMsg(e.Code), e.Msg)
	}
	return fmt.Sprintf("broker error %d (%s)", e.Code, GetErrorMsg(e.Code))
}

// BrokerClient talks to the broker's paper-trading REST API.
type BrokerClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewBrokerClient(apiKey, apiSecret, baseURL string) *BrokerClient {
	if baseURL == "" {
		baseURL = defaultBrokerBaseURL
		logger.Warnf("No broker base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &BrokerClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

func NewBrokerClientFromConfig(cfg Config) *BrokerClient {
	return NewBrokerClient(cfg.BrokerAPIKey, cfg.BrokerAPISecret, cfg.BrokerBaseURL)
}

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path
	if query != "" {
		base += query
	}
	base += strconv.FormatInt(expiry, 10)
	if body != "" {
		base += body
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *BrokerClient) doRequest(ctx context.Context, method, path string, body []byte, out interface{}) error {
	expiry := time.Now().Add(1 * time.Minute).Unix()
	sig := signRequest(path, "", string(body), expiry, c.apiSecret)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("x-api-expiry", strconv.FormatInt(expiry, 10)).
		SetHeader("x-api-signature", sig)
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Code != 0 {
		return &BrokerError{Code: env.Code, Msg: env.Msg}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// PlaceOrder submits the order. The broker may fill it immediately.
func (c *BrokerClient) PlaceOrder(ctx context.Context, req BrokerOrderRequest) (*BrokerOrder, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var out BrokerOrder
	if err := c.doRequest(ctx, http.MethodPost, "/v1/orders", b, &out); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"client_order_id": req.ClientOrderID,
		"order_id":        out.OrderID,
		"symbol":          req.Symbol,
		"status":          out.Status,
	}).Debug("broker order placed")

	return &out, nil
}

func (c *BrokerClient) CancelOrder(ctx context.Context, orderID string) (*BrokerOrder, error) {
	var out BrokerOrder
	if err := c.doRequest(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BrokerClient) OrderStatus(ctx context.Context, orderID string) (*BrokerOrder, error) {
	var out BrokerOrder
	if err := c.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LotSize returns the board lot for the symbol, 0 when the broker does not say.
func (c *BrokerClient) LotSize(ctx context.Context, symbol string) (int64, error) {
	var out instrument
	if err := c.doRequest(ctx, http.MethodGet, "/v1/instruments/"+symbol, nil, &out); err != nil {
		return 0, err
	}
	return out.LotSize, nil
}
