package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"quantsystem/src/auth"
	"quantsystem/src/model"
	"quantsystem/src/paper"
	"quantsystem/src/repository"
)

type orderSearcher interface {
	Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error)
}

type orderReader interface {
	GetOrderStatus(ctx context.Context, id uint) (*model.Order, error)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, id uint) (*model.Order, error)
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, req paper.OrderRequest) (*paper.OrderResult, error)
}

// SearchOrdersHandler lists orders newest first.
// Supports pagination and filters (symbol, status, createdFrom, createdTo).
func SearchOrdersHandler(repo orderSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts repository.OrderSearchOptions

		if symbol := r.URL.Query().Get("symbol"); symbol != "" {
			opts.Symbol = &symbol
		}
		if status := strings.ToUpper(r.URL.Query().Get("status")); status != "" {
			opts.Status = &status
		}

		for name, dst := range map[string]**time.Time{
			"createdFrom": &opts.CreatedAfter,
			"createdTo":   &opts.CreatedBefore,
		} {
			raw := r.URL.Query().Get(name)
			if raw == "" {
				continue
			}
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = &parsed
		}

		page, ok := intQuery(r, "page", 1)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		pageSize, ok := intQuery(r, "pageSize", 20)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid pageSize")
			return
		}
		opts.Limit = pageSize
		opts.Offset = (page - 1) * pageSize

		orders, err := repo.Search(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to search orders")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// GetOrderHandler returns one order with its status log.
func GetOrderHandler(trader orderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid order id")
			return
		}

		order, err := trader.GetOrderStatus(r.Context(), id)
		if errors.Is(err, paper.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load order")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// CancelOrderHandler cancels an open order.
func CancelOrderHandler(trader orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid order id")
			return
		}

		order, err := trader.CancelOrder(r.Context(), id)
		switch {
		case errors.Is(err, paper.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, paper.ErrOrderNotCancellable):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Order: order})
		case err != nil:
			logger.WithError(err).WithField("order_id", id).Error("failed to cancel order")
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeJSON(w, http.StatusOK, order)
		}
	}
}

// PlaceOrderPayload is the manual order body.
type PlaceOrderPayload struct {
	Symbol    string  `json:"symbol" validate:"required,max=32"`
	Side      string  `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType string  `json:"order_type" validate:"required,oneof=LIMIT MARKET"`
	Price     float64 `json:"price" validate:"required_if=OrderType LIMIT,gte=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"max=255"`
}

func isInputError(err error) bool {
	for _, target := range []error{
		paper.ErrInvalidSymbol,
		paper.ErrInvalidSide,
		paper.ErrInvalidOrderType,
		paper.ErrInvalidPrice,
		paper.ErrInvalidQuantity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PlaceOrderHandler validates and submits a manual order. A rejection by the
// engine is still a persisted order and is returned with 422.
func PlaceOrderHandler(trader orderPlacer, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload PlaceOrderPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid order payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		payload.Symbol = strings.ToUpper(strings.TrimSpace(payload.Symbol))
		payload.Side = strings.ToUpper(payload.Side)
		payload.OrderType = strings.ToUpper(payload.OrderType)
		if err := validate.Struct(payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		reason := payload.Reason
		if op, ok := auth.GetOperatorFromContext(r.Context()); ok {
			reason = "manual order by " + op
			if payload.Reason != "" {
				reason += ": " + payload.Reason
			}
		}

		res, err := trader.PlaceOrder(r.Context(), paper.OrderRequest{
			Symbol:    payload.Symbol,
			Side:      payload.Side,
			OrderType: payload.OrderType,
			Price:     decimal.NewFromFloat(payload.Price),
			Quantity:  payload.Quantity,
			Reason:    reason,
		})
		switch {
		case err != nil && res != nil:
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Order: res.Order})
		case err != nil && isInputError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			logger.WithError(err).WithField("symbol", payload.Symbol).Error("failed to place order")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		default:
			writeJSON(w, http.StatusCreated, res)
		}
	}
}
