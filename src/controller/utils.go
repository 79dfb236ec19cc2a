package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"quantsystem/src/model"
	"quantsystem/src/repository"
)

// NormalizeSymbol upper-cases a ticker and pads Hong Kong codes to four digits.
// Examples:
//
//	700.hk   -> 0700.HK
//	0005.HK  -> 0005.HK
//	aapl     -> AAPL
//	btc/usdt -> BTC/USDT
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}

	code, ok := strings.CutSuffix(s, ".HK")
	if !ok || code == "" || len(code) >= 4 {
		return s
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return s
		}
	}
	return strings.Repeat("0", 4-len(code)) + code + ".HK"
}

// NormalizeSymbols normalizes and de-duplicates a symbol list, keeping order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo *repository.ExceptionRepository,
	service string,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}

	logger.WithFields(map[string]interface{}{
		"service": service,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Warn("System exception captured")

	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
