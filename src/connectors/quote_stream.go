package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type Quote struct {
	Symbol string
	Price  decimal.Decimal
	At     time.Time
}

type subscribeMessage struct {
	Op      string   `json:"op"`
	ID      string   `json:"id"`
	Symbols []string `json:"symbols"`
}

type streamMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Symbol string          `json:"symbol,omitempty"`
	Price  decimal.Decimal `json:"price"`
	TS     int64           `json:"ts,omitempty"` // unix millis
	Msg    string          `json:"msg,omitempty"`
}

// QuoteStream keeps the last trade price per symbol from the vendor websocket.
type QuoteStream struct {
	URL     string
	Symbols []string
	Header  http.Header

	// MaxAge is how old a quote may be before Last ignores it. Zero disables the check.
	MaxAge time.Duration

	mu     sync.RWMutex
	quotes map[string]Quote
	subID  string
	now    func() time.Time
}

func NewQuoteStream(url string, symbols []string, maxAge time.Duration) *QuoteStream {
	return &QuoteStream{
		URL:     url,
		Symbols: symbols,
		Header:  http.Header{},
		MaxAge:  maxAge,
		quotes:  make(map[string]Quote),
		now:     time.Now,
	}
}

// Last returns the latest quote for symbol if one arrived within MaxAge.
func (s *QuoteStream) Last(symbol string) (Quote, bool) {
	s.mu.RLock()
	q, ok := s.quotes[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if !ok {
		return Quote{}, false
	}
	if s.MaxAge > 0 && s.now().Sub(q.At) > s.MaxAge {
		return Quote{}, false
	}
	return q, true
}

// SubscriptionID is the id sent with the most recent subscribe frame.
func (s *QuoteStream) SubscriptionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subID
}

// Run connects and consumes until ctx is done, reconnecting with backoff.
func (s *QuoteStream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.WithError(err).WithField("backoff", backoff.String()).Warn("quote stream disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *QuoteStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  15 * time.Second,
		EnableCompression: true,
		Proxy:             http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when the context ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	sub := subscribeMessage{Op: "subscribe", ID: uuid.NewString(), Symbols: s.Symbols}
	s.mu.Lock()
	s.subID = sub.ID
	s.mu.Unlock()

	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("ws subscribe failed: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}
		s.handle(msg)
	}
}

func (s *QuoteStream) handle(msg []byte) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || msg[0] != '{' {
		return
	}

	var m streamMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		logger.WithError(err).WithField("raw", string(msg)).Debug("quote stream: bad frame")
		return
	}

	switch m.Type {
	case "trade":
		if m.Symbol == "" || !m.Price.IsPositive() {
			return
		}
		at := s.now()
		if m.TS > 0 {
			at = time.UnixMilli(m.TS)
		}
		s.mu.Lock()
		s.quotes[strings.ToUpper(m.Symbol)] = Quote{Symbol: m.Symbol, Price: m.Price, At: at}
		s.mu.Unlock()
	case "error":
		logger.WithFields(logger.Fields{"id": m.ID, "msg": m.Msg}).Warn("quote stream error frame")
	default:
		// acks and heartbeats
	}
}
