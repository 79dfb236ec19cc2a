package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStreamConsumesTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan subscribeMessage, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ack","id":"`+sub.ID+`"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","symbol":"0700.hk","price":"351.2","ts":1709280000000}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","symbol":"9988.HK","price":"0"}`))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := NewQuoteStream(url, []string{"0700.HK", "9988.HK"}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "subscribe", sub.Op)
		assert.Equal(t, []string{"0700.HK", "9988.HK"}, sub.Symbols)
		assert.NotEmpty(t, sub.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe frame received")
	}

	require.Eventually(t, func() bool {
		_, ok := stream.Last("0700.HK")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	q, _ := stream.Last("0700.HK")
	assert.True(t, q.Price.Equal(decimal.RequireFromString("351.2")))
	assert.Equal(t, time.UnixMilli(1709280000000), q.At)
	assert.NotEmpty(t, stream.SubscriptionID())

	_, ok := stream.Last("9988.HK")
	assert.False(t, ok, "non-positive prices are ignored")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestQuoteStreamMaxAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	stream := NewQuoteStream("", nil, time.Minute)
	stream.now = func() time.Time { return now }

	stream.handle([]byte(`{"type":"trade","symbol":"0700.HK","price":"350","ts":1709287200000}`))
	_, ok := stream.Last("0700.HK")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = stream.Last("0700.HK")
	assert.False(t, ok)
}
