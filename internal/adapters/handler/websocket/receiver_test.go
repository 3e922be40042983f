package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestReceiverReadsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"emitter":"ctrl","type":"STATUS","data":"ready"}`))
		// Block until the client closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan domain.BroadcastMessage, 1)
	conf := config.BroadcasterConf{
		Type:    config.BroadcasterWebSocket,
		Address: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
	r, err := NewReceiver(context.Background(), conf, func(m domain.BroadcastMessage) { got <- m })
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}

	select {
	case m := <-got:
		if m.Data != "ready" {
			t.Errorf("Expected data ready, got %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a broadcast")
	}

	if err := r.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	// A second Stop returns the same result without blocking.
	if err := r.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
	if r.Address() != conf.Address {
		t.Errorf("Expected receiver address to default to the feed URL, got %s", r.Address())
	}
}

func TestNewReceiverDialFailure(t *testing.T) {
	conf := config.BroadcasterConf{Type: config.BroadcasterWebSocket, Address: "ws://127.0.0.1:1"}
	if _, err := NewReceiver(context.Background(), conf, func(domain.BroadcastMessage) {}); err == nil {
		t.Error("Expected a dial error")
	}
}
