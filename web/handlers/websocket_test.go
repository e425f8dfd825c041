package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
	"github.com/scrypster/companion/web/handlers"
)

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestWebSocketHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub(handlers.OriginsFor(6363), zap.NewNop())
	defer hub.Stop()

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, upgradeRequest("http://evil.com"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Forbidden")
}

func TestWebSocketHub_ConfiguredOrigins(t *testing.T) {
	hub := handlers.NewWebSocketHub([]string{"https://notes.example.com"}, nil)
	defer hub.Stop()

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, upgradeRequest("http://localhost:6363"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOriginsFor(t *testing.T) {
	assert.Equal(t, []string{"localhost:8080", "127.0.0.1:8080"}, handlers.OriginsFor(8080))
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})

	hub.Broadcast(map[string]interface{}{
		"type": "test",
		"data": "hello",
	})

	select {
	case msg := <-received:
		assert.Contains(t, string(msg), "test")
		assert.Contains(t, string(msg), "hello")
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for broadcast message")
	}
}

func TestWebSocketHub_NotifyWrapsEvent(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})

	hub.Notify(types.NewEvent(types.EventMemoryCreated, "p1", "m1"))

	select {
	case raw := <-received:
		var msg struct {
			Type string      `json:"type"`
			Data types.Event `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, string(types.EventMemoryCreated), msg.Type)
		assert.Equal(t, "m1", msg.Data.MemoryID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestWebSocketHub_ClientCount(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil, nil)
	var last atomic.Int64
	hub.OnClientsChanged(func(n int) { last.Store(int64(n)) })
	go hub.Run()

	client := &handlers.MockClient{SendChan: make(chan []byte, 1)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return last.Load() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	hub.Stop()
	assert.Zero(t, last.Load())
}
