package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// Hub streams updates to websocket clients. A client either follows every
// responder (empty filter) or a single responder id.
type Hub struct {
	source   string
	clients  map[string]map[*Client]struct{}
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type Client struct {
	ResponderID string
	Send        chan []byte
}

func NewHub(source string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		source:  source,
		clients: map[string]map[*Client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "stream_hub")),
	}
}

func (h *Hub) Register(responderID string) *Client {
	client := &Client{
		ResponderID: responderID,
		Send:        make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[responderID] == nil {
		h.clients[responderID] = map[*Client]struct{}{}
	}
	h.clients[responderID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.ResponderID]; ok {
		if _, registered := clients[client]; !registered {
			return
		}
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.ResponderID)
		}
		close(client.Send)
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// Publish sends the update, wrapped in a CloudEvent, to every interested
// client. Slow clients miss updates rather than stall the dispatcher.
func (h *Hub) Publish(_ context.Context, u ResponderLocationUpdate) error {
	ce, err := NewCloudEvent(h.source, LocationUpdateEventType, u)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcast(h.clients[""], payload)
	if u.ResponderID != "" {
		h.broadcast(h.clients[u.ResponderID], payload)
	}
	return nil
}

func (h *Hub) broadcast(clients map[*Client]struct{}, payload []byte) {
	for client := range clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Debug("stream client too slow, update skipped", slog.String("responder_id", client.ResponderID))
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams updates until the
// peer goes away. The optional responderId query parameter filters the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := h.Register(r.URL.Query().Get("responderId"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, client)
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.Unregister(client)
	<-done
	_ = conn.Close()
}

func (h *Hub) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
