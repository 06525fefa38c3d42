// Package ws pushes outbox events to connected dashboard clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fieldops/internal/apperr"
	"fieldops/internal/events"
	"fieldops/internal/middleware"
	"fieldops/internal/models"
	"fieldops/internal/permission"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type client struct {
	conn  *websocket.Conn
	actor models.Actor
	mu    sync.Mutex
}

func (c *client) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, data)
}

// topicPermissions is the view key a client needs to receive a topic.
var topicPermissions = map[string]string{
	events.TopicOrders:   permission.OrdersView,
	events.TopicRequests: permission.RequestsView,
	events.TopicWallet:   permission.WalletView,
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	authz    middleware.PermissionChecker
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHub sends each client only the events its role and scope allow,
// the same records the list endpoints would return to it.
func NewHub(authz middleware.PermissionChecker, log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		authz:   authz,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends the event in message, wrapped with its topic, to every client
// allowed to see it. A client whose write fails is dropped; delivery to the
// others continues.
func (h *Hub) Publish(_ context.Context, topic, _ string, message []byte) error {
	ev, err := events.Decode(message)
	if err != nil {
		return err
	}
	canSee, err := scope(topic, ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(events.Envelope{Topic: topic, Event: ev})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if h.allowed(c.actor, topic) && canSee(c.actor) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws_write_failed", "error", err)
			h.unregister(c)
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and holds it open until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		middleware.WriteError(w, apperr.Unauthenticated("no caller"))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", "error", err)
		return
	}
	c := &client{conn: conn, actor: actor}
	h.log.Info("ws_client_connected", "clients", h.register(c))

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	h.log.Info("ws_client_disconnected")
}

func (h *Hub) allowed(a models.Actor, topic string) bool {
	key, ok := topicPermissions[topic]
	return ok && h.authz.Allowed(a.Role, key)
}

// scope decodes the record carried by ev once and returns the per-actor check.
func scope(topic string, ev events.Event) (func(models.Actor) bool, error) {
	switch topic {
	case events.TopicOrders:
		var o models.Order
		if err := json.Unmarshal(ev.Data, &o); err != nil {
			return nil, fmt.Errorf("decode %s order: %w", ev.Type, err)
		}
		return func(a models.Actor) bool { return a.CanSeeOrder(&o) }, nil
	case events.TopicRequests:
		var r models.OrderRequest
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return nil, fmt.Errorf("decode %s request: %w", ev.Type, err)
		}
		return func(a models.Actor) bool { return a.CanSeeRequest(&r) }, nil
	case events.TopicWallet:
		var b models.BillTransaction
		if err := json.Unmarshal(ev.Data, &b); err != nil {
			return nil, fmt.Errorf("decode %s transaction: %w", ev.Type, err)
		}
		return func(a models.Actor) bool { return a.CanSeeBill(&b) }, nil
	}
	return func(models.Actor) bool { return false }, nil
}
