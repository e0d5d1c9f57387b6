// WebSocket surface for real-time sync events on localhost.
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rsahai/bizkeeper/internal/models"
	"github.com/rsahai/bizkeeper/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The surface is local-only.
		return strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1")
	},
}

// WSClient is one connected desktop client.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active client connections and broadcasts sync events.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// Sync event types delivered to clients.
const (
	EventSyncStarted     = "sync.started"
	EventSyncCompleted   = "sync.completed"
	EventSyncItemEvicted = "sync.item_evicted"
)

// NewWSHub creates a hub and starts its broadcast loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

// Close stops the broadcast loop and disconnects every client. Safe to call
// more than once.
func (h *WSHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *WSHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Int("total", total).Msg("ws client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Int("total", total).Msg("ws client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client.
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every connected client.
func (h *WSHub) Broadcast(eventType string, data map[string]any) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	bytes, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Msg("marshal ws message")
		return
	}
	h.broadcast <- bytes
}

// SyncStarted implements sync.Broadcaster.
func (h *WSHub) SyncStarted(pending int) {
	h.Broadcast(EventSyncStarted, map[string]any{
		"pending": pending,
	})
}

// SyncCompleted implements sync.Broadcaster.
func (h *WSHub) SyncCompleted(delivered, evicted int, took time.Duration) {
	h.Broadcast(EventSyncCompleted, map[string]any{
		"delivered":   delivered,
		"evicted":     evicted,
		"duration_ms": took.Milliseconds(),
	})
}

// ItemEvicted implements sync.Broadcaster.
func (h *WSHub) ItemEvicted(item models.SyncItem) {
	h.Broadcast(EventSyncItemEvicted, map[string]any{
		"seq":        item.LocalSeq,
		"op":         string(item.Op),
		"collection": item.Collection,
		"entity_id":  item.EntityID,
		"last_error": item.LastError,
	})
}

// ServeWS upgrades an HTTP request to a WebSocket connection.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := &WSClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	for {
		// Clients only listen; reads exist to detect disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
