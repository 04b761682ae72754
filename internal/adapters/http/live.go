package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// liveClient is one open page subscribed to a database
type liveClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	database string
}

// Hub fans database events out to the pages viewing that database. A single
// goroutine (Run) owns the client registry.
type Hub struct {
	clients    map[string]map[*liveClient]bool
	broadcast  chan entities.CollectionEvent
	register   chan *liveClient
	unregister chan *liveClient
	done       chan struct{}
	logger     *logger.Logger
}

// NewHub creates a hub; call Run to start it
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*liveClient]bool),
		broadcast:  make(chan entities.CollectionEvent, 256),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("live"),
	}
}

// Publish queues an event for delivery. It never blocks; events are dropped
// when the queue is full.
func (h *Hub) Publish(event entities.CollectionEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warnw("Live update queue full, dropping event", "type", event.Type, "database", event.Database)
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*liveClient]bool)
			return

		case client := <-h.register:
			if h.clients[client.database] == nil {
				h.clients[client.database] = make(map[*liveClient]bool)
			}
			h.clients[client.database][client] = true

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Errorw("Failed to encode live event", "error", err)
				continue
			}
			for client := range h.clients[event.Database] {
				select {
				case client.send <- payload:
				default:
					// slow reader
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *liveClient) {
	clients, ok := h.clients[client.database]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.database)
	}
}

// readPump only services control frames; pages never send data
func (c *liveClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debugw("Live connection closed", "database", c.database, "error", err)
			}
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// LiveHandler upgrades page connections and subscribes them to the
// session's current database
type LiveHandler struct {
	hub      *Hub
	sessions *services.SessionService
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewLiveHandler creates a new websocket handler
func NewLiveHandler(hub *Hub, sessions *services.SessionService, logger *logger.Logger) *LiveHandler {
	return &LiveHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Serve handles GET /ws
func (h *LiveHandler) Serve(c echo.Context) error {
	database := h.sessions.Current(c.Request().Context(), SessionID(c))

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debugw("Websocket upgrade failed", "error", err)
		return nil
	}

	client := &liveClient{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		database: database,
	}
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}

var _ ports.Notifier = (*Hub)(nil)
