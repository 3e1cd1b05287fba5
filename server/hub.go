package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Message types sent to spectators.
const (
	MessageSnapshot     = "race_snapshot"
	MessageRaceStart    = "race_start"
	MessageRaceFinished = "race_finished"
	MessageSpeed        = "speed_changed"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the JSON envelope for everything sent over the socket.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Sender  string `json:"sender"`
}

// Publisher delivers messages to spectators.
type Publisher interface {
	Publish(msgType string, payload any) error
}

type outbound struct {
	data   []byte
	retain bool
}

// client is one spectator connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected spectators and fans messages out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}

	// Most recent retained message, replayed to late joiners
	latest []byte

	log     *slog.Logger
	metrics *Metrics
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan outbound, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
		metrics:    metrics,
	}
}

// Run is the hub event loop. It returns when ctx is cancelled, closing every
// client's send channel on the way out.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.metrics.SetSpectators(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.clients[c] = true
			if h.latest != nil {
				c.send <- h.latest
			}
			h.metrics.SetSpectators(len(h.clients))
			h.log.Debug("spectator connected", "spectators", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.metrics.SetSpectators(len(h.clients))
			h.log.Debug("spectator disconnected", "spectators", len(h.clients))

		case msg := <-h.broadcast:
			if msg.retain {
				h.latest = msg.data
			}
			for c := range h.clients {
				select {
				case c.send <- msg.data:
				default:
					// Slow spectator: drop it rather than stall the race
					close(c.send)
					delete(h.clients, c)
					h.log.Warn("dropping slow spectator")
				}
			}
			h.metrics.SetSpectators(len(h.clients))
			h.metrics.IncrementBroadcasts()
		}
	}
}

// Broadcast queues raw data for every spectator. It is a no-op once the hub
// has stopped.
func (h *Hub) Broadcast(data []byte) {
	h.enqueue(outbound{data: data})
}

// Publish wraps payload in a Message and broadcasts it. Snapshots are
// retained for spectators who join mid-race.
func (h *Hub) Publish(msgType string, payload any) error {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload, Sender: "system"})
	if err != nil {
		return err
	}
	h.enqueue(outbound{data: data, retain: msgType == MessageSnapshot})
	return nil
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request to a websocket and registers the spectator.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards spectator input and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("spectator read failed", "error", err)
			}
			return
		}
	}
}

// writePump drains the send channel onto the socket until the hub closes it.
func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
