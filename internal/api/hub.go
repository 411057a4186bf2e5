package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seagrayinc/irremote/pkg/dispatch"
)

// envelope is the wire format for WebSocket messages.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Outbound message types.
const (
	msgTransmission = "transmission"
	msgAccepted     = "accepted"
	msgError        = "error"
)

type actionMessage struct {
	Action string `json:"action"`
}

type errorMessage struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error"`
}

// Hub fans transmission results out to WebSocket clients. Slow clients
// are disconnected when their send buffer fills.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

func NewHub(logger *slog.Logger, sendBuf, broadcastBuf int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sendBuf <= 0 {
		sendBuf = 32
	}
	if broadcastBuf <= 0 {
		broadcastBuf = 128
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, broadcastBuf),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects all
// clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				if !c.enqueue(msg) {
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// Observe broadcasts a transmission result. It never blocks; when the hub
// queue is full the message is dropped.
func (h *Hub) Observe(r dispatch.Result) {
	msg, err := json.Marshal(envelope{Type: msgTransmission, Data: r.Record()})
	if err != nil {
		h.logger.Error("ws marshal result", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// Client is one WebSocket connection.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *slog.Logger

	// mu guards send against a close racing an enqueue.
	mu     sync.Mutex
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		remoteAddr: remoteAddr,
		logger:     h.logger,
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	close(c.send)
}

// enqueue queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// reply queues a message for this client only.
func (c *Client) reply(typ string, data any) {
	msg, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

// writePump exits when the hub closes send or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Info("ws write failed", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump routes inbound {"action": ...} messages until the connection
// fails, then unregisters the client.
func (c *Client) readPump(route func(string) error) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		default:
			_ = c.conn.Close()
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.logger.Debug("ws client closed", "remote_addr", c.remoteAddr, "code", ce.Code)
			} else {
				c.logger.Debug("ws read failed", "remote_addr", c.remoteAddr, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var m actionMessage
		if err := json.Unmarshal(data, &m); err != nil || m.Action == "" {
			c.reply(msgError, errorMessage{Error: "expected {\"action\": name}"})
			continue
		}
		if err := route(m.Action); err != nil {
			c.reply(msgError, errorMessage{Action: m.Action, Error: err.Error()})
			continue
		}
		c.reply(msgAccepted, actionMessage{Action: m.Action})
	}
}
