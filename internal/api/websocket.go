package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/infrastructure/config"
	"github.com/google/xdtk/internal/infrastructure/logging"
)

// Message types on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// ChannelEvents carries every device event.
	ChannelEvents = "events"

	streamBuffer = 256
)

// DeviceChannel returns the channel carrying one device's events.
func DeviceChannel(id int) string {
	return ChannelEvents + "." + strconv.Itoa(id)
}

// parseChannel splits "events" or "events.{id}". all is true for the
// device-wide channel.
func parseChannel(ch string) (id int, all, ok bool) {
	if ch == ChannelEvents {
		return device.NoID, true, true
	}
	rest, found := strings.CutPrefix(ch, ChannelEvents+".")
	if !found {
		return 0, false, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, false, false
	}
	return id, false, true
}

// WSMessage is one frame on the event stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels to add or remove.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame with the payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// interest is the set of devices a client listens to.
type interest struct {
	all bool
	ids map[int]struct{}
}

func (in *interest) wants(id int) bool {
	if in.all {
		return true
	}
	_, ok := in.ids[id]
	return ok
}

// Hub relays device events to WebSocket clients. It is a dispatch
// listener and never blocks the tick loop.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Uint64
}

// WSClient is one connected stream.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	filter interest

	done      chan struct{}
	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware already vetted the origin.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

func newWSClient(h *Hub, conn *websocket.Conn, buffer int) *WSClient {
	return &WSClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, buffer),
		filter: interest{ids: make(map[int]struct{})},
		done:   make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// Unregister removes a client and stops its writer. Safe to call twice.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.stop()
	h.logger.Debug("stream client disconnected", "clients", n)
}

// Notify sends ev to every client interested in its device.
func (h *Hub) Notify(ev device.Event) {
	rec := device.Flatten(ev)

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(rec.DeviceID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: string(rec.Kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   rec,
	})
	if err != nil {
		h.logger.Error("encoding stream event", "kind", rec.Kind, "error", err)
		return
	}
	for _, c := range targets {
		if !c.offer(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many event frames slow clients missed.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, streamBuffer)
	s.hub.Register(c)

	ping, pong := wsTimings(s.wsCfg)
	go c.writeLoop(ping, pong)
	go c.readLoop(int64(s.wsCfg.MaxMessageSize), ping+pong)
}

// wsTimings returns the ping interval and pong wait, defaulting unset values.
func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pong = time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = 10 * time.Second
	}
	return ping, pong
}

func (c *WSClient) wants(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.wants(id)
}

// offer queues data without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *WSClient) offer(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// stop tells the writer to send a close frame and hang up.
func (c *WSClient) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readLoop handles client frames until the connection fails. Any frame,
// including a pong, extends the read deadline by idle.
func (c *WSClient) readLoop(limit int64, idle time.Duration) {
	defer c.hub.Unregister(c)

	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend("")
		c.handle(data)
	}
}

func (c *WSClient) writeLoop(ping, wait time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) bool {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(wait))
		return c.conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case <-c.done:
			//nolint:errcheck // connection is closing anyway
			c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
			return
		case data := <-c.send:
			if !write(websocket.TextMessage, data) {
				c.hub.Unregister(c)
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.changeInterest(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// changeInterest applies a subscribe or unsubscribe. Every channel is
// checked before any is applied.
func (c *WSClient) changeInterest(req wsRequest) {
	var sub WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
		c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
		return
	}

	type parsed struct {
		id  int
		all bool
	}
	channels := make([]parsed, 0, len(sub.Channels))
	for _, ch := range sub.Channels {
		id, all, ok := parseChannel(ch)
		if !ok {
			c.reply(req.ID, WSTypeError, errorPayload("unknown channel: "+ch))
			return
		}
		channels = append(channels, parsed{id: id, all: all})
	}

	adding := req.Type == WSTypeSubscribe
	c.mu.Lock()
	for _, p := range channels {
		switch {
		case p.all:
			c.filter.all = adding
		case adding:
			c.filter.ids[p.id] = struct{}{}
		default:
			delete(c.filter.ids, p.id)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if !adding {
		key = "unsubscribed"
	}
	c.reply(req.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.offer(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
