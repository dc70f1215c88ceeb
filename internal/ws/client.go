package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must stay below pongWait
	maxMessageSize = 4 << 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
	Subprotocols:    []string{ProtocolZstd, ProtocolJSON},
}

// Client is one browser page connected to the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	connID   string
	groups   map[string]bool
	logger   *zap.Logger
	protocol string
	closed   bool // guarded by hub.mu
}

// HandleWS upgrades the request and, when a "session" query parameter is
// given, joins that session's group right away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("session")
	if group != "" && !h.validGroup(group) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	// Same preference order as the upgrader uses to answer the handshake.
	protocol := ProtocolJSON
	requested := websocket.Subprotocols(r)
	for _, proto := range upgrader.Subprotocols {
		if slices.Contains(requested, proto) {
			protocol = proto
			break
		}
	}

	h.logger.Debug("websocket subprotocol negotiated",
		zap.String("protocol", protocol),
		zap.Strings("requested", requested),
	)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		connID:   uuid.New().String(),
		groups:   make(map[string]bool),
		logger:   h.logger,
		protocol: protocol,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	client.enqueue(connectedFrame(client.connID))
	if group != "" {
		h.JoinGroup(client, group)
	}

	go client.writePump()
	go client.readPump()
}

// enqueue frames a control message for this client's protocol.
func (c *Client) enqueue(msg []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	if c.protocol == ProtocolZstd {
		msg = c.hub.encoder.Compress(msg)
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Debug("dropping control message, buffer full", zap.String("connID", c.connID))
	}
}

// closeSend closes the send channel once. Callers hold hub.mu for writing.
func (c *Client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes control requests until the page goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		_ = c.conn.Close()
	}()

	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	c.conn.SetReadLimit(maxMessageSize)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err == nil {
			c.handle(data)
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.Debug("page read failed", zap.String("connID", c.connID), zap.Error(err))
		}
		return
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. A closed buffer ends the connection with a close frame.
func (c *Client) writePump() {
	pings := time.NewTicker(pingPeriod)
	defer func() {
		pings.Stop()
		_ = c.conn.Close()
	}()

	kind := websocket.TextMessage
	if c.protocol == ProtocolZstd {
		kind = websocket.BinaryMessage
	}
	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, open := <-c.send:
			if !open {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(kind, msg); err != nil {
				c.logger.Debug("page write failed", zap.String("connID", c.connID), zap.Error(err))
				return
			}
		case <-pings.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one control request. Requests are always plain JSON
// whatever the negotiated downstream protocol.
func (c *Client) handle(data []byte) {
	req, err := parseRequest(data)
	if err != nil {
		c.logger.Debug("ignoring page request", zap.String("connID", c.connID), zap.Error(err))
		return
	}

	ok := true
	switch req.Type {
	case "ping":
		c.enqueue(pongFrame)
		return
	case "joinGroup":
		if ok = c.hub.JoinGroup(c, req.Group); !ok {
			c.logger.Debug("page asked for unknown session", zap.String("connID", c.connID), zap.String("session", req.Group))
		}
	case "leaveGroup":
		c.hub.LeaveGroup(c, req.Group)
	}
	if req.AckID != nil {
		c.enqueue(ackFor(*req.AckID, ok))
	}
}
