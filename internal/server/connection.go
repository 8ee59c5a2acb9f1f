package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/session"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	origin    string
	accounts  map[string]bool
	rounds    map[string]bool
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	service   *session.Service
}

// NewConnection creates a new connection wrapper. origin tags the
// connection's own requests so their events are not echoed back.
func NewConnection(conn *websocket.Conn, origin string, logger *log.Logger, service *session.Service) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:     conn,
		send:     make(chan *Message, 256),
		origin:   origin,
		accounts: make(map[string]bool),
		rounds:   make(map[string]bool),
		logger:   logger.WithPrefix("conn").With("conn", origin),
		ctx:      ctx,
		cancel:   cancel,
		service:  service,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cancel()
		close(c.send)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client without blocking. A full
// buffer closes the connection.
func (c *Connection) SendMessage(msg *Message) error {
	c.mu.RLock()
	if c.ctx.Err() != nil {
		c.mu.RUnlock()
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) watchAccount(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account] = true
}

func (c *Connection) watchRound(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rounds[id] = true
}

// Watches reports whether ev concerns a round or account this connection
// has touched
func (c *Connection) Watches(ev session.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rounds[ev.Snapshot.ID] || c.accounts[ev.Account]
}

// Notify forwards a service event unless this connection caused it
func (c *Connection) Notify(ev session.Event) {
	if ev.Origin == c.origin || !c.Watches(ev) {
		return
	}
	msgType := MessageTypeSnapshot
	if ev.Type == session.EventSettled {
		msgType = MessageTypeSettled
	}
	msg, err := NewMessage(msgType, ev.Snapshot)
	if err != nil {
		c.logger.Error("Failed to encode event", "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time allowed for one request against the session service
	requestTimeout = 10 * time.Second
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
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

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

	ctx, cancel := context.WithTimeout(session.WithOrigin(c.ctx, c.origin), requestTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeOpen:
		var data OpenData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, codeInvalidMessage, "Failed to parse open data")
			return
		}
		if data.Account != "" {
			c.watchAccount(data.Account)
		}
		snap, err := c.service.Open(ctx, data.Account, data.Bet)
		if err == nil {
			c.watchRound(snap.ID)
		}
		c.reply(msg.RequestID, snap, err)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, codeInvalidMessage, "Failed to parse action data")
			return
		}
		action, err := game.ParseAction(data.Action)
		if err != nil {
			c.reply(msg.RequestID, game.Snapshot{}, err)
			return
		}
		c.watchRound(data.RoundID)
		snap, err := c.service.Act(ctx, data.RoundID, action)
		c.reply(msg.RequestID, snap, err)

	case MessageTypeSnapshot:
		var data RoundData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, codeInvalidMessage, "Failed to parse snapshot data")
			return
		}
		snap, err := c.service.Snapshot(data.RoundID)
		if err == nil {
			c.watchRound(data.RoundID)
		}
		c.reply(msg.RequestID, snap, err)

	case MessageTypeEnd:
		var data RoundData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, codeInvalidMessage, "Failed to parse end data")
			return
		}
		snap, err := c.service.End(ctx, data.RoundID)
		c.reply(msg.RequestID, snap, err)

	case MessageTypeBalance:
		var data BalanceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, codeInvalidMessage, "Failed to parse balance data")
			return
		}
		balance, err := c.service.Balance(ctx, data.Account)
		if err != nil {
			c.reply(msg.RequestID, game.Snapshot{}, err)
			return
		}
		c.respond(msg.RequestID, MessageTypeBalanceResponse, BalanceResponseData{Account: data.Account, Balance: balance})

	default:
		c.logger.Warn("Unknown message type", "type", msg.Type)
		c.sendError(msg.RequestID, codeUnknownMessage, "Unknown message type: "+msg.Type.String())
	}
}

// reply answers a request with the round snapshot, or an error carrying the
// latest valid snapshot
func (c *Connection) reply(requestID string, snap game.Snapshot, err error) {
	if err != nil {
		c.logger.Debug("Request failed", "request", requestID, "error", err)
		c.respond(requestID, MessageTypeError, errorData(err, snap))
		return
	}
	msgType := MessageTypeSnapshot
	if snap.Done() {
		msgType = MessageTypeSettled
	}
	c.respond(requestID, msgType, snap)
}

func (c *Connection) sendError(requestID, code, message string) {
	c.respond(requestID, MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) respond(requestID string, msgType MessageType, data any) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", msgType, "error", err)
		return
	}
	msg.RequestID = requestID
	if err := c.SendMessage(msg); err != nil {
		c.logger.Debug("Failed to send message", "type", msgType, "error", err)
	}
}
