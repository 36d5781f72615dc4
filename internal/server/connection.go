package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/chiptable/internal/game"
)

// Connection represents a WebSocket connection to a client. A connection
// may watch any number of tables and run any operation.
type Connection struct {
	conn          *websocket.Conn
	send          chan *Message
	logger        *log.Logger
	clock         quartz.Clock
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
	closeOnce     sync.Once
	subscriptions map[string]context.CancelFunc
	gameService   *GameService
	handlers      map[MessageType]messageHandler
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService, handlers map[MessageType]messageHandler, clock quartz.Clock) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:          conn,
		send:          make(chan *Message, 256),
		logger:        logger.WithPrefix("conn"),
		clock:         clock,
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[string]context.CancelFunc),
		gameService:   gameService,
		handlers:      handlers,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection and ends its subscriptions
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A client that cannot keep up
// is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
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
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)

	switch msg.Type {
	case MessageTypeSubscribe:
		var data TableRefData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse subscribe data")
			return
		}
		c.handleSubscribe(msg.RequestID, data.TableID)

	case MessageTypeUnsubscribe:
		var data TableRefData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse unsubscribe data")
			return
		}
		c.handleUnsubscribe(msg.RequestID, data.TableID)

	default:
		handler, ok := c.handlers[msg.Type]
		if !ok {
			c.sendError(msg.RequestID, "unknown_message_type", "Unknown message type: "+msg.Type.String())
			return
		}

		res, err := handler(c.ctx, msg.Data)
		if err != nil {
			_, data := classifyError(err)
			c.sendError(msg.RequestID, data.Code, data.Message)
			return
		}
		c.reply(MessageTypeResult, msg.RequestID, res)
	}
}

func (c *Connection) handleSubscribe(requestID, tableID string) {
	c.mu.Lock()
	_, already := c.subscriptions[tableID]
	c.mu.Unlock()
	if already {
		c.reply(MessageTypeSubscribed, requestID, TableRefData{TableID: tableID})
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	tables, err := c.gameService.Subscribe(ctx, tableID)
	if err != nil {
		cancel()
		_, data := classifyError(err)
		c.sendError(requestID, data.Code, data.Message)
		return
	}

	c.mu.Lock()
	c.subscriptions[tableID] = cancel
	c.mu.Unlock()

	c.logger.Info("Subscribed", "table", tableID)
	c.reply(MessageTypeSubscribed, requestID, TableRefData{TableID: tableID})

	go c.forward(tables)
}

// forward relays table snapshots until the subscription ends
func (c *Connection) forward(tables <-chan game.Table) {
	for table := range tables {
		msg, err := NewMessage(MessageTypeTableSnapshot, table)
		if err != nil {
			c.logger.Error("Failed to create snapshot message", "error", err)
			continue
		}
		if err := c.SendMessage(msg); err != nil {
			return
		}
	}
}

func (c *Connection) handleUnsubscribe(requestID, tableID string) {
	c.mu.Lock()
	cancel, ok := c.subscriptions[tableID]
	delete(c.subscriptions, tableID)
	c.mu.Unlock()

	if ok {
		cancel()
		c.logger.Info("Unsubscribed", "table", tableID)
	}
	c.reply(MessageTypeUnsubscribed, requestID, TableRefData{TableID: tableID})
}

func (c *Connection) reply(messageType MessageType, requestID string, data any) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg) // Ignore send errors
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	c.reply(MessageTypeError, requestID, ErrorData{
		Code:    code,
		Message: message,
	})
}
