// Package client talks to the map server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tilemap/internal/protocol"

	"github.com/coder/websocket"
)

// ErrNotConnected is returned when sending without a connection.
var ErrNotConnected = errors.New("not connected")

// NetworkClient handles WebSocket communication with the server.
type NetworkClient struct {
	conn     *websocket.Conn
	sendChan chan *protocol.Message
	done     chan struct{}
	mu       sync.Mutex

	// Requests waiting for a reply, by message id
	pending map[string]chan *protocol.Message

	// OnMessage receives every message that is not a reply to a Request,
	// such as welcome and cells_changed. It runs on the read goroutine.
	OnMessage    func(*protocol.Message)
	OnDisconnect func(error)

	connected bool
}

// NewNetworkClient creates a new network client.
func NewNetworkClient() *NetworkClient {
	return &NetworkClient{
		sendChan: make(chan *protocol.Message, 64),
		done:     make(chan struct{}),
		pending:  make(map[string]chan *protocol.Message),
	}
}

// WebSocketURL turns a server address into the URL of its WebSocket endpoint.
// Plain host:port addresses use ws://.
func WebSocketURL(serverAddr string) string {
	switch {
	case strings.HasPrefix(serverAddr, "ws://"), strings.HasPrefix(serverAddr, "wss://"):
		return strings.TrimSuffix(serverAddr, "/") + "/ws"
	case strings.HasPrefix(serverAddr, "http://"):
		return "ws://" + strings.TrimSuffix(strings.TrimPrefix(serverAddr, "http://"), "/") + "/ws"
	case strings.HasPrefix(serverAddr, "https://"):
		return "wss://" + strings.TrimSuffix(strings.TrimPrefix(serverAddr, "https://"), "/") + "/ws"
	default:
		return "ws://" + serverAddr + "/ws"
	}
}

// Connect establishes a connection to the server.
func (c *NetworkClient) Connect(ctx context.Context, serverAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := WebSocketURL(serverAddr)
	log.Printf("Connecting to %s", url)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetReadLimit(1 << 22)
	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})

	go c.readPump(conn, c.done)
	go c.writePump(conn, c.done)

	return nil
}

// Disconnect closes the connection.
func (c *NetworkClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return
	}

	c.connected = false
	close(c.done)

	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
	}
}

// IsConnected returns true if connected to server.
func (c *NetworkClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send queues a message to be sent to the server.
func (c *NetworkClient) Send(msg *protocol.Message) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	select {
	case c.sendChan <- msg:
		return nil
	default:
		return errors.New("send queue full")
	}
}

// SendPayload creates and sends a message with the given type and payload.
func (c *NetworkClient) SendPayload(msgType protocol.MessageType, payload interface{}) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Request sends a message and waits for the reply carrying its id.
// An error reply is returned as a *protocol.ErrorPayload.
func (c *NetworkClient) Request(ctx context.Context, msgType protocol.MessageType, payload interface{}) (*protocol.Message, error) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}

	reply := make(chan *protocol.Message, 1)
	c.mu.Lock()
	c.pending[msg.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.Send(msg); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		if r.Type == protocol.TypeError {
			var e protocol.ErrorPayload
			if err := r.ParsePayload(&e); err != nil {
				return nil, err
			}
			return nil, &e
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call performs a Request, checks the reply type and decodes its payload into out.
func (c *NetworkClient) Call(ctx context.Context, msgType protocol.MessageType, payload interface{}, want protocol.MessageType, out interface{}) error {
	reply, err := c.Request(ctx, msgType, payload)
	if err != nil {
		return err
	}
	if reply.Type != want {
		return fmt.Errorf("%s: unexpected reply %s", msgType, reply.Type)
	}
	if out == nil {
		return nil
	}
	return reply.ParsePayload(out)
}

// readPump reads messages from the WebSocket.
func (c *NetworkClient) readPump(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		c.mu.Lock()
		wasConnected := c.connected && c.done == done
		if wasConnected {
			c.connected = false
		}
		c.mu.Unlock()

		if wasConnected && c.OnDisconnect != nil {
			c.OnDisconnect(readErr)
		}
	}()

	for {
		msgType, data, err := conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				select {
				case <-done:
				default:
					log.Printf("WebSocket read error: %v", err)
					readErr = err
				}
			}
			return
		}

		// Only process text messages
		if msgType != websocket.MessageText {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			select {
			case reply <- &msg:
			default:
			}
			continue
		}

		if c.OnMessage != nil {
			c.OnMessage(&msg)
		}
	}
}

// writePump writes messages to the WebSocket.
func (c *NetworkClient) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case msg := <-c.sendChan:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = conn.Write(ctx, websocket.MessageText, data)
			cancel()

			if err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := conn.Ping(ctx)
			cancel()

			if err != nil {
				return
			}
		}
	}
}
