package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents a WebSocket client connection
type Client struct {
	ID           string          // Unique client ID
	UserID       string          // Authenticated user ID
	ConnectionID string          // Matching connection-registry entry
	Conn         *websocket.Conn // WebSocket connection
	Send         chan []byte     // Outbound message channel
	channels     map[string]bool // Subscribed channels
	closed       bool            // Set on unregister; Send is never closed
	done         chan struct{}   // Closed on unregister, unblocks parked sends
	mu           sync.RWMutex    // Protects channels, closed and conn writes
}

// ErrClientClosed is returned by TrySend after the client disconnects.
var ErrClientClosed = errors.New("websocket client closed")

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, userID, connectionID string) *Client {
	return &Client{
		ID:           uuid.New().String(),
		UserID:       userID,
		ConnectionID: connectionID,
		Conn:         conn,
		Send:         make(chan []byte, 256),
		channels:     make(map[string]bool),
		done:         make(chan struct{}),
	}
}

// markClosed flags the client and unblocks any send parked on a full buffer.
// Send itself is never closed: a dispatcher push may be queued on it while
// the socket disconnects, and sending on a closed channel would panic.
func (c *Client) markClosed() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Subscribe adds a channel to the client's subscriptions (internal use only)
func (c *Client) Subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

// Unsubscribe removes a channel from the client's subscriptions (internal use only)
func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// WriteLoop handles outbound messages from the Send channel
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case <-c.done:
			c.close()
			return
		case msg := <-c.Send:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
		}
	}
}

// close closes the WebSocket connection
func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// SendMessage sends a message to the client's Send channel (non-blocking)
func (c *Client) SendMessage(msg []byte) {
	if c.isClosed() {
		return
	}
	select {
	case c.Send <- msg:
	default:
		// Channel full, message dropped
	}
}

// TrySend queues a message, waiting for buffer space until ctx expires or
// the client disconnects. Unlike SendMessage this reports failure, which the
// notification dispatcher needs to decide between DELIVERED and FAILED
// outcomes.
func (c *Client) TrySend(ctx context.Context, msg []byte) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	select {
	case c.Send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
