// ABOUTME: WebSocket client for the visualization stream
// ABOUTME: Dials a monitor's viz endpoint and delivers decoded frames
package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Client subscribes to a monitor's visualization stream.
type Client struct {
	addr string

	conn   *websocket.Conn
	frames chan Frame

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for the given host:port endpoint.
func NewClient(addr string) *Client {
	return &Client{
		addr:   addr,
		frames: make(chan Frame, sendQueueLen),
	}
}

// Connect dials the endpoint, consumes the server hello, and starts
// the frame reader.
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/viz"}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial viz endpoint: %w", err)
	}
	c.conn = conn

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	var greeting hello
	if err := json.Unmarshal(data, &greeting); err != nil || greeting.Type != "hello" {
		conn.Close()
		return fmt.Errorf("unexpected greeting: %s", data)
	}
	log.Printf("Connected to %s %s at %s", greeting.Product, greeting.Version, c.addr)

	go c.readLoop()
	return nil
}

// Frames returns the channel of decoded frames. It is closed when the
// connection drops.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.frames)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				log.Printf("Viz stream closed: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "frame" {
			continue
		}

		// Lossy delivery, same policy as the server side.
		select {
		case c.frames <- frame:
		default:
		}
	}
}
