// Package arbiter claims the conversation floor from the coordinator and
// keeps the claim alive for the life of the process.
package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"buddy/internal/coordinator"
)

const writeWait = 5 * time.Second

// Client holds the arbitration token. The token starts not held and only
// ever moves to held: on a grant, on any coordinator failure, or on Release.
type Client struct {
	url    string
	device string
	dialer *websocket.Dialer
	logger *slog.Logger

	held      atomic.Bool
	granted   atomic.Bool
	writeMu   sync.Mutex
	failOnce  sync.Once
	ready     chan struct{}
	readyOnce sync.Once
}

func NewClient(url, device string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		device: device,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger: logger.With("component", "arbiter"),
		ready:  make(chan struct{}),
	}
}

func (c *Client) HasToken() bool {
	return c.held.Load()
}

// Release forces the token to held. It is idempotent.
func (c *Client) Release() {
	c.held.Store(true)
}

// Ready is closed once the first claim has been answered or has failed.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Run claims the floor and holds the connection open until ctx is done or
// the connection is lost. It never returns an error: every failure leaves
// the token held.
func (c *Client) Run(ctx context.Context) error {
	defer c.markReady()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() == nil {
			c.failOpen("connecting to coordinator", err)
		}
		return nil
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		if c.granted.Load() {
			c.write(conn, coordinator.Message{Type: coordinator.TypeRelease, Device: c.device})
		}
		conn.Close()
	})
	defer stop()

	if err := c.write(conn, coordinator.Message{Type: coordinator.TypeClaim, Device: c.device}); err != nil {
		if ctx.Err() == nil {
			c.failOpen("sending claim", err)
		}
		return nil
	}

	var resp coordinator.Message
	if err := conn.ReadJSON(&resp); err != nil {
		if ctx.Err() == nil {
			c.failOpen("reading claim response", err)
		}
		return nil
	}

	switch resp.Type {
	case coordinator.TypeGranted:
		c.granted.Store(true)
		c.held.Store(true)
		c.logger.Info("floor granted", "device", c.device)
	case coordinator.TypeDenied:
		c.logger.Info("floor held by another device", "device", c.device, "active", resp.Active)
	default:
		c.logger.Warn("unexpected claim response", "type", resp.Type)
	}
	c.markReady()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() == nil {
				c.failOpen("coordinator connection lost", err)
			}
			return nil
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg coordinator.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) failOpen(what string, err error) {
	c.held.Store(true)
	c.failOnce.Do(func() {
		c.logger.Warn(what+", proceeding as floor holder", "error", err)
	})
}

func (c *Client) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}
