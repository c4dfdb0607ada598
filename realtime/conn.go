// Package realtime pushes order change notifications to connected clients.
//
// A Hub owns a Registry of live connections keyed by connection and by user,
// probes them with a heartbeat, and fans events out to all of them (or all but
// one). A Scheduler lets request handlers hand an event to the Hub without
// waiting for delivery.
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Control literals exchanged outside the structured event envelope
const (
	PingMessage = "ping"
	PongMessage = "pong"
)

// Close codes used when the hub ends a connection
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
)

// Conn is a bidirectional text transport for one client session
type Conn interface {
	// Receive blocks until a text message arrives or the connection fails
	Receive(ctx context.Context) (string, error)
	// Send writes one text message
	Send(ctx context.Context, text string) error
	// Close ends the session with a close code and reason
	Close(code int, reason string) error
}

// Client is a registered connection together with the user it belongs to
type Client struct {
	ID     string
	UserID int

	conn   Conn
	sendMu sync.Mutex
}

func newClient(conn Conn, userID int) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
	}
}

// send serializes writes: most transports allow only one concurrent writer,
// and heartbeat probes may overlap with broadcasts.
func (c *Client) send(ctx context.Context, text string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Send(ctx, text)
}

func (c *Client) close(code int, reason string) error {
	return c.conn.Close(code, reason)
}
