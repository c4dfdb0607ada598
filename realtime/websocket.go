package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// ErrConnectionClosed is returned by Send after the session has been closed
var ErrConnectionClosed = errors.New("websocket connection closed")

type wsConn struct {
	ws        *websocket.Conn
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn adapts a gorilla connection to Conn
func NewWebSocketConn(ws *websocket.Conn) Conn {
	return &wsConn{ws: ws, closed: make(chan struct{})}
}

// Receive returns the next text frame. Binary frames are skipped.
func (c *wsConn) Receive(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) Send(ctx context.Context, text string) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetWriteDeadline(deadline); err != nil {
			return err
		}
	} else {
		_ = c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a close frame and releases the socket. Only the first call has effect.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
