package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultHeartbeatInterval between liveness probes
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultSendTimeout bounds a single write to one client
	DefaultSendTimeout = 5 * time.Second

	// redistributeKey flags an inbound envelope for re-broadcast to the other clients
	redistributeKey = "broadcast"
)

// BroadcastResult counts the outcome of one broadcast
type BroadcastResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Option configures a Hub
type Option func(*Hub)

// WithHeartbeatInterval overrides DefaultHeartbeatInterval
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeatInterval = d
		}
	}
}

// WithSendTimeout overrides DefaultSendTimeout
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

// WithRegistry makes the hub use an existing registry
func WithRegistry(r *Registry) Option {
	return func(h *Hub) {
		if r != nil {
			h.registry = r
		}
	}
}

// Hub fans order events out to every registered client
type Hub struct {
	registry          *Registry
	logger            *zap.Logger
	heartbeatInterval time.Duration
	sendTimeout       time.Duration

	mu               sync.Mutex
	closed           bool
	heartbeatRunning bool
	heartbeatCancel  context.CancelFunc
	heartbeatDone    chan struct{}
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		registry:          NewRegistry(),
		logger:            logger,
		heartbeatInterval: DefaultHeartbeatInterval,
		sendTimeout:       DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the hub's connection registry
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register adds an accepted, authenticated connection and makes sure the
// heartbeat is running.
func (h *Hub) Register(conn Conn, userID int) *Client {
	client := newClient(conn, userID)
	h.registry.Register(client, userID)
	h.logger.Info("websocket client connected",
		zap.String("client_id", client.ID),
		zap.Int("user_id", userID),
		zap.Int("connections", h.registry.Count()))
	h.ensureHeartbeat()
	return client
}

// Unregister removes a client; calling it twice is harmless
func (h *Hub) Unregister(c *Client) {
	if h.registry.Unregister(c) {
		h.logger.Info("websocket client disconnected",
			zap.String("client_id", c.ID),
			zap.Int("user_id", c.UserID),
			zap.Int("connections", h.registry.Count()))
	}
}

// Broadcast sends msg to every live client
func (h *Hub) Broadcast(ctx context.Context, msg any) BroadcastResult {
	return h.fanOut(ctx, msg, nil)
}

// BroadcastExcept sends msg to every live client but excluded
func (h *Hub) BroadcastExcept(ctx context.Context, msg any, excluded *Client) BroadcastResult {
	return h.fanOut(ctx, msg, excluded)
}

func (h *Hub) fanOut(ctx context.Context, msg any, excluded *Client) BroadcastResult {
	recipients := h.registry.Snapshot(excluded)
	eventType := messageType(msg)
	if len(recipients) == 0 {
		h.logger.Debug("no websocket clients for broadcast", zap.String("type", eventType))
		return BroadcastResult{}
	}

	payload, err := encodeMessage(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.String("type", eventType), zap.Error(err))
		return BroadcastResult{}
	}

	failed := h.sendAll(ctx, recipients, payload)
	result := BroadcastResult{
		Attempted: len(recipients),
		Delivered: len(recipients) - len(failed),
		Failed:    len(failed),
	}
	h.logger.Debug("broadcast delivered",
		zap.String("type", eventType),
		zap.Int("delivered", result.Delivered),
		zap.Int("attempted", result.Attempted))

	h.drop(failed, "send failed")
	return result
}

// sendAll writes payload to every recipient concurrently and returns the ones that failed
func (h *Hub) sendAll(ctx context.Context, recipients []*Client, payload string) []*Client {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*Client
	)
	for _, c := range recipients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
			defer cancel()
			if err := c.send(sendCtx, payload); err != nil {
				h.logger.Warn("failed to send to websocket client",
					zap.String("client_id", c.ID),
					zap.Int("user_id", c.UserID),
					zap.Error(err))
				mu.Lock()
				failed = append(failed, c)
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return failed
}

// drop unregisters and closes clients found dead
func (h *Hub) drop(clients []*Client, reason string) {
	for _, c := range clients {
		h.Unregister(c)
		if err := c.close(CloseNormal, reason); err != nil {
			h.logger.Debug("close after failure", zap.String("client_id", c.ID), zap.Error(err))
		}
	}
}

func (h *Hub) ensureHeartbeat() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.heartbeatRunning {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.heartbeatRunning = true
	h.heartbeatCancel = cancel
	h.heartbeatDone = make(chan struct{})
	go h.heartbeat(ctx, h.heartbeatDone)
}

// heartbeat probes every client on each tick. It exits when cancelled, or when
// a tick finds nobody connected; the next Register starts it again.
func (h *Hub) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if h.stopHeartbeatIfIdle() {
			return
		}
		h.Sweep(ctx)
	}
}

func (h *Hub) stopHeartbeatIfIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.registry.Count() > 0 {
		return false
	}
	h.heartbeatRunning = false
	h.heartbeatCancel()
	return true
}

// Sweep sends one liveness probe to every client and drops those that fail.
// It returns the number of clients dropped.
func (h *Hub) Sweep(ctx context.Context) int {
	clients := h.registry.Snapshot(nil)
	if len(clients) == 0 {
		return 0
	}
	dead := h.sendAll(ctx, clients, PingMessage)
	if len(dead) > 0 {
		h.logger.Warn("heartbeat dropped dead websocket clients", zap.Int("dropped", len(dead)))
	}
	h.drop(dead, "heartbeat failed")
	return len(dead)
}

// HeartbeatRunning reports whether the heartbeat loop is active
func (h *Hub) HeartbeatRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heartbeatRunning
}

// Close stops the heartbeat. Registered clients are left to their handlers.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	cancel, done := h.heartbeatCancel, h.heartbeatDone
	h.heartbeatRunning = false
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Serve runs the receive loop for an authenticated connection until the
// client disconnects, a receive fails or ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, conn Conn, userID int) {
	client := h.Register(conn, userID)
	defer h.Unregister(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		// unblocks Receive on transports that ignore ctx
		_ = conn.Close(CloseNormal, "server closing")
	}()

	for {
		text, err := conn.Receive(ctx)
		if err != nil {
			h.logger.Debug("websocket receive ended", zap.String("client_id", client.ID), zap.Error(err))
			return
		}
		h.handleInbound(ctx, client, text)
	}
}

func (h *Hub) handleInbound(ctx context.Context, client *Client, text string) {
	switch text {
	case PingMessage:
		sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
		if err := client.send(sendCtx, PongMessage); err != nil {
			h.logger.Warn("failed to answer ping", zap.String("client_id", client.ID), zap.Error(err))
		}
		return
	case PongMessage:
		return
	}

	envelope, ok := parseEnvelope(text)
	if !ok {
		return
	}
	if !redistributable(envelope) {
		return
	}

	delete(envelope, redistributeKey)
	if _, ok := envelope["user_id"]; !ok {
		envelope["user_id"] = json.RawMessage(fmt.Sprintf("%d", client.UserID))
	}
	h.BroadcastExcept(ctx, envelope, client)
}

// parseEnvelope accepts a JSON object carrying a string "type"; anything else is ignored
func parseEnvelope(text string) (map[string]json.RawMessage, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &envelope); err != nil || envelope == nil {
		return nil, false
	}
	var eventType string
	if err := json.Unmarshal(envelope["type"], &eventType); err != nil || eventType == "" {
		return nil, false
	}
	return envelope, true
}

func redistributable(envelope map[string]json.RawMessage) bool {
	var flag bool
	if err := json.Unmarshal(envelope[redistributeKey], &flag); err != nil {
		return false
	}
	return flag
}

func encodeMessage(msg any) (string, error) {
	switch m := msg.(type) {
	case string:
		return m, nil
	case []byte:
		return string(m), nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func messageType(msg any) string {
	switch m := msg.(type) {
	case Event:
		return m.Type
	case *Event:
		return m.Type
	case map[string]json.RawMessage:
		var t string
		_ = json.Unmarshal(m["type"], &t)
		return t
	case map[string]any:
		t, _ := m["type"].(string)
		return t
	}
	return ""
}
