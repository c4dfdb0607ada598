package controllers

import (
	"context"
	"net/http"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sgp-fichas/fichas-api/middleware"
	"github.com/sgp-fichas/fichas-api/realtime"
	"go.uber.org/zap"
)

// RealtimeController accepts WebSocket sessions for order notifications
type RealtimeController struct {
	ctx       context.Context
	hub       *realtime.Hub
	validator *validator.Validator
	upgrader  websocket.Upgrader
}

// NewRealtimeController creates the controller. Sessions live until the
// client leaves or ctx is cancelled.
func NewRealtimeController(ctx context.Context, hub *realtime.Hub, jwtValidator *validator.Validator) *RealtimeController {
	return &RealtimeController{
		ctx:       ctx,
		hub:       hub,
		validator: jwtValidator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// desktop clients connect from file:// and arbitrary hosts
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWebSocket handles GET /ws/orders. The session is accepted first and
// then authenticated; a bad token closes it with 1008 before registration.
func (rc *RealtimeController) ServeWebSocket(c *gin.Context) {
	ws, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := realtime.NewWebSocketConn(ws)

	// a malformed Authorization header leaves token empty and fails below
	token, _ := middleware.TokenExtractor(c.Request)
	identity, err := middleware.ResolveIdentity(c.Request.Context(), rc.validator, token)
	if err != nil {
		zap.L().Info("rejected websocket session", zap.String("remote", c.ClientIP()), zap.Error(err))
		_ = conn.Close(realtime.ClosePolicyViolation, "authentication failed")
		return
	}

	rc.hub.Serve(rc.ctx, conn, identity.UserID)
}

// ListConnections handles GET /api/v1/realtime/connections
func (rc *RealtimeController) ListConnections(c *gin.Context) {
	registry := rc.hub.Registry()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total":   registry.Count(),
			"by_user": registry.CountByUser(),
		},
	})
}
