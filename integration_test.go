package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sgp-fichas/fichas-api/config"
	"github.com/sgp-fichas/fichas-api/controllers"
	"github.com/sgp-fichas/fichas-api/middleware"
	"github.com/sgp-fichas/fichas-api/realtime"
	"github.com/sgp-fichas/fichas-api/services"
	"github.com/sgp-fichas/fichas-api/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// AppIntegrationSuite runs the fully wired router against sqlite and a live listener
type AppIntegrationSuite struct {
	suite.Suite
	hub       *realtime.Hub
	scheduler *realtime.Scheduler
	server    *httptest.Server
	cancel    context.CancelFunc
	token     string
}

func (s *AppIntegrationSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(controllers.RegisterValidators())

	cfg := testutil.TestConfig()
	config.SetConfig(cfg)
	db := testutil.SetupTestDB(s.T())

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())

	s.hub = realtime.NewHub(zap.NewNop(), realtime.WithHeartbeatInterval(time.Hour))
	s.scheduler = realtime.NewScheduler(s.hub, zap.NewNop())
	s.scheduler.Start(ctx)
	services.SetOrderService(services.NewOrderService(db, s.scheduler, services.NewMockImageService(), zap.NewNop()))

	jwtValidator, err := middleware.NewTokenValidator(cfg)
	s.Require().NoError(err)

	s.server = httptest.NewServer(setupRouter(ctx, cfg, s.hub, jwtValidator))
	s.token = testutil.SignToken(s.T(), testutil.TokenOptions{UserID: 3, Username: "caixa"})
}

func (s *AppIntegrationSuite) TearDownTest() {
	s.cancel()
	s.scheduler.Wait()
	s.hub.Close()
	s.server.Close()
	services.SetOrderService(nil)
	config.SetConfig(nil)
}

func TestAppIntegrationSuite(t *testing.T) {
	suite.Run(t, new(AppIntegrationSuite))
}

func (s *AppIntegrationSuite) request(method, path, token string, body interface{}) (int, map[string]interface{}) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", testutil.BearerHeader(token))
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var response map[string]interface{}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
	return resp.StatusCode, response
}

func (s *AppIntegrationSuite) dial(userID int) *websocket.Conn {
	token := testutil.SignToken(s.T(), testutil.TokenOptions{UserID: userID})
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/orders?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

func (s *AppIntegrationSuite) readEvent(conn *websocket.Conn) map[string]interface{} {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)

	var event map[string]interface{}
	s.Require().NoError(json.Unmarshal(data, &event))
	return event
}

func (s *AppIntegrationSuite) TestHealthEndpoint() {
	status, response := s.request(http.MethodGet, "/api/v1/health", "", nil)
	s.Equal(http.StatusOK, status)
	s.Equal(true, response["success"])
	s.Equal("Order notification API is running", response["message"])
}

func (s *AppIntegrationSuite) TestDatabaseStatus() {
	status, response := s.request(http.MethodGet, "/api/v1/database/status", "", nil)
	s.Equal(http.StatusOK, status)
	s.Contains(response["tables"], "pedidos")
}

func (s *AppIntegrationSuite) TestProtectedRoutesRequireToken() {
	paths := []string{
		"/api/v1/orders",
		"/api/v1/orders/1",
		"/api/v1/notifications/latest",
		"/api/v1/realtime/connections",
	}
	for _, path := range paths {
		status, response := s.request(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, status, path)
		s.Equal(false, response["success"], path)
	}

	expired := testutil.SignToken(s.T(), testutil.TokenOptions{UserID: 3, Expiry: time.Now().Add(-time.Hour)})
	status, _ := s.request(http.MethodGet, "/api/v1/orders", expired, nil)
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.request(http.MethodGet, "/api/v1/orders", s.token, nil)
	s.Equal(http.StatusOK, status)
}

func (s *AppIntegrationSuite) TestCORSPreflight() {
	req, err := http.NewRequest(http.MethodOptions, s.server.URL+"/api/v1/orders", nil)
	s.Require().NoError(err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "PATCH")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusNoContent, resp.StatusCode)
	s.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func (s *AppIntegrationSuite) TestOrderLifecycleReachesConnectedClients() {
	office := s.dial(1)
	floor := s.dial(2)
	s.Require().Eventually(func() bool {
		return s.hub.Registry().Count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	status, response := s.request(http.MethodPost, "/api/v1/orders", s.token, map[string]interface{}{
		"cliente": "Gráfica Sol",
		"items":   []map[string]interface{}{{"descricao": "Lona 2x1"}},
	})
	s.Require().Equal(http.StatusCreated, status)
	id := response["data"].(map[string]interface{})["id"].(float64)

	for _, conn := range []*websocket.Conn{office, floor} {
		event := s.readEvent(conn)
		s.Equal(realtime.EventOrderCreated, event["type"])
		s.Equal(id, event["order_id"])
		s.Equal(float64(3), event["user_id"])
		s.Equal("caixa", event["username"])
		order := event["order"].(map[string]interface{})
		s.Equal("Gráfica Sol", order["cliente"])
		s.Len(order["items"], 1)
	}

	path := fmt.Sprintf("/api/v1/orders/%d", int(id))
	status, _ = s.request(http.MethodPatch, path, s.token, map[string]interface{}{"status": "em produção"})
	s.Require().Equal(http.StatusOK, status)

	for _, conn := range []*websocket.Conn{office, floor} {
		s.Equal(realtime.EventOrderUpdated, s.readEvent(conn)["type"])
		s.Equal(realtime.EventOrderStatusUpdated, s.readEvent(conn)["type"])
	}

	status, _ = s.request(http.MethodDelete, path, s.token, nil)
	s.Require().Equal(http.StatusOK, status)

	for _, conn := range []*websocket.Conn{office, floor} {
		event := s.readEvent(conn)
		s.Equal(realtime.EventOrderDeleted, event["type"])
		s.Equal(id, event["order_id"])
		s.NotContains(event, "order")
	}

	status, response = s.request(http.MethodGet, path, s.token, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("ORDER_NOT_FOUND", response["error"].(map[string]interface{})["code"])
}

func (s *AppIntegrationSuite) TestLatestNotificationPolling() {
	_, response := s.request(http.MethodPost, "/api/v1/orders", s.token, map[string]interface{}{})
	id := response["data"].(map[string]interface{})["id"]

	status, response := s.request(http.MethodGet, "/api/v1/notifications/latest", s.token, nil)
	s.Equal(http.StatusOK, status)
	s.Equal(id, response["data"].(map[string]interface{})["ultimo_id"])
}
