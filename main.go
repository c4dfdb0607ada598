package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sgp-fichas/fichas-api/config"
	"github.com/sgp-fichas/fichas-api/controllers"
	"github.com/sgp-fichas/fichas-api/middleware"
	"github.com/sgp-fichas/fichas-api/models"
	"github.com/sgp-fichas/fichas-api/realtime"
	"github.com/sgp-fichas/fichas-api/services"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting order notification API server...", zap.String("env", cfg.GoEnv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.Order{}); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migration completed successfully")

	if _, err := services.Reconcile(ctx, db, logger); err != nil {
		logger.Fatal("Failed to reconcile stored orders", zap.Error(err))
	}

	var images services.ImageService
	if cfg.ImageStorageEnabled() {
		s3Service, err := services.InitS3Service(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize S3 service", zap.Error(err))
		}
		images = services.InitImageService(s3Service)
		logger.Info("Item image storage enabled", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		logger.Info("AWS_S3_BUCKET not set, item images stay inline")
	}

	hub := realtime.NewHub(logger.Named("hub"),
		realtime.WithHeartbeatInterval(cfg.WSHeartbeat),
		realtime.WithSendTimeout(cfg.WSSendTimeout),
	)
	scheduler := realtime.NewScheduler(hub, logger.Named("scheduler"))
	scheduler.Start(ctx)

	services.InitOrderService(db, scheduler, images, logger.Named("orders"))

	jwtValidator, err := middleware.NewTokenValidator(cfg)
	if err != nil {
		logger.Fatal("Failed to set up token validation", zap.Error(err))
	}
	if err := controllers.RegisterValidators(); err != nil {
		logger.Fatal("Failed to register request validators", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(ctx, cfg, hub, jwtValidator)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	scheduler.Stop()
	scheduler.Wait()
	hub.Close()
	logger.Info("Server stopped")
}

// setupRouter wires every route. Sessions opened on /ws/orders end when ctx is cancelled.
func setupRouter(ctx context.Context, cfg *config.Config, hub *realtime.Hub, jwtValidator *validator.Validator) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(corsConfig(cfg)))

	realtimeController := controllers.NewRealtimeController(ctx, hub, jwtValidator)
	router.GET("/ws/orders", realtimeController.ServeWebSocket)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		protected := v1.Group("", middleware.EnsureValidToken(jwtValidator))
		{
			protected.POST("/orders", controllers.CreateOrder)
			protected.GET("/orders", controllers.ListOrders)
			protected.DELETE("/orders", controllers.DeleteAllOrders)
			protected.GET("/orders/status/:status", controllers.ListOrdersByStatus)
			protected.GET("/orders/items/:itemId", controllers.GetOrderByItemID)
			protected.GET("/orders/:id", controllers.GetOrder)
			protected.PATCH("/orders/:id", controllers.UpdateOrder)
			protected.DELETE("/orders/:id", controllers.DeleteOrder)
			protected.GET("/orders/:id/items/:position/image", controllers.GetItemImageURL)

			protected.GET("/notifications/latest", controllers.GetLatestNotification)
			protected.GET("/realtime/connections", realtimeController.ListConnections)
		}
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	return corsCfg
}

// requestLogger logs one line per request through the global zap logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order notification API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables; the migrator knows both postgres and sqlite
	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
