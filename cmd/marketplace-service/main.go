package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ev-marketplace/internal/api/handlers"
	"ev-marketplace/internal/config"
	"ev-marketplace/internal/infrastructure/leader"
	"ev-marketplace/internal/infrastructure/mysql"
	"ev-marketplace/internal/infrastructure/rabbitmq"
	"ev-marketplace/internal/infrastructure/websocket"
	"ev-marketplace/internal/services"
	"ev-marketplace/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting Marketplace Service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize RabbitMQ publisher
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	log.Info("Connected to RabbitMQ", "url", cfg.RabbitMQ.URL)

	// Initialize repositories
	listingRepo := mysql.NewMySQLListingRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	ledgerRepo := mysql.NewMySQLLedgerRepository(db)

	// Initialize websocket components
	connManager := websocket.NewConnectionManager(log)
	broadcaster := websocket.NewWebSocketNotifier(connManager)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize services
	listingLocks := services.NewListingLocks()
	bidService := services.NewBidService(listingRepo, bidRepo, ledgerRepo, publisher, broadcaster,
		listingLocks, cfg.MySQL.QueryTimeout, log)
	listingService := services.NewListingService(listingRepo, ledgerRepo, log)
	settlementService := services.NewSettlementService(
		listingRepo, bidRepo, ledgerRepo, publisher, broadcaster, connManager,
		leaderElection, listingLocks, cfg.Settlement.Interval, cfg.Instance.ID, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize handlers
	bidHandler := handlers.NewBidHandler(bidService, log)
	listingHandler := handlers.NewListingHandler(listingService, log)
	wsHandler := handlers.NewWebSocketHandler(listingRepo, connManager, log)

	// API routes
	api := e.Group("/api/v1")
	api.POST("/listings", listingHandler.CreateListing)
	api.GET("/listings", listingHandler.ListListings)
	api.GET("/listings/:id", listingHandler.GetListing)
	api.GET("/listings/:id/bids", bidHandler.ListBids)
	api.POST("/bids", bidHandler.PlaceBid)
	api.GET("/bids", bidHandler.ListMyBids)

	// WebSocket routes
	e.GET("/ws/listings/:id", wsHandler.HandleConnection)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "marketplace-service",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Start settlement scheduler
	if err := settlementService.Start(context.Background()); err != nil {
		log.Error("Failed to start settlement scheduler", "error", err)
		os.Exit(1)
	}

	// Try to become settlement leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became settlement leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting marketplace server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace service...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := settlementService.Stop(); err != nil {
		log.Error("Failed to stop settlement scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Marketplace service stopped")
}
