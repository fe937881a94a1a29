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

	"ev-marketplace/internal/config"
	"ev-marketplace/internal/infrastructure/mysql"
	"ev-marketplace/internal/infrastructure/rabbitmq"
	"ev-marketplace/internal/services"
	"ev-marketplace/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
)

func main() {
	log := logger.New()
	log.Info("Starting Balance Sync Service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize mirror store and sync service
	mirrorStore := mysql.NewMySQLMirrorStore(db)
	syncService := services.NewBalanceSyncService(mirrorStore, log)

	// Initialize RabbitMQ consumer
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.PrefetchCount, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	log.Info("Connected to RabbitMQ", "queue", cfg.RabbitMQ.Queue)

	// Start consuming balance facts
	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	consumeDone := make(chan struct{})

	go func() {
		defer close(consumeDone)
		if err := consumer.Start(consumeCtx, syncService.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Consumer stopped unexpectedly", "error", err)
		}
	}()

	// Health check server
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting health server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down balance sync service...")

	// Stop the consumer loop; unacked deliveries return to the queue.
	stopConsuming()
	select {
	case <-consumeDone:
	case <-time.After(10 * time.Second):
		log.Warn("Consumer did not stop in time")
	}

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Balance sync service stopped")
}
