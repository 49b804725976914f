package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/marketlens/marketlens/internal/api"
	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/telemetry"
	"github.com/marketlens/marketlens/pkg/database"
	"github.com/marketlens/marketlens/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := slog.Default()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	// Select the auth backend once at startup
	backend, err := auth.SelectBackend(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize auth backend", "error", err)
		os.Exit(1)
	}
	authCtx := auth.NewContext(backend, logger)
	if err := authCtx.Init(context.Background()); err != nil {
		slog.Error("Failed to restore session", "error", err)
	}
	defer authCtx.Teardown()

	// Initialize Kafka producer for usage telemetry
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")
	events := telemetry.NewKafkaPublisher(producer, cfg.Kafka.Topic)

	// Create and start server
	server, err := api.NewServer(cfg, db, authCtx, events, logger)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	// Pick up a restored session where it left off
	if profile := authCtx.Current(); profile != nil {
		server.ResumeSession(profile)
	}

	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
