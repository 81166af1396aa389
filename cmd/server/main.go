package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yegors/skylanes/internal/api"
	"github.com/yegors/skylanes/internal/assets"
	"github.com/yegors/skylanes/internal/config"
	"github.com/yegors/skylanes/internal/history"
	"github.com/yegors/skylanes/internal/ports"
	"github.com/yegors/skylanes/internal/rng"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/storage/sqlite"
	"github.com/yegors/skylanes/internal/stream"
	"github.com/yegors/skylanes/internal/websocket"
	"github.com/yegors/skylanes/internal/world"
	"github.com/yegors/skylanes/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skylanes server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open storage
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		log.Error("Failed to create storage directory", logger.Error(err))
		os.Exit(1)
	}
	db, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	portStorage, err := sqlite.NewPortStorage(db, log)
	if err != nil {
		log.Error("Failed to create port storage", logger.Error(err))
		os.Exit(1)
	}
	flightLog, err := sqlite.NewFlightLogStorage(db, log)
	if err != nil {
		log.Error("Failed to create flight log storage", logger.Error(err))
		os.Exit(1)
	}

	// Load the port catalogue
	portProvider := ports.NewProvider(cfg.PortProviderConfig(), portStorage, log)
	if err := portProvider.Reload(); err != nil {
		log.Error("Failed to load ports", logger.Error(err))
		os.Exit(1)
	}

	worldState := world.NewState(cfg.Simulation.SphereRadius)

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	// Create model loader (if models are configured)
	var loader *assets.Loader
	if len(cfg.Assets.Models) > 0 {
		loader, err = assets.NewLoader(cfg.LoaderConfig(), log)
		if err != nil {
			log.Error("Failed to create asset loader", logger.Error(err))
			os.Exit(1)
		}
		defer loader.Close()
	}

	scene := websocket.NewSceneRenderer(wsServer, loader, time.Duration(cfg.Server.FrameIntervalMs)*time.Millisecond, log)
	go scene.Run(ctx)

	recorder := history.NewRecorder(flightLog, cfg.Storage.HistoryQueueSize, log)
	sinks := []simulation.EventSink{scene, recorder}

	// Create Kafka publisher (if enabled)
	var publisher *stream.Publisher
	if cfg.Kafka.Enabled {
		if cfg.Kafka.CreateTopic {
			if err := stream.EnsureTopic(cfg.Kafka.Brokers[0], cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				// Continue without creating the topic; brokers may auto-create it
				log.Warn("Failed to ensure Kafka topic", logger.String("topic", cfg.Kafka.Topic), logger.Error(err))
			}
		}
		publisher = stream.NewPublisher(cfg.PublisherConfig(), log)
		sinks = append(sinks, publisher)
	} else {
		log.Info("Kafka publishing disabled in configuration")
	}

	// Create simulation service
	simulationService := simulation.NewService(cfg.ServiceConfig(), simulation.Deps{
		Ports:   portProvider,
		World:   worldState,
		Trails:  scene,
		Visuals: scene,
		Sinks:   sinks,
		Rand:    rng.New(cfg.Simulation.Seed),
	}, log)

	if err := simulationService.Start(ctx); err != nil {
		log.Error("Failed to start simulation service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(simulationService, portProvider, worldState, flightLog, loader, wsServer, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	// Sinks are closed after the simulation stops
	simulationService.Stop()

	log.Info("Flushing flight log...")
	recorder.Close()

	if publisher != nil {
		log.Info("Closing Kafka publisher...")
		if err := publisher.Close(); err != nil {
			log.Error("Error closing Kafka publisher", logger.Error(err))
		}
	}

	// Cancel the main context
	cancel()

	log.Info("Server fully stopped")
}
