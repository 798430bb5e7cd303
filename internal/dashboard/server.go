// Package dashboard runs the operator-facing service: the PostgreSQL
// record store, the mobile ingest consumer, the live device directory,
// and the session-gated HTTP surface (device list, route search, rename,
// printable report).
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"rotaviz.dev/rotaviz/internal/feed"
	"rotaviz.dev/rotaviz/internal/ingest"
	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/internal/tracking"
	"rotaviz.dev/rotaviz/pkg/metrics"
	"rotaviz.dev/rotaviz/pkg/mq"
)

// Server wires the store, ingest consumer, device directory and HTTP
// surface together and manages their lifecycle.
type Server struct {
	logger      *slog.Logger
	config      *ServerConfig
	db          *gorm.DB
	store       store.RecordStore
	directory   *tracking.Directory
	coordinator *tracking.RenameCoordinator
	consumer    *ingest.Consumer
	signer      *SessionSigner
	timezone    *time.Location
	httpServer  *http.Server

	changesPub mq.ClientInterface
	renamesPub mq.ClientInterface
	changesSub mq.ClientInterface

	dashMetrics   *metrics.DashboardMetrics
	ingestMetrics *metrics.IngestMetrics
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// RabbitMQ configuration
	RabbitMQURL string
	FixQueue    string

	// HTTP configuration
	HTTPPort int

	// Operator account and session signing
	OperatorEmail        string
	OperatorPasswordHash string
	SessionKeyBase64     string
	SessionTTL           time.Duration

	// Timezone is the store's recorded local convention for day
	// bucketing, e.g. "America/Sao_Paulo". Empty means UTC.
	Timezone string

	// EnableMetrics registers and serves Prometheus metrics.
	EnableMetrics bool
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.FixQueue == "" {
		return nil, errors.New("fix queue name cannot be empty")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.OperatorEmail == "" {
		return nil, errors.New("operator email cannot be empty")
	}

	if cfg.OperatorPasswordHash == "" {
		return nil, errors.New("operator password hash cannot be empty")
	}

	tz := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		tz = loc
	}

	signer, err := NewSessionSigner(cfg.SessionKeyBase64, "rotaviz", cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session signer: %w", err)
	}

	return &Server{
		logger:   cfg.Logger,
		config:   cfg,
		signer:   signer,
		timezone: tz,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting dashboard server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if s.config.EnableMetrics {
		s.dashMetrics = metrics.NewDashboardMetrics("rotaviz_dashboard")
		s.ingestMetrics = metrics.NewIngestMetrics("rotaviz_dashboard")
	}

	// Database and record store
	db, err := store.NewDB(&store.DBConfig{
		Logger:   s.logger,
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	// Change and rename broadcasts
	s.changesPub = mq.NewBroadcast(feed.ChangesExchange, s.config.RabbitMQURL, s.logger)
	s.renamesPub = mq.NewBroadcast(feed.RenamesExchange, s.config.RabbitMQURL, s.logger)
	broadcaster := feed.NewBroadcaster(s.logger, s.changesPub, s.renamesPub)

	recordStore, err := store.New(s.logger, db, broadcaster)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	s.store = recordStore

	// Ingest consumer
	consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
		Logger:      s.logger,
		Store:       recordStore,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.FixQueue,
		Timezone:    s.timezone,
		Metrics:     s.ingestMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ingest consumer: %w", err)
	}
	s.consumer = consumer

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingest consumer: %w", err)
	}

	// Device directory with its scoped change-feed subscription
	directory, err := tracking.NewDirectory(s.logger, recordStore)
	if err != nil {
		return fmt.Errorf("failed to initialize device directory: %w", err)
	}
	s.directory = directory

	s.changesSub = mq.NewBroadcast(feed.ChangesExchange, s.config.RabbitMQURL, s.logger)
	// Give the broadcast client time to bind its private queue.
	time.Sleep(2 * time.Second)
	changes, err := feed.Subscribe(ctx, s.logger, s.changesSub)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}
	go directory.Run(ctx, changes)

	// Rename coordinator
	coordinator, err := tracking.NewRenameCoordinator(s.logger, recordStore, broadcaster)
	if err != nil {
		return fmt.Errorf("failed to initialize rename coordinator: %w", err)
	}
	s.coordinator = coordinator

	// HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("dashboard server started")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down dashboard server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop ingest consumer", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("consumer shutdown error: %w", err))
		}
	}

	for _, client := range []mq.ClientInterface{s.changesSub, s.changesPub, s.renamesPub} {
		if client == nil {
			continue
		}
		if err := client.Close(); err != nil {
			s.logger.Warn("failed to close mq client", "error", err)
		}
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			shutdownErr = joinShutdownErr(shutdownErr, fmt.Errorf("database close error: %w", err))
		}
	}

	if shutdownErr != nil {
		s.logger.Error("dashboard server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("dashboard server shutdown completed")
	return nil
}

func joinShutdownErr(acc, err error) error {
	if acc == nil {
		return err
	}
	return fmt.Errorf("%w; %w", acc, err)
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /login", s.instrument("/login", s.handleLogin))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /api/devices", s.instrument("/api/devices", s.requireSession(s.handleDevices)))
	mux.HandleFunc("GET /api/route", s.instrument("/api/route", s.requireSession(s.handleRoute)))
	mux.HandleFunc("POST /api/devices/{id}/rename", s.instrument("/api/devices/rename", s.requireSession(s.handleRename)))
	mux.HandleFunc("GET /report", s.instrument("/report", s.requireSession(s.handleReport)))

	if s.config.EnableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	return mux
}
