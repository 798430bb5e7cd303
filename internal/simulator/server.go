package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rotaviz.dev/rotaviz/pkg/metrics"
	"rotaviz.dev/rotaviz/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// QueueName is the ingest queue to publish fixes to
	QueueName string
	// VendorCount is the number of simulated vendors
	VendorCount int
	// Interval is the time between fixes per vendor
	Interval time.Duration
	// Timezone is the local convention for the date and time strings
	Timezone string
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server runs one publishing loop per simulated vendor.
type Server struct {
	logger  *slog.Logger
	config  *ServerConfig
	zone    *time.Location
	vendors []*Vendor
	clients []*mq.Client
	wg      sync.WaitGroup
	metrics *metrics.SimulatorMetrics
}

var (
	errInvalidVendorCount = errors.New("vendor count must be greater than 0")
	errInvalidInterval    = errors.New("interval must be greater than 0")
	errLoggerRequired     = errors.New("logger is required")
	errQueueRequired      = errors.New("queue name is required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.VendorCount <= 0 {
		return nil, errInvalidVendorCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.QueueName == "" {
		return nil, errQueueRequired
	}

	zone := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		zone = loc
	}

	s := &Server{
		logger:  cfg.Logger,
		config:  cfg,
		zone:    zone,
		vendors: make([]*Vendor, 0, cfg.VendorCount),
		clients: make([]*mq.Client, 0, cfg.VendorCount),
		metrics: cfg.Metrics,
	}

	for i := 0; i < cfg.VendorCount; i++ {
		vendor := NewVendor()
		if vendor == nil {
			return nil, errors.New("failed to generate vendor")
		}

		client := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "mq-client"),
			slog.Int("vendor_id", i),
		))
		if cfg.MQMetrics != nil {
			client.SetMetrics(cfg.MQMetrics)
		}

		s.vendors = append(s.vendors, vendor)
		s.clients = append(s.clients, client)

		s.logger.Info("created simulated vendor",
			"vendor_id", i,
			"device_id", vendor.DeviceID,
			"name", vendor.Name,
		)
	}

	return s, nil
}

// Run starts all vendors and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	for i, vendor := range s.vendors {
		s.wg.Add(1)
		go s.runVendor(ctx, i, vendor, s.clients[i])
	}

	s.logger.Info("simulator started",
		"vendor_count", len(s.vendors),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for vendors to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("simulator stopped")
	return nil
}

// runVendor publishes one vendor's fixes at the configured interval.
func (s *Server) runVendor(ctx context.Context, id int, vendor *Vendor, client *mq.Client) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveVendors.Inc()
		defer s.metrics.ActiveVendors.Dec()
	}

	walk := newWalker(vendor, s.zone)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	vendorLogger := s.logger.With(slog.Int("vendor_id", id), slog.String("device_id", vendor.DeviceID))
	vendorLogger.Info("vendor started")

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			vendorLogger.Info("vendor shutting down")
			return

		case now := <-ticker.C:
			if err := s.publishFix(ctx, client, walk, now, now.Sub(last)); err != nil {
				vendorLogger.Error("failed to publish fix", "error", err)
				// Continue on error - don't stop the vendor
				last = now
				continue
			}
			last = now
			vendorLogger.Debug("fix published")
		}
	}
}

// publishFix advances the walk one step and pushes the fix as JSON.
func (s *Server) publishFix(ctx context.Context, client *mq.Client, walk *walker, now time.Time, elapsed time.Duration) error {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.GenerationDuration)
		defer timer.ObserveDuration()
	}

	fix := walk.Next(now, elapsed)

	body, err := json.Marshal(fix)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("marshal_error").Inc()
		}
		return err
	}

	if err := client.Push(ctx, body); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues("push_error").Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.FixesPublished.WithLabelValues(fix.DeviceID).Inc()
	}
	return nil
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.clients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close MQ client",
					"vendor_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("MQ client closed", "vendor_id", id)
		}(i, client)
	}

	wg.Wait()
}
