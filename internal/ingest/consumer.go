package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"rotaviz.dev/rotaviz/internal/store"
	"rotaviz.dev/rotaviz/pkg/metrics"
	"rotaviz.dev/rotaviz/pkg/mq"
)

// Consumer consumes location fixes from RabbitMQ and persists them to the
// record store.
type Consumer struct {
	logger    *slog.Logger
	store     store.RecordStore
	mqClient  mq.ClientInterface
	queueName string
	timezone  *time.Location
	metrics   *metrics.IngestMetrics // Optional metrics
	done      chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	Store       store.RecordStore
	RabbitMQURL string
	QueueName   string
	Timezone    *time.Location
	Metrics     *metrics.IngestMetrics
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}

	return &Consumer{
		logger:    cfg.Logger,
		store:     cfg.Store,
		mqClient:  mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger),
		queueName: cfg.QueueName,
		timezone:  tz,
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming fixes from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting ingest consumer", "queue", c.queueName)

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("ingest consumer started, waiting for fixes")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming fixes from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping fix processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single fix delivery.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(c.queueName))
		defer timer.ObserveDuration()
	}

	var fix Fix
	if err := json.Unmarshal(delivery.Body, &fix); err != nil {
		c.logger.Error("failed to decode location fix", "error", err)
		c.countError("decode")
		// Acknowledge malformed messages to avoid reprocessing them forever.
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if err := fix.Validate(); err != nil {
		c.logger.Error("rejected location fix", "device_id", fix.DeviceID, "error", err)
		c.countError("validate")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	c.logger.Debug("received location fix",
		"device_id", fix.DeviceID,
		"timestamp", fix.Timestamp,
	)

	if err := c.saveFix(ctx, &fix); err != nil {
		c.logger.Error("failed to save location fix",
			"device_id", fix.DeviceID,
			"error", err,
		)
		c.countError("store")
		// Nack so the fix can be reprocessed.
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	if c.metrics != nil {
		c.metrics.ConsumerMessagesTotal.WithLabelValues(c.queueName, "success").Inc()
	}
}

// saveFix persists one fix as a location record.
func (c *Consumer) saveFix(ctx context.Context, fix *Fix) error {
	fix.FillLocalStrings(c.timezone)

	rec := &store.LocationRecord{
		ID:         uuid.NewString(),
		DeviceID:   fix.DeviceID,
		DeviceName: fix.DeviceName,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Timestamp:  fix.Timestamp,
		Date:       fix.Date,
		Time:       fix.Time,
		Speed:      fix.Speed,
		Accuracy:   fix.Accuracy,
	}

	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.StoreOperationTime.WithLabelValues("insert"))
	}
	err := c.store.Insert(ctx, rec)
	if timer != nil {
		timer.ObserveDuration()
	}
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.StoreOperationsTotal.WithLabelValues("insert", status).Inc()
	}
	if err != nil {
		return fmt.Errorf("failed to insert location record: %w", err)
	}
	return nil
}

func (c *Consumer) countError(errorType string) {
	if c.metrics != nil {
		c.metrics.ConsumerMessagesTotal.WithLabelValues(c.queueName, "error").Inc()
		c.metrics.ConsumerErrors.WithLabelValues(c.queueName, errorType).Inc()
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping ingest consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done

	c.logger.Info("ingest consumer stopped")
	return nil
}
