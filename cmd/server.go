package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rotaviz.dev/rotaviz/internal/dashboard"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the dashboard server",
	Long: `Run the dashboard server that:
- Consumes location fixes from RabbitMQ
- Persists them to PostgreSQL
- Keeps a live per-vendor directory
- Serves the session-gated operator HTTP API and printable reports`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "rotaviz", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serverCmd.Flags().String("fix-queue", "location-fixes", "RabbitMQ queue name for location fixes")
	serverCmd.Flags().Int("http-port", 8080, "HTTP server port")
	serverCmd.Flags().String("operator-email", "", "Operator account email")
	serverCmd.Flags().String("operator-password-hash", "", "Operator account bcrypt password hash")
	serverCmd.Flags().String("session-key", "", "Base64-encoded ed25519 session signing key (ephemeral if empty)")
	serverCmd.Flags().Duration("session-ttl", 12*time.Hour, "Session token lifetime")
	serverCmd.Flags().String("timezone", "", "Store timezone for day bucketing (default UTC)")
	serverCmd.Flags().Bool("metrics", true, "Serve Prometheus metrics on /metrics")

	// Bind flags to viper
	_ = viper.BindPFlag("server.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("server.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("server.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("server.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("server.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("server.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.fix_queue", serverCmd.Flags().Lookup("fix-queue"))
	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.operator.email", serverCmd.Flags().Lookup("operator-email"))
	_ = viper.BindPFlag("server.operator.password_hash", serverCmd.Flags().Lookup("operator-password-hash"))
	_ = viper.BindPFlag("server.session.key", serverCmd.Flags().Lookup("session-key"))
	_ = viper.BindPFlag("server.session.ttl", serverCmd.Flags().Lookup("session-ttl"))
	_ = viper.BindPFlag("server.store.timezone", serverCmd.Flags().Lookup("timezone"))
	_ = viper.BindPFlag("server.metrics.enabled", serverCmd.Flags().Lookup("metrics"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting dashboard service")

	// Create server configuration from viper
	config := &dashboard.ServerConfig{
		Logger:               logger,
		DBHost:               viper.GetString("server.db.host"),
		DBPort:               viper.GetInt("server.db.port"),
		DBUser:               viper.GetString("server.db.user"),
		DBPassword:           viper.GetString("server.db.password"),
		DBName:               viper.GetString("server.db.name"),
		DBSSLMode:            viper.GetString("server.db.sslmode"),
		RabbitMQURL:          viper.GetString("server.rabbitmq.url"),
		FixQueue:             viper.GetString("server.rabbitmq.fix_queue"),
		HTTPPort:             viper.GetInt("server.http.port"),
		OperatorEmail:        viper.GetString("server.operator.email"),
		OperatorPasswordHash: viper.GetString("server.operator.password_hash"),
		SessionKeyBase64:     viper.GetString("server.session.key"),
		SessionTTL:           viper.GetDuration("server.session.ttl"),
		Timezone:             viper.GetString("server.store.timezone"),
		EnableMetrics:        viper.GetBool("server.metrics.enabled"),
	}

	// Create and run server
	server, err := dashboard.NewServer(config)
	if err != nil {
		logger.Error("failed to create dashboard server", "error", err)
		return err
	}

	logger.Info("dashboard server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"fix_queue", config.FixQueue,
		"http_port", config.HTTPPort,
		"timezone", config.Timezone,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("dashboard server error", "error", err)
		return err
	}

	logger.Info("dashboard server stopped")
	return nil
}
