package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rotaviz.dev/rotaviz/internal/simulator"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the vendor simulator",
	Long: `Run the vendor simulator that:
- Generates synthetic street-vendor movement
- Publishes location fixes to RabbitMQ
- Supports multiple concurrent vendors`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("fix-queue", "location-fixes", "RabbitMQ queue name for location fixes")
	simulatorCmd.Flags().Int("vendor-count", 5, "Number of simulated vendors")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between fixes per vendor")
	simulatorCmd.Flags().String("timezone", "", "Timezone for fix date and time strings (default UTC)")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.fix_queue", simulatorCmd.Flags().Lookup("fix-queue"))
	_ = viper.BindPFlag("simulator.vendor_count", simulatorCmd.Flags().Lookup("vendor-count"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulator.timezone", simulatorCmd.Flags().Lookup("timezone"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting simulator service")

	// Create simulator configuration from viper
	config := &simulator.ServerConfig{
		Logger:      logger,
		RabbitMQURL: viper.GetString("simulator.rabbitmq.url"),
		QueueName:   viper.GetString("simulator.rabbitmq.fix_queue"),
		VendorCount: viper.GetInt("simulator.vendor_count"),
		Interval:    viper.GetDuration("simulator.interval"),
		Timezone:    viper.GetString("simulator.timezone"),
	}

	// Create and run server
	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator server", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"fix_queue", config.QueueName,
		"vendor_count", config.VendorCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator server error", "error", err)
		return err
	}

	logger.Info("simulator server stopped")
	return nil
}
