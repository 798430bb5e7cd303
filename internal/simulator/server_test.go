package simulator

import (
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	validConfig := func() *ServerConfig {
		return &ServerConfig{
			Logger:      logger,
			RabbitMQURL: "amqp://localhost:5672",
			QueueName:   "location-fixes",
			VendorCount: 3,
			Interval:    5 * time.Second,
		}
	}

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create one vendor and client per count", func() {
				server, err := NewServer(validConfig())
				Expect(err).NotTo(HaveOccurred())
				Expect(server.vendors).To(HaveLen(3))
				Expect(server.clients).To(HaveLen(3))

				server.closeClients()
			})

			It("should accept a known timezone", func() {
				cfg := validConfig()
				cfg.Timezone = "America/Sao_Paulo"

				server, err := NewServer(cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(server.zone.String()).To(Equal("America/Sao_Paulo"))

				server.closeClients()
			})
		})

		Context("with invalid configuration", func() {
			It("should reject a missing logger", func() {
				cfg := validConfig()
				cfg.Logger = nil
				_, err := NewServer(cfg)
				Expect(err).To(HaveOccurred())
			})

			It("should reject a non-positive vendor count", func() {
				cfg := validConfig()
				cfg.VendorCount = 0
				_, err := NewServer(cfg)
				Expect(err).To(HaveOccurred())
			})

			It("should reject a non-positive interval", func() {
				cfg := validConfig()
				cfg.Interval = 0
				_, err := NewServer(cfg)
				Expect(err).To(HaveOccurred())
			})

			It("should reject a missing queue name", func() {
				cfg := validConfig()
				cfg.QueueName = ""
				_, err := NewServer(cfg)
				Expect(err).To(HaveOccurred())
			})

			It("should reject an unknown timezone", func() {
				cfg := validConfig()
				cfg.Timezone = "Mars/Olympus_Mons"
				_, err := NewServer(cfg)
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
