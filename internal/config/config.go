package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	CRDBDSN        string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	PaymentAPIURL  string
	PaymentAPIKey  string
	OTLPEndpoint   string
	HoldTTL        time.Duration
	ReservationTTL time.Duration
	SweepInterval  time.Duration
	ReminderWindow time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		PaymentAPIURL:  os.Getenv("PAYMENT_API_URL"),
		PaymentAPIKey:  os.Getenv("PAYMENT_API_KEY"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HoldTTL:        durationOr("HOLD_TTL", 10*time.Minute),
		ReservationTTL: durationOr("RESERVATION_TTL", 5*time.Minute),
		SweepInterval:  durationOr("SWEEP_INTERVAL", time.Minute),
		ReminderWindow: durationOr("REMINDER_WINDOW", 24*time.Hour),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
