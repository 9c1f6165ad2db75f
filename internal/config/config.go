package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	APIBaseURL     string
	PageSize       int
	ReconcileDelay time.Duration
	// UpstreamTimeout bounds every call to the order service.
	UpstreamTimeout time.Duration
	SessionTTL      time.Duration
	AllowedOrigins  []string
	LogLevel        string
	KafkaBrokers    string
	KafkaAuditTopic string
	// JWTSecret enables signature checks on incoming bearer tokens.
	// Empty means tokens are decoded for their claims only.
	JWTSecret string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8090"),
		APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		PageSize:        getInt("PAGE_SIZE", 50),
		ReconcileDelay:  getDuration("RECONCILE_DELAY", 1500*time.Millisecond),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		SessionTTL:      getDuration("SESSION_TTL", 12*time.Hour),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", ""),
		KafkaAuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "order-desk.audit"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
