package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	DBDriver    string // "sqlite" or "postgres"
	DatabaseURL string

	JWTSecret string
	JWTIssuer string

	CORSOrigins []string
	FrontendURL string

	VNPay VNPay

	NotifySink       string // "db" or "kafka"
	KafkaBrokers     []string
	KafkaNotifyTopic string
	KafkaGroupID     string
}

type VNPay struct {
	TmnCode    string
	HashSecret string
	URL        string
	ReturnURL  string
	PaymentTTL time.Duration
}

// Load reads an optional .env file, then the process environment.
// Values already set in the environment win over the file.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:    getenv("GRPC_ADDR", ":9091"),
		MetricsAddr: getenv("METRICS_ADDR", ":9101"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBDriver:    getenv("DB_DRIVER", "sqlite"),
		DatabaseURL: getenv("DATABASE_URL", "file:insurance-portal.db?_pragma=busy_timeout(5000)"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getenv("JWT_ISSUER", "insurance-portal"),

		CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:5173")),
		FrontendURL: strings.TrimSuffix(getenv("FRONTEND_URL", "http://localhost:5173"), "/"),

		VNPay: VNPay{
			TmnCode:    strings.TrimSpace(os.Getenv("VNP_TMNCODE")),
			HashSecret: strings.TrimSpace(os.Getenv("VNP_HASHSECRET")),
			URL:        strings.TrimSpace(os.Getenv("VNP_URL")),
			ReturnURL:  strings.TrimSpace(os.Getenv("VNP_RETURN_URL")),
			PaymentTTL: getduration("PAYMENT_TTL", 15*time.Minute),
		},

		NotifySink:       getenv("NOTIFY_SINK", "db"),
		KafkaBrokers:     splitList(getenv("KAFKA_BROKERS", "kafka:9092")),
		KafkaNotifyTopic: getenv("KAFKA_NOTIFY_TOPIC", "notifications.events"),
		KafkaGroupID:     getenv("KAFKA_GROUP_ID", "notifications-worker"),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getduration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
