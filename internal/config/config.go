package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type App struct {
	Env           string
	StoreBackend  string // "redis" | "memory"
	NotifyBackend string // "kafka" | "log"
}

type HTTP struct {
	Port string
}

type DB struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type Kafka struct {
	Brokers          []string
	ChangeFeedTopic  string
	ChangeFeedGroup  string
	ClickstreamTopic string
	ClickstreamGroup string
	RecommendTopic   string
	NotifyTopic      string
	MaxBatch         int
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // окно идемпотентности для имен исполнений
	Prefix   string
}

type Sink struct {
	Dir             string
	StreamName      string
	Interval        time.Duration
	SizeThresholdMB int
	MaxRetries      int
	Backoff         time.Duration
}

type Workflow struct {
	Timeout        time.Duration
	PaymentRetries int
	PaymentBackoff time.Duration
	TrackingID     string
}

type Config struct {
	App      App
	HTTP     HTTP
	DB       DB
	Kafka    Kafka
	Redis    Redis
	Sink     Sink
	Workflow Workflow
}

func Load() Config {
	return Config{
		App: App{
			Env:           getenv("APP_ENV", "dev"),
			StoreBackend:  getenv("WORKFLOW_STORE_BACKEND", "memory"),
			NotifyBackend: getenv("NOTIFY_BACKEND", "log"),
		},
		HTTP: HTTP{
			Port: getenv("PORT", "8080"),
		},
		DB: DB{
			Host:     getenv("DB_HOST", "127.0.0.1"),
			Port:     getenv("DB_PORT", "55432"),
			Name:     getenv("DB_NAME", "orders_db"),
			User:     getenv("DB_USER", "postgres"),
			Password: getenv("DB_PASSWORD", "postgres"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Kafka: Kafka{
			Brokers:          splitCSV(getenv("KAFKA_BROKERS", "localhost:19092")),
			ChangeFeedTopic:  getenv("ORDERS_CHANGEFEED_TOPIC", "orders-changefeed"),
			ChangeFeedGroup:  getenv("ORDERS_CHANGEFEED_GROUP", "order-pipeline-dispatcher"),
			ClickstreamTopic: getenv("CLICKSTREAM_TOPIC", "clickstream-events"),
			ClickstreamGroup: getenv("CLICKSTREAM_GROUP", "order-pipeline-clickstream"),
			RecommendTopic:   getenv("RECOMMEND_TOPIC", "recommendation-events"),
			NotifyTopic:      getenv("NOTIFY_TOPIC", "order-notifications"),
			MaxBatch:         atoi(getenv("KAFKA_MAX_BATCH", "100")),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       atoi(getenv("REDIS_DB", "0")),
			TTL:      parseDuration(getenv("EXECUTION_TTL", "24h")),
			Prefix:   getenv("REDIS_PREFIX", "exec:"),
		},
		Sink: Sink{
			Dir:             getenv("SINK_DIR", "./data/clickstream"),
			StreamName:      getenv("SINK_STREAM", "clickstream"),
			Interval:        parseDuration(getenv("SINK_INTERVAL", "60s")),
			SizeThresholdMB: atoi(getenv("SINK_SIZE_MB", "1")),
			MaxRetries:      atoi(getenv("SINK_MAX_RETRIES", "3")),
			Backoff:         parseDuration(getenv("SINK_BACKOFF", "200ms")),
		},
		Workflow: Workflow{
			Timeout:        parseDuration(getenv("WORKFLOW_TIMEOUT", "5m")),
			PaymentRetries: atoi(getenv("PAYMENT_RETRIES", "5")),
			PaymentBackoff: parseDuration(getenv("PAYMENT_BACKOFF", "200ms")),
			TrackingID:     getenv("RECOMMEND_TRACKING_ID", "order-pipeline"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
