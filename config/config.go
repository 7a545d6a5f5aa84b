package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"

	RoutingPolicyLast  = "last"
	RoutingPolicyFirst = "first"
)

type Config struct {
	Env    string
	Server ServerConfig
	Redis  RedisConfig
	Gate   GateConfig
	Admin  AdminConfig
	Log    LogConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
}

type ServerConfig struct {
	HTTPPort     int
	OpsPort      int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type GateConfig struct {
	OriginURL     string
	StoreDriver   string
	RoutingPolicy string
	GeoHeader     string
	DebugHeader   string
	KeyPrefix     string
	SeedFile      string
}

type AdminConfig struct {
	RateLimit float64
	RateBurst int
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ClientID             string
	ConsumerGroupID      string
	ConsumerFromOldest   bool
	RequestLogTopic      string
	ControlTopic         string
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			OpsPort:      getEnvAsInt("SERVER_OPS_PORT", 9090),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50056),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Gate: GateConfig{
			OriginURL:     getEnv("GATE_ORIGIN_URL", "http://localhost:3000"),
			StoreDriver:   getEnv("GATE_STORE_DRIVER", StoreDriverRedis),
			RoutingPolicy: getEnv("GATE_ROUTING_POLICY", RoutingPolicyLast),
			GeoHeader:     getEnv("GATE_GEO_HEADER", "X-Geo-Country-Code"),
			DebugHeader:   getEnv("GATE_DEBUG_HEADER", "X-Gate-Debug"),
			KeyPrefix:     getEnv("GATE_CONFIG_KEY_PREFIX", "gate"),
			SeedFile:      getEnv("GATE_SEED_FILE", ""),
		},
		Admin: AdminConfig{
			RateLimit: getEnvAsFloat("ADMIN_RATE_LIMIT", 5),
			RateBurst: getEnvAsInt("ADMIN_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ClientID:             getEnv("KAFKA_CLIENT_ID", "waitroom-gate"),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "waitroom-gate"),
			ConsumerFromOldest:   getEnvAsBool("KAFKA_CONSUMER_FROM_OLDEST", false),
			RequestLogTopic:      getEnv("KAFKA_REQUEST_LOG_TOPIC", "queue.requests"),
			ControlTopic:         getEnv("KAFKA_CONTROL_TOPIC", "queue.release"),
		},
		NATS: NATSConfig{
			Enabled: getEnvAsBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_SUBJECT", "waitroom.requests"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"http": c.Server.HTTPPort,
		"ops":  c.Server.OpsPort,
		"grpc": c.Server.GRpcPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
	}

	if c.Gate.OriginURL == "" {
		return fmt.Errorf("origin url is required")
	}

	switch c.Gate.StoreDriver {
	case StoreDriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	case StoreDriverMemory:
		if c.Env == "production" {
			return fmt.Errorf("memory store driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", c.Gate.StoreDriver)
	}

	if c.Gate.RoutingPolicy != RoutingPolicyLast && c.Gate.RoutingPolicy != RoutingPolicyFirst {
		return fmt.Errorf("unknown routing policy: %q", c.Gate.RoutingPolicy)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url is required when nats is enabled")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
