// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for both binaries. Values resolve in
// three layers: compiled defaults, then the YAML file (if given), then
// environment variables.
type Config struct {
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	LogLevel  string          `yaml:"logLevel"`
}

// RabbitMQConfig configures the broker connection manager.
type RabbitMQConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	VirtualHost string `yaml:"virtualHost"`

	// PoolSize is the fixed number of channels created on the single
	// underlying connection.
	PoolSize int `yaml:"poolSize"`

	// MaxConnectAttempts bounds the initial-connect and reconnect backoff
	// loops. Exhausting them at startup is fatal.
	MaxConnectAttempts int `yaml:"maxConnectAttempts"`

	// ConnectBackoffBase is the first backoff interval; attempt k waits
	// base * 2^(k-1).
	ConnectBackoffBase time.Duration `yaml:"connectBackoffBase"`

	// ReconnectDelay is the fixed delay a consumer worker waits after losing
	// its channel before resubscribing. Deliberately not exponential.
	ReconnectDelay time.Duration `yaml:"reconnectDelay"`
}

// URL renders the amqp connection string.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.Username, c.Password, c.Host, c.Port, c.VirtualHost)
}

// RedisConfig configures the deduplication store.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DedupTTL time.Duration `yaml:"dedupTTL"`
}

// Addr renders host:port for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerConfig configures the ingress process.
type ServerConfig struct {
	// WebSocketPort is where browser clients connect (ws://host:port/chat/<room>).
	WebSocketPort int `yaml:"webSocketPort"`

	// BroadcastPort is the internal fan-out receiver. Not exposed publicly.
	BroadcastPort int `yaml:"broadcastPort"`
}

// BroadcastConfig configures the consumer-side broadcast gateway.
type BroadcastConfig struct {
	// URL is the fan-out receiver's endpoint, e.g.
	// http://server-host:8081/internal/broadcast.
	URL string `yaml:"url"`

	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// ConsumerConfig configures the consumer pool.
type ConsumerConfig struct {
	// Workers is the configured pool size; the effective count is
	// min(Workers, room count).
	Workers int `yaml:"workers"`

	// Rooms is the ordered room list to consume. When empty, rooms "1"
	// through "20" are used, matching the default topology.
	Rooms []string `yaml:"rooms"`

	// RetryMax is the number of broadcast retries after the first attempt.
	RetryMax int `yaml:"retryMax"`

	// RetryDelay is the fixed delay between broadcast attempts.
	RetryDelay time.Duration `yaml:"retryDelay"`

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// deliveries before giving up on the workers.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// HealthPort serves /health, /ready and /metrics.
	HealthPort int `yaml:"healthPort"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		RabbitMQ: RabbitMQConfig{
			Host:               "localhost",
			Port:               5672,
			Username:           "admin",
			Password:           "rabbitmq",
			VirtualHost:        "/",
			PoolSize:           10,
			MaxConnectAttempts: 5,
			ConnectBackoffBase: time.Second,
			ReconnectDelay:     5 * time.Second,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			DedupTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			WebSocketPort: 8080,
			BroadcastPort: 8081,
		},
		Broadcast: BroadcastConfig{
			URL:            "http://localhost:8081/internal/broadcast",
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Consumer: ConsumerConfig{
			Workers:         4,
			RetryMax:        3,
			RetryDelay:      500 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      8082,
		},
		LogLevel: "info",
	}
}

// LoadConfig resolves configuration from defaults, an optional YAML file and
// the environment, in that order. An empty path skips the file layer.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if len(cfg.Consumer.Rooms) == 0 {
		cfg.Consumer.Rooms = defaultRooms()
	}

	return &cfg, nil
}

// applyEnv overlays environment variables onto the config. Each variable
// overrides one field and is ignored when unset or unparsable.
func (c *Config) applyEnv() {
	envString("RABBITMQ_HOST", &c.RabbitMQ.Host)
	envInt("RABBITMQ_PORT", &c.RabbitMQ.Port)
	envString("RABBITMQ_USERNAME", &c.RabbitMQ.Username)
	envString("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	envString("RABBITMQ_VIRTUALHOST", &c.RabbitMQ.VirtualHost)
	envInt("RABBITMQ_POOL_SIZE", &c.RabbitMQ.PoolSize)
	envMillis("RABBITMQ_RECONNECT_DELAY_MS", &c.RabbitMQ.ReconnectDelay)

	envString("REDIS_HOST", &c.Redis.Host)
	envInt("REDIS_PORT", &c.Redis.Port)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envSeconds("REDIS_DEDUP_TTL_SECONDS", &c.Redis.DedupTTL)

	envInt("WEBSOCKET_PORT", &c.Server.WebSocketPort)
	envInt("BROADCAST_HTTP_PORT", &c.Server.BroadcastPort)

	envString("BROADCAST_URL", &c.Broadcast.URL)

	envInt("CONSUMER_WORKER_COUNT", &c.Consumer.Workers)
	envInt("MESSAGE_RETRY_MAX", &c.Consumer.RetryMax)
	envMillis("MESSAGE_RETRY_DELAY_MS", &c.Consumer.RetryDelay)
	envInt("HEALTHCHECK_PORT", &c.Consumer.HealthPort)

	envString("LOG_LEVEL", &c.LogLevel)
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envMillis(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

func envSeconds(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

// defaultRooms generates the default room list "1".."20".
func defaultRooms() []string {
	rooms := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		rooms = append(rooms, strconv.Itoa(i))
	}
	return rooms
}
