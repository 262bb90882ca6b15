package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commonconfig "thermo-bridge/common/config"
)

// Listen modes
const (
	ModeUDP  = "udp"
	ModeTCP  = "tcp"
	ModeBoth = "both"
)

// Default listener ports
const (
	DefaultUDPPort = 45678
	DefaultTCPPort = 55355
)

// Config full service configuration, loaded from environment variables
type Config struct {
	ListenMode string
	UDPBind    string
	UDPPort    int
	TCPBind    string
	TCPPort    int

	TCPIdleTimeout time.Duration

	HTTPEnabled bool
	HTTPAddr    string

	RedisEnabled      bool
	Redis             commonconfig.RedisConfig
	DiscoveryStream   string
	MeasurementStream string
	StateTTL          time.Duration

	MQTTEnabled  bool
	MQTT         commonconfig.MQTTConfig
	ConfirmTopic string
	StatusTopic  string

	DatabaseEnabled bool
	Database        commonconfig.DatabaseConfig

	WebhookEnabled bool
	WebhookURL     string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment with sane defaults
func Load() (*Config, error) {
	cfg := &Config{
		ListenMode:     envString("LISTEN_MODE", ModeBoth),
		UDPBind:        envString("UDP_BIND", "0.0.0.0"),
		UDPPort:        envInt("UDP_PORT", DefaultUDPPort),
		TCPBind:        envString("TCP_BIND", "0.0.0.0"),
		TCPPort:        envInt("TCP_PORT", DefaultTCPPort),
		TCPIdleTimeout: envDuration("TCP_IDLE_TIMEOUT", 5*time.Minute),

		HTTPEnabled: envBool("HTTP_ENABLED", true),
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),

		RedisEnabled: envBool("REDIS_ENABLED", false),
		Redis: commonconfig.RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		DiscoveryStream:   envString("DISCOVERY_STREAM", ""),
		MeasurementStream: envString("MEASUREMENT_STREAM", ""),
		StateTTL:          envDuration("STATE_TTL", 0),

		MQTTEnabled: envBool("MQTT_ENABLED", false),
		MQTT: commonconfig.MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "thermo-bridge",
			QoS:      1,
		},
		ConfirmTopic: envString("MQTT_CONFIRM_TOPIC", "thermo/device/confirm"),
		StatusTopic:  envString("MQTT_STATUS_TOPIC", "thermo/bridge/status"),

		DatabaseEnabled: envBool("DB_ENABLED", false),
		Database: commonconfig.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "thermo",
			Database: "thermo_bridge",
			SSLMode:  "disable",
			MaxConns: 10,
			MaxIdle:  5,
		},

		WebhookEnabled: envBool("WEBHOOK_ENABLED", false),
		WebhookURL:     envString("WEBHOOK_URL", ""),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),
	}

	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.Database.LoadFromEnv("DB")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.ListenMode {
	case ModeUDP, ModeTCP, ModeBoth:
	default:
		return fmt.Errorf("invalid LISTEN_MODE %q: must be udp, tcp or both", c.ListenMode)
	}

	if c.UDPPort < 0 || c.UDPPort > 65535 {
		return fmt.Errorf("invalid UDP_PORT %d", c.UDPPort)
	}
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		return fmt.Errorf("invalid TCP_PORT %d", c.TCPPort)
	}
	if c.WebhookEnabled && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_ENABLED requires WEBHOOK_URL")
	}
	return nil
}

// UDPEnabled reports whether the UDP listener should run
func (c *Config) UDPEnabled() bool {
	return c.ListenMode == ModeUDP || c.ListenMode == ModeBoth
}

// TCPEnabled reports whether the TCP listener should run
func (c *Config) TCPEnabled() bool {
	return c.ListenMode == ModeTCP || c.ListenMode == ModeBoth
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
