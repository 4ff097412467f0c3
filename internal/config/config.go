package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// Config holds all configuration for the engine daemon
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Store    StoreConfig    `mapstructure:"store"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// BackendConfig holds sensor backend connection settings
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Transport string        `mapstructure:"transport"` // websocket, redis, nats
	Timeout   time.Duration `mapstructure:"timeout"`
	Auth      AuthConfig    `mapstructure:"auth"`
	Redis     RedisConfig   `mapstructure:"redis"`
	NATS      NATSConfig    `mapstructure:"nats"`
}

// AuthConfig holds bearer token settings for the backend. When Secret is
// set the engine mints short-lived HS256 tokens; a static Token wins over
// minting when both are present.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Token    string        `mapstructure:"token"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig holds Redis transport settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig holds NATS transport settings
type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// ChannelConfig holds push channel reconnect behavior
type ChannelConfig struct {
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	BackoffJitter  float64       `mapstructure:"backoff_jitter"`
}

// PollerConfig holds snapshot poll behavior
type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds bounded log sizing and dedup windows
type StoreConfig struct {
	FileEventsCap int                      `mapstructure:"file_events_cap"`
	PacketsCap    int                      `mapstructure:"packets_cap"`
	AlertsCap     int                      `mapstructure:"alerts_cap"`
	DedupWindows  map[string]time.Duration `mapstructure:"dedup_windows"`
	InboxSize     int                      `mapstructure:"inbox_size"`
}

// SessionsConfig holds per-class session settings
type SessionsConfig struct {
	Autostart   []string          `mapstructure:"autostart"`
	Descriptors map[string]string `mapstructure:"descriptors"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8175)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("backend.base_url", "http://localhost:8184")
	v.SetDefault("backend.transport", "websocket")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.auth.secret", "")
	v.SetDefault("backend.auth.token", "")
	v.SetDefault("backend.auth.token_ttl", "1h")
	v.SetDefault("backend.redis.addr", "localhost:6379")
	v.SetDefault("backend.redis.password", "")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.nats.url", "nats://localhost:4222")
	v.SetDefault("backend.nats.name", "harrierd")

	v.SetDefault("channel.dial_timeout", "10s")
	v.SetDefault("channel.backoff_initial", "1s")
	v.SetDefault("channel.backoff_max", "30s")
	v.SetDefault("channel.backoff_jitter", 0.2)

	v.SetDefault("poller.interval", "10s")
	v.SetDefault("poller.timeout", "5s")

	v.SetDefault("store.file_events_cap", 1000)
	v.SetDefault("store.packets_cap", 10000)
	v.SetDefault("store.alerts_cap", 100)
	v.SetDefault("store.inbox_size", 1024)

	v.SetDefault("sessions.autostart", []string{})
	v.SetDefault("sessions.descriptors", map[string]string{})

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("HARRIER")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Backend.Transport {
	case "websocket", "redis", "nats":
	default:
		return fmt.Errorf("unknown backend transport %q", c.Backend.Transport)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Channel.BackoffInitial <= 0 || c.Channel.BackoffMax < c.Channel.BackoffInitial {
		return fmt.Errorf("invalid channel backoff bounds")
	}
	if c.Channel.BackoffJitter < 0 || c.Channel.BackoffJitter >= 1 {
		return fmt.Errorf("channel.backoff_jitter must be in [0, 1)")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	for _, class := range c.Sessions.Autostart {
		if !models.ValidClass(class) {
			return fmt.Errorf("unknown autostart class %q", class)
		}
	}
	return nil
}

// LogCaps maps the configured capacities onto category names for the store.
func (c *Config) LogCaps() map[string]int {
	return map[string]int{
		models.CategoryFile:   c.Store.FileEventsCap,
		models.CategoryPacket: c.Store.PacketsCap,
		models.CategoryAlert:  c.Store.AlertsCap,
	}
}
