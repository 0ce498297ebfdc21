package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "OUTLETSYNC"

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
		LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=console json"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Enabled          bool   `mapstructure:"enabled"`
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Market struct {
		BaseURL        string `mapstructure:"base_url" validate:"omitempty,url"`
		OAuthToken     string `mapstructure:"oauth_token"`
		OAuthClientID  string `mapstructure:"oauth_client_id"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
		Retries        int    `mapstructure:"retries" validate:"gte=0,lte=10"`
	} `mapstructure:"market"`

	Sync struct {
		ManagedSpaces  []string      `mapstructure:"managed_spaces"`
		PageSize       int           `mapstructure:"page_size" validate:"gte=1,lte=50"`
		MaxOutletPages int           `mapstructure:"max_outlet_pages" validate:"gte=1"`
		RegionMaxPages int           `mapstructure:"region_max_pages" validate:"gte=1"`
		Pause          time.Duration `mapstructure:"pause" validate:"gt=0"`
		Interval       time.Duration `mapstructure:"interval" validate:"gte=0"`
	} `mapstructure:"sync"`

	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		LockKey  string        `mapstructure:"lock_key"`
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`

	Migrations struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"migrations"`
}

var defaults = map[string]any{
	"server.addr":                ":8080",
	"server.log_level":           "info",
	"server.log_format":          "console",
	"postgres.host":              "localhost",
	"postgres.port":              5432,
	"postgres.user":              "",
	"postgres.password":          "",
	"postgres.db_name":           "",
	"postgres.ssl_mode":          "disable",
	"postgres.max_open_conns":    10,
	"postgres.max_idle_conns":    2,
	"listener.enabled":           false,
	"listener.channel":           "store_catalog_change",
	"listener.reconnect_seconds": 5,
	"market.base_url":            "",
	"market.oauth_token":         "",
	"market.oauth_client_id":     "",
	"market.timeout_seconds":     30,
	"market.retries":             2,
	"sync.managed_spaces":        []string{},
	"sync.page_size":             50,
	"sync.max_outlet_pages":      1000,
	"sync.region_max_pages":      15,
	"sync.pause":                 time.Second,
	"sync.interval":              time.Duration(0),
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"redis.lock_key":             "outletsync:run",
	"redis.lock_ttl":             30 * time.Minute,
	"kafka.brokers":              []string{},
	"kafka.topic":                "outlet-sync.events",
	"migrations.path":            "migrations",
}

// Load reads path (or configs/application.yaml when empty), then applies
// OUTLETSYNC_* environment overrides such as OUTLETSYNC_MARKET_OAUTH_TOKEN.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // optional .env

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("application")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		c.Postgres.MaxIdleConns = c.Postgres.MaxOpenConns
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = 50
	}
	if c.Sync.MaxOutletPages == 0 {
		c.Sync.MaxOutletPages = 1000
	}
	if c.Sync.RegionMaxPages == 0 {
		c.Sync.RegionMaxPages = 15
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 30 * time.Minute
	}
	c.Sync.ManagedSpaces = compact(c.Sync.ManagedSpaces)
	c.Kafka.Brokers = compact(c.Kafka.Brokers)
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RequireMarket checks the partner settings that only serve and run need.
func (c Config) RequireMarket() error {
	if c.Market.BaseURL == "" {
		return errors.New("invalid config: market.base_url is required")
	}
	return nil
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

func (c Config) MarketTimeout() time.Duration {
	return time.Duration(c.Market.TimeoutSeconds) * time.Second
}
