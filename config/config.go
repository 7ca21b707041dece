package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Canvas  CanvasConfig  `yaml:"canvas"`
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig points the dashboard at the preset backend.
type APIConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timeout       string `yaml:"timeout"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

type CacheConfig struct {
	Backend       string `yaml:"backend"` // file, sqlite, redis or none
	Path          string `yaml:"path"`
	FallbackPath  string `yaml:"fallback_path"` // file cache used when sqlite or redis is unavailable
	Key           string `yaml:"key"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type CanvasConfig struct {
	IconWidth     float64 `yaml:"icon_width"`
	IconHeight    float64 `yaml:"icon_height"`
	ToastDuration string  `yaml:"toast_duration"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	RateLimit       int    `yaml:"rate_limit"`
	RateWindow      string `yaml:"rate_window"`
	SessionTTL      string `yaml:"session_ttl"`
	JanitorInterval string `yaml:"janitor_interval"`
	MetricsEnabled  *bool  `yaml:"metrics_enabled"`
}

// BackendConfig configures cmd/presetd.
type BackendConfig struct {
	Addr   string `yaml:"addr"`
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://127.0.0.1:8000/api"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	if c.API.RetryAttempts == 0 {
		c.API.RetryAttempts = 3
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Path == "" {
		switch c.Cache.Backend {
		case "sqlite":
			c.Cache.Path = "./data/layout.db"
		default:
			c.Cache.Path = "./data/presets.json"
		}
	}
	if c.Cache.FallbackPath == "" {
		c.Cache.FallbackPath = filepath.Join(filepath.Dir(c.Cache.Path), "presets.json")
	}
	if c.Cache.Key == "" {
		c.Cache.Key = "device-layout:presets"
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Canvas.IconWidth == 0 {
		c.Canvas.IconWidth = 80
	}
	if c.Canvas.IconHeight == 0 {
		c.Canvas.IconHeight = 80
	}
	if c.Canvas.ToastDuration == "" {
		c.Canvas.ToastDuration = "3s"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 120
	}
	if c.Server.RateWindow == "" {
		c.Server.RateWindow = "1m"
	}
	if c.Server.SessionTTL == "" {
		c.Server.SessionTTL = "30m"
	}
	if c.Server.JanitorInterval == "" {
		c.Server.JanitorInterval = "1m"
	}
	if c.Server.MetricsEnabled == nil {
		enabled := true
		c.Server.MetricsEnabled = &enabled
	}
	if c.Backend.Addr == "" {
		c.Backend.Addr = ":8000"
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = "sqlite3"
	}
	if c.Backend.DSN == "" && c.Backend.Driver == "sqlite3" {
		c.Backend.DSN = "./data/presets.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Duration parses value, returning fallback when it is empty or invalid.
func Duration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return d, nil
}
