package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/theirongolddev/snapdash/internal/model"
)

// Config holds all snapdash configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds trend defaults and the default payload location.
type GeneralConfig struct {
	DefaultMonths int    `toml:"default_months"`
	TrendDegree   int    `toml:"trend_degree"`
	ShowTrendline bool   `toml:"show_trendline"`
	PayloadPath   string `toml:"payload_path,omitempty"`
}

// MetricsConfig overrides the tracked metric set.
type MetricsConfig struct {
	Tracked []model.TrackedMetric `toml:"tracked,omitempty"`
}

// ServerConfig holds HTTP server and session store settings.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	SessionBackend string `toml:"session_backend"`
	SessionTTL     string `toml:"session_ttl"`
	RedisAddr      string `toml:"redis_addr,omitempty"`
	RedisPassword  string `toml:"redis_password,omitempty"`
	RedisDB        int    `toml:"redis_db"`
	MaxUploadMB    int    `toml:"max_upload_mb"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// Session store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultMonths: 0,
			TrendDegree:   model.DefaultDegree,
			ShowTrendline: true,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8050",
			SessionBackend: BackendMemory,
			SessionTTL:     "30m",
			RedisAddr:      "localhost:6379",
			MaxUploadMB:    32,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "snapdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "snapdash")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads the config at path, returning defaults if it doesn't exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-chosen config path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Validate rejects settings that cannot be clamped into range.
func (c Config) Validate() error {
	switch c.Server.SessionBackend {
	case "", BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("server.session_backend: unknown backend %q", c.Server.SessionBackend)
	}
	if _, err := c.Server.TTL(); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for i, tm := range c.Metrics.Tracked {
		if tm.Key == "" || tm.Column == "" {
			return fmt.Errorf("metrics.tracked[%d]: key and column are required", i)
		}
		if _, dup := seen[tm.Column]; dup {
			return fmt.Errorf("metrics.tracked[%d]: duplicate column %q", i, tm.Column)
		}
		seen[tm.Column] = struct{}{}
	}
	return nil
}

// TrendParams returns the configured trend defaults, clamped.
func (c Config) TrendParams() model.TrendParams {
	return model.TrendParams{
		FuturePeriods: c.General.DefaultMonths,
		Degree:        c.General.TrendDegree,
		Enabled:       c.General.ShowTrendline,
	}.Normalize()
}

// Tracked returns the configured tracked metrics, or the defaults.
func (c Config) Tracked() []model.TrackedMetric {
	if len(c.Metrics.Tracked) == 0 {
		return model.DefaultTrackedMetrics
	}
	out := make([]model.TrackedMetric, len(c.Metrics.Tracked))
	for i, tm := range c.Metrics.Tracked {
		if tm.Label == "" {
			tm.Label = tm.Column
		}
		out[i] = tm
	}
	return out
}

// TTL parses the session TTL. Empty means 30 minutes.
func (s ServerConfig) TTL() (time.Duration, error) {
	if s.SessionTTL == "" {
		return 30 * time.Minute, nil
	}
	d, err := time.ParseDuration(s.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("server.session_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.session_ttl: must be positive")
	}
	return d, nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	mb := s.MaxUploadMB
	if mb <= 0 {
		mb = 32
	}
	return int64(mb) << 20
}

// GetRedisPassword returns the Redis password from env var or config, in that order.
func GetRedisPassword(cfg Config) string {
	if pw := os.Getenv("SNAPDASH_REDIS_PASSWORD"); pw != "" {
		return pw
	}
	return cfg.Server.RedisPassword
}

// GetPayloadPath returns the default payload path from env var or config, in that order.
func GetPayloadPath(cfg Config) string {
	if p := os.Getenv("SNAPDASH_PAYLOAD"); p != "" {
		return p
	}
	return cfg.General.PayloadPath
}
