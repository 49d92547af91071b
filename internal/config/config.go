package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":10000"
	DefaultGeminiModel        = "gemini-2.0-flash"
	DefaultGeminiBaseURL      = "https://generativelanguage.googleapis.com"
	DefaultGeminiTimeout      = 60 * time.Second
	DefaultMinGap             = 10 * time.Second
	DefaultSweepInterval      = "@every 10m"
	DefaultEvictAfterMultiple = 6
	DefaultMaxDimension       = 1600
	DefaultJPEGQuality        = 85
	DefaultPollTimeout        = 30
	DefaultMaxDownloadBytes   = 20 * 1024 * 1024
	DefaultStorageDriver      = "postgres"
	DefaultBadgerPath         = "data/allowlist"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "doubtsolver"
	DefaultPGSSLMode          = "disable"
)

type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Telegram  TelegramConfig  `toml:"telegram" yaml:"telegram"`
	Gemini    GeminiConfig    `toml:"gemini" yaml:"gemini"`
	Access    AccessConfig    `toml:"access" yaml:"access"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	RateLimit RateLimitConfig `toml:"ratelimit" yaml:"ratelimit"`
	Image     ImageConfig     `toml:"image" yaml:"image"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

type TelegramConfig struct {
	BotToken         string `toml:"bot_token" yaml:"bot_token" validate:"required"`
	PollTimeout      int    `toml:"poll_timeout" yaml:"poll_timeout" validate:"gte=0"`
	MaxDownloadBytes int64  `toml:"max_download_bytes" yaml:"max_download_bytes" validate:"gt=0"`
	Debug            bool   `toml:"debug" yaml:"debug"`
}

type GeminiConfig struct {
	APIKey            string        `toml:"api_key" yaml:"api_key" validate:"required"`
	Model             string        `toml:"model" yaml:"model" validate:"required"`
	BaseURL           string        `toml:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout           time.Duration `toml:"timeout" yaml:"timeout" validate:"gt=0"`
	SingleFlight      bool          `toml:"single_flight" yaml:"single_flight"`
	PreCallDelay      time.Duration `toml:"pre_call_delay" yaml:"pre_call_delay" validate:"gte=0"`
	RequestsPerSecond float64       `toml:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `toml:"burst" yaml:"burst" validate:"gte=0"`
}

type AccessConfig struct {
	OwnerIDs []int64 `toml:"owner_ids" yaml:"owner_ids"`
}

type StorageConfig struct {
	Driver   string         `toml:"driver" yaml:"driver" validate:"oneof=postgres badger"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
	Badger   BadgerConfig   `toml:"badger" yaml:"badger"`
}

type PostgresConfig struct {
	URL      string `toml:"url" yaml:"url"`
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	Database string `toml:"database" yaml:"database"`
	SSLMode  string `toml:"sslmode" yaml:"sslmode"`
}

// DSN returns URL when set, otherwise a postgres:// URL assembled from the
// individual fields.
func (c PostgresConfig) DSN() string {
	if strings.TrimSpace(c.URL) != "" {
		return strings.TrimSpace(c.URL)
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultPGSSLMode
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, sslMode)
}

type BadgerConfig struct {
	Path     string `toml:"path" yaml:"path"`
	InMemory bool   `toml:"in_memory" yaml:"in_memory"`
}

type RateLimitConfig struct {
	MinGap             time.Duration `toml:"min_gap" yaml:"min_gap" validate:"gte=0"`
	SweepInterval      string        `toml:"sweep_interval" yaml:"sweep_interval"`
	EvictAfterMultiple int           `toml:"evict_after_multiple" yaml:"evict_after_multiple" validate:"gte=1"`
}

type ImageConfig struct {
	MaxDimension int `toml:"max_dimension" yaml:"max_dimension" validate:"gt=0"`
	JPEGQuality  int `toml:"jpeg_quality" yaml:"jpeg_quality" validate:"gte=1,lte=100"`
}

// Default returns a configuration with every optional field populated.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			PollTimeout:      DefaultPollTimeout,
			MaxDownloadBytes: DefaultMaxDownloadBytes,
		},
		Gemini: GeminiConfig{
			Model:        DefaultGeminiModel,
			BaseURL:      DefaultGeminiBaseURL,
			Timeout:      DefaultGeminiTimeout,
			SingleFlight: true,
			PreCallDelay: time.Second,
			Burst:        1,
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
			Postgres: PostgresConfig{
				Host:     DefaultPGHost,
				Port:     DefaultPGPort,
				User:     DefaultPGUser,
				Database: DefaultPGDatabase,
				SSLMode:  DefaultPGSSLMode,
			},
			Badger: BadgerConfig{
				Path: DefaultBadgerPath,
			},
		},
		RateLimit: RateLimitConfig{
			MinGap:             DefaultMinGap,
			SweepInterval:      DefaultSweepInterval,
			EvictAfterMultiple: DefaultEvictAfterMultiple,
		},
		Image: ImageConfig{
			MaxDimension: DefaultMaxDimension,
			JPEGQuality:  DefaultJPEGQuality,
		},
	}
}

// Load reads the config file at path on top of Default. A missing file is
// not an error. Environment overrides are applied afterwards, see ApplyEnv.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
}

// Validate reports missing credentials and out-of-range values. It is the
// fail-fast gate run before the bot starts polling.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
