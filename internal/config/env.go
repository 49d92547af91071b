package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// envOverrides lists the environment variables that take precedence over
// the config file. Values are kept as strings so an unset variable can be
// told apart from a zero value.
type envOverrides struct {
	BotToken     string `env:"BOT_TOKEN"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`
	GeminiURL    string `env:"GEMINI_BASE_URL"`
	Port         string `env:"PORT"`
	OwnerIDs     string `env:"OWNER_IDS"`
	DatabaseURL  string `env:"DATABASE_URL"`
	Storage      string `env:"STORAGE_DRIVER"`
	BadgerPath   string `env:"BADGER_PATH"`
	MinGap       string `env:"MIN_GAP"`
	LogLevel     string `env:"LOG_LEVEL"`
	LogFormat    string `env:"LOG_FORMAT"`
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already present. A missing file is ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return o.apply(cfg)
}

func (o envOverrides) apply(cfg *Config) error {
	setString(&cfg.Telegram.BotToken, o.BotToken)
	setString(&cfg.Gemini.APIKey, o.GeminiAPIKey)
	setString(&cfg.Gemini.Model, o.GeminiModel)
	setString(&cfg.Gemini.BaseURL, o.GeminiURL)
	setString(&cfg.Storage.Postgres.URL, o.DatabaseURL)
	setString(&cfg.Storage.Driver, o.Storage)
	setString(&cfg.Storage.Badger.Path, o.BadgerPath)
	setString(&cfg.Log.Level, o.LogLevel)
	setString(&cfg.Log.Format, o.LogFormat)

	if port := strings.TrimSpace(o.Port); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", port)
		}
		cfg.Server.Addr = ":" + port
	}
	if raw := strings.TrimSpace(o.OwnerIDs); raw != "" {
		ids, err := ParseIDList(raw)
		if err != nil {
			return fmt.Errorf("OWNER_IDS: %w", err)
		}
		cfg.Access.OwnerIDs = ids
	}
	if raw := strings.TrimSpace(o.MinGap); raw != "" {
		gap, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("MIN_GAP: %w", err)
		}
		cfg.RateLimit.MinGap = gap
	}
	return nil
}

// ParseIDList parses a comma or whitespace separated list of integer ids.
func ParseIDList(raw string) ([]int64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	ids := make([]int64, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
