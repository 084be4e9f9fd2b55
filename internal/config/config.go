// Package config loads settings from flags, environment and an optional YAML
// file. Later sources win: flag defaults, then the file, then FLASHCARD_*
// environment variables, then flags given on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variable names. A double underscore
// separates nested keys, e.g. FLASHCARD_STORE__BACKEND=redis.
const EnvPrefix = "FLASHCARD_"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendFile   = "file"
)

type Config struct {
	// APIKey is accepted as a static bearer token and is the login password
	// of the authorization page. Empty leaves the MCP endpoint open.
	APIKey string `koanf:"api_key"`

	HTTP  HTTP  `koanf:"http"`
	Store Store `koanf:"store"`
	OAuth OAuth `koanf:"oauth"`
	Log   Log   `koanf:"log"`
}

type HTTP struct {
	Addr string `koanf:"addr" validate:"required"`
	// PublicURL overrides the issuer derived from the request host.
	PublicURL   string   `koanf:"public_url" validate:"omitempty,url"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type Store struct {
	Backend  string `koanf:"backend" validate:"oneof=sqlite redis memory file"`
	Path     string `koanf:"path" validate:"required_if=Backend sqlite,required_if=Backend file"`
	Key      string `koanf:"key" validate:"required"`
	RedisURL string `koanf:"redis_url" validate:"required_if=Backend redis"`
}

type OAuth struct {
	CodeTTL  time.Duration `koanf:"code_ttl" validate:"gt=0"`
	TokenTTL time.Duration `koanf:"token_ttl" validate:"gt=0"`
}

type Log struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Flags registers every configuration flag, with defaults, on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("api_key", "", "Static API key and login password")
	fs.String("http.addr", ":8080", "HTTP listen address")
	fs.String("http.public_url", "", "Public base URL used as OAuth issuer")
	fs.StringSlice("http.cors_origins", []string{"*"}, "Allowed CORS origins")
	fs.String("store.backend", BackendSQLite, "Storage backend: sqlite, redis, memory or file")
	fs.String("store.path", "flashcards.db", "SQLite database or JSON file path")
	fs.String("store.key", "flashcards", "Key the flashcard document is stored under")
	fs.String("store.redis_url", "", "Redis URL, e.g. redis://localhost:6379/0")
	fs.Duration("oauth.code_ttl", 10*time.Minute, "Authorization code lifetime")
	fs.Duration("oauth.token_ttl", 30*24*time.Hour, "Access token lifetime")
	fs.String("log.level", "info", "Log level")
	fs.Bool("log.pretty", false, "Human-readable console logs")
}

// Load builds the Config from fs, which must already be parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for missing or inconsistent settings.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
