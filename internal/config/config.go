// Package config loads musophile's settings.
//
// Values come from three layers, later ones winning:
//  1. the embedded config.example.toml (defaults)
//  2. an optional TOML file passed with --config
//  3. MUSOPHILE_* environment variables
package config

import (
	"bytes"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MUSOPHILE_"

type Config struct {
	Server    ServerConfig    `toml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `toml:"database" envPrefix:"DATABASE_"`
	Streaming StreamingConfig `toml:"streaming" envPrefix:"STREAMING_"`
	Metadata  MetadataConfig  `toml:"metadata" envPrefix:"METADATA_"`
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port          int           `toml:"port" env:"PORT"`
	SessionSecret string        `toml:"session_secret" env:"SESSION_SECRET"`
	SessionTTL    time.Duration `toml:"session_ttl" env:"SESSION_TTL"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"PATH"`
}

// StreamingConfig holds the OAuth client credentials and endpoints of the
// streaming service. It is handed to streaming.NewTokenManager and never read
// from anywhere else.
type StreamingConfig struct {
	ClientID     string        `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string        `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string        `toml:"redirect_url" env:"REDIRECT_URL"`
	AuthURL      string        `toml:"auth_url" env:"AUTH_URL"`
	TokenURL     string        `toml:"token_url" env:"TOKEN_URL"`
	APIURL       string        `toml:"api_url" env:"API_URL"`
	Scopes       []string      `toml:"scopes" env:"SCOPES" envSeparator:","`
	Timeout      time.Duration `toml:"timeout" env:"TIMEOUT"`
}

type MetadataConfig struct {
	BaseURL           string        `toml:"base_url" env:"BASE_URL"`
	UserAgent         string        `toml:"user_agent" env:"USER_AGENT"`
	Timeout           time.Duration `toml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Default returns the configuration described by the embedded example file.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("config: parsing embedded defaults: %v", err))
	}
	return &cfg
}

// Load builds the configuration from defaults, the TOML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	// Only variables that are set overwrite a field; the rest keep the file values.
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch {
	case c.Server.SessionSecret == "":
		errs = append(errs, fmt.Errorf("server.session_secret is required (or set %sSERVER_SESSION_SECRET)", EnvPrefix))
	case len(c.Server.SessionSecret) < 16:
		errs = append(errs, errors.New("server.session_secret must be at least 16 characters"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Metadata.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("metadata.requests_per_second must be positive"))
	}
	switch c.Log.Format {
	case "json", "text", "pretty":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json, text or pretty", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// StreamingConfigured reports whether OAuth client credentials are present.
// Without them the server still runs but catalog search is unavailable.
func (c *Config) StreamingConfigured() bool {
	return c.Streaming.ClientID != "" && c.Streaming.ClientSecret != ""
}

// CreateConfigFile writes the example configuration to path with a freshly
// generated session secret. It refuses to overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: file already exists at %s", path)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("config: generating session secret: %w", err)
	}
	contents := bytes.Replace(exampleConf,
		[]byte(`session_secret = ""`),
		[]byte(`session_secret = "`+hex.EncodeToString(secret)+`"`), 1)

	if err := os.WriteFile(path, contents, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
