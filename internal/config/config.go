// Package config loads client and relay settings from YAML, .env files and
// DOCK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TransportWS     = "ws"
	TransportGobwas = "gobwas"

	DefaultAPIURL      = "http://localhost:8080"
	DefaultMaxSurfaces = 8
)

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Client configures the messaging client.
type Client struct {
	APIURL      string `yaml:"api_url"`
	Endpoint    string `yaml:"endpoint"`
	Session     string `yaml:"session"`
	Transport   string `yaml:"transport"`
	MaxSurfaces int    `yaml:"max_surfaces"`
	Dedupe      bool   `yaml:"dedupe"`
	Log         Log    `yaml:"log"`
}

// Relay configures the development relay server.
type Relay struct {
	Addr   string  `yaml:"addr"`
	Roster string  `yaml:"roster"`
	Rate   float64 `yaml:"rate"`
	Burst  int     `yaml:"burst"`
	Log    Log     `yaml:"log"`
}

// Config is the root of the YAML document.
type Config struct {
	Client Client `yaml:"client"`
	Relay  Relay  `yaml:"relay"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.SetDefaults()
	return cfg
}

// newConfig presets fields whose zero value is meaningful, so that an
// explicit zero in the YAML document survives SetDefaults.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Client.MaxSurfaces = DefaultMaxSurfaces
	return cfg
}

// Load reads envFile (if present) into the process environment, decodes the
// YAML file at path (if non-empty), applies DOCK_* overrides and defaults,
// then validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields from DOCK_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	setString(&c.Client.APIURL, "DOCK_API_URL")
	setString(&c.Client.Endpoint, "DOCK_ENDPOINT")
	setString(&c.Client.Session, "DOCK_SESSION")
	setString(&c.Client.Transport, "DOCK_TRANSPORT")
	setInt(&c.Client.MaxSurfaces, "DOCK_MAX_SURFACES")
	setBool(&c.Client.Dedupe, "DOCK_DEDUPE")
	setString(&c.Client.Log.Level, "DOCK_LOG_LEVEL")
	setString(&c.Client.Log.Format, "DOCK_LOG_FORMAT")

	setString(&c.Relay.Addr, "DOCK_RELAY_ADDR")
	setString(&c.Relay.Roster, "DOCK_RELAY_ROSTER")
	setString(&c.Relay.Log.Level, "DOCK_RELAY_LOG_LEVEL")
}

// SetDefaults fills zero-valued fields. MaxSurfaces is left alone: 0 means
// no bound.
func (c *Config) SetDefaults() {
	if c.Client.APIURL == "" {
		c.Client.APIURL = DefaultAPIURL
	}
	if c.Client.Endpoint == "" {
		c.Client.Endpoint = EndpointFromAPI(c.Client.APIURL)
	}
	if c.Client.Transport == "" {
		c.Client.Transport = TransportWS
	}
	if c.Client.Log.Level == "" {
		c.Client.Log.Level = "info"
	}

	if c.Relay.Addr == "" {
		c.Relay.Addr = ":8080"
	}
	if c.Relay.Rate == 0 {
		c.Relay.Rate = 20
	}
	if c.Relay.Burst == 0 {
		c.Relay.Burst = 40
	}
	if c.Relay.Log.Level == "" {
		c.Relay.Log.Level = "info"
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Client.Transport {
	case TransportWS, TransportGobwas:
	default:
		return fmt.Errorf("unknown transport %q", c.Client.Transport)
	}
	if c.Client.MaxSurfaces < 0 {
		return fmt.Errorf("max_surfaces must not be negative, got %d", c.Client.MaxSurfaces)
	}
	if !strings.HasPrefix(c.Client.Endpoint, "ws://") && !strings.HasPrefix(c.Client.Endpoint, "wss://") {
		return fmt.Errorf("endpoint must be a ws:// or wss:// URL, got %q", c.Client.Endpoint)
	}
	if c.Relay.Rate < 0 || c.Relay.Burst < 0 {
		return fmt.Errorf("relay rate and burst must not be negative")
	}
	return nil
}

// EndpointFromAPI derives the websocket endpoint from the REST base URL:
// the http scheme becomes ws and "/api/ws" is appended.
func EndpointFromAPI(apiURL string) string {
	return strings.Replace(strings.TrimRight(apiURL, "/"), "http", "ws", 1) + "/api/ws"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
