// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and environment variables, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML strings such as "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the complete runtime configuration.
type Config struct {
	Server struct {
		Host              string   `yaml:"host"`                // Listen address (default: "0.0.0.0")
		Port              string   `yaml:"port"`                // Listen port (default: "5000")
		ReadTimeout       Duration `yaml:"read_timeout"`        // default: 5s
		ReadHeaderTimeout Duration `yaml:"read_header_timeout"` // default: 2s
		WriteTimeout      Duration `yaml:"write_timeout"`       // default: 10s
		IdleTimeout       Duration `yaml:"idle_timeout"`        // default: 60s
		ShutdownTimeout   Duration `yaml:"shutdown_timeout"`    // default: 10s
		MaxHeaderBytes    int      `yaml:"max_header_bytes"`    // default: 64 KiB
		MaxBodyBytes      int64    `yaml:"max_body_bytes"`      // default: 1 MiB
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"` // zap level name (default: "info")
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"` // default: true
		Path    string `yaml:"path"`    // default: "/metrics"
	} `yaml:"metrics"`
	Docs struct {
		Path string `yaml:"path"` // default: "/api-docs"
	} `yaml:"docs"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = "5000"
	cfg.Server.ReadTimeout = Duration(5 * time.Second)
	cfg.Server.ReadHeaderTimeout = Duration(2 * time.Second)
	cfg.Server.WriteTimeout = Duration(10 * time.Second)
	cfg.Server.IdleTimeout = Duration(60 * time.Second)
	cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	cfg.Server.MaxHeaderBytes = 64 << 10
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.Log.Level = "info"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	cfg.Docs.Path = "/api-docs"
	return cfg
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if it exists; variables already set in the environment win.
// path names an optional YAML file; when empty, CONFIG_FILE is consulted.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg and rejects unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err)
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

// Validate checks value ranges and path collisions.
func (c Config) Validate() error {
	var errs []error

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be a number between 1 and 65535, got %q", c.Server.Port))
	}

	for name, d := range map[string]Duration{
		"server.read_timeout":        c.Server.ReadTimeout,
		"server.read_header_timeout": c.Server.ReadHeaderTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
		"server.idle_timeout":        c.Server.IdleTimeout,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Server.MaxHeaderBytes <= 0 {
		errs = append(errs, errors.New("server.max_header_bytes must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if c.Metrics.Enabled {
		errs = append(errs, validatePath("metrics.path", c.Metrics.Path))
	}
	errs = append(errs, validatePath("docs.path", c.Docs.Path))
	if c.Metrics.Enabled && c.Metrics.Path == c.Docs.Path {
		errs = append(errs, fmt.Errorf("metrics.path and docs.path must differ, both are %q", c.Docs.Path))
	}

	return errors.Join(errs...)
}

// reservedPaths are served by the API itself.
var reservedPaths = map[string]struct{}{"/": {}, "/health": {}}

func validatePath(name, p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%s must start with '/', got %q", name, p)
	}
	if _, ok := reservedPaths[p]; ok {
		return fmt.Errorf("%s must not shadow API route %q", name, p)
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
