// Package config resolves server settings from defaults, an optional YAML
// file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPort            = 3000
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultDocsPath        = "/api-docs"
	DefaultServiceName     = "k8s-demo"
)

// Config holds the runtime settings of the server.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsPath     *string       `yaml:"metrics_path"`
	DocsPath        *string       `yaml:"docs_path"`
	ServiceName     string        `yaml:"service_name"`
	Environment     string        `yaml:"environment"`
}

// Default returns the built-in configuration: all interfaces, port 3000.
func Default() *Config {
	metrics, docs := DefaultMetricsPath, DefaultDocsPath
	return &Config{
		Port:            DefaultPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsPath:     &metrics,
		DocsPath:        &docs,
		ServiceName:     DefaultServiceName,
	}
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Metrics returns the metrics path, "" when disabled.
func (c *Config) Metrics() string {
	if c.MetricsPath == nil {
		return ""
	}
	return *c.MetricsPath
}

// Docs returns the API docs path, "" when disabled.
func (c *Config) Docs() string {
	if c.DocsPath == nil {
		return ""
	}
	return *c.DocsPath
}

// Options select the sources Load reads.
type Options struct {
	// File is a YAML config file. A missing file is not an error.
	File string
	// EnvFile is a dotenv file. Values never override variables already set
	// in the environment. A missing file is not an error.
	EnvFile string
	// Getenv looks up environment variables; os.Getenv when nil.
	Getenv func(string) string
}

// Load layers the YAML file, the dotenv file and the environment over the
// defaults, in that order, and validates the result.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.mergeFile(opts.File); err != nil {
			return nil, err
		}
	}
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.mergeEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	if v := getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		c.ShutdownTimeout = d
	}
	if v, ok := lookup(getenv, "METRICS_PATH"); ok {
		c.MetricsPath = &v
	}
	if v, ok := lookup(getenv, "DOCS_PATH"); ok {
		c.DocsPath = &v
	}
	if v := getenv("SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	return nil
}

// lookup treats the literal value "off" as an explicit empty string so a
// route can be disabled from the environment.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch {
	case v == "":
		return "", false
	case strings.EqualFold(v, "off"):
		return "", true
	default:
		return v, true
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	for name, p := range map[string]string{"metrics path": c.Metrics(), "docs path": c.Docs()} {
		if p != "" && (!strings.HasPrefix(p, "/") || p == "/") {
			return fmt.Errorf("%s %q must start with / and not be the root", name, p)
		}
	}
	if c.Metrics() != "" && c.Metrics() == c.Docs() {
		return fmt.Errorf("metrics and docs paths collide at %q", c.Metrics())
	}
	return nil
}
