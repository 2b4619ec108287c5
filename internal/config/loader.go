package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sketchforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SKETCHFORGE_ADDR")
	setString(&cfg.Server.CORSOrigin, "SKETCHFORGE_CORS_ORIGIN")
	setString(&cfg.OpenAI.BaseURL, "SKETCHFORGE_OPENAI_BASE_URL")
	setDuration(&cfg.OpenAI.Timeout, "SKETCHFORGE_OPENAI_TIMEOUT")
	setDuration(&cfg.OpenAI.PollInterval, "SKETCHFORGE_OPENAI_POLL_INTERVAL")
	setString(&cfg.Logging.Level, "SKETCHFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SKETCHFORGE_LOG_SERVICE")
	setString(&cfg.Logging.Format, "SKETCHFORGE_LOG_FORMAT")
	setBool(&cfg.Logging.Async, "SKETCHFORGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "SKETCHFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SKETCHFORGE_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "SKETCHFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.IdentityTTL, "SKETCHFORGE_CACHE_IDENTITY_TTL")
	setString(&cfg.Transpile.ResultField, "SKETCHFORGE_RESULT_FIELD")
	setInt(&cfg.Resync.Concurrency, "SKETCHFORGE_RESYNC_CONCURRENCY")
	setDuration(&cfg.Watch.Debounce, "SKETCHFORGE_WATCH_DEBOUNCE")

	// Telemetry
	setString(&cfg.Telemetry.OTLPEndpoint, "SKETCHFORGE_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "SKETCHFORGE_OTEL_SERVICE_NAME")

	// MCP
	setBool(&cfg.MCP.HTTPEnabled, "SKETCHFORGE_MCP_HTTP")
	setString(&cfg.MCP.APIKey, "SKETCHFORGE_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.OpenAI.BaseURL == "" {
		return errors.New("openai.base_url is required")
	}
	if cfg.OpenAI.PollInterval <= 0 {
		return errors.New("openai.poll_interval must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxSizeMB < 1 {
		return errors.New("cache.max_size_mb must be >= 1")
	}
	if cfg.Transpile.ResultField == "" {
		return errors.New("transpile.result_field is required")
	}
	if cfg.Resync.Concurrency < 1 {
		return errors.New("resync.concurrency must be >= 1")
	}
	switch cfg.Logging.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be auto, json or text", cfg.Logging.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
