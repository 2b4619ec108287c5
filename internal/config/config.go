// Package config provides hierarchical configuration loading for sketchforge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the sketchforge daemon.
type Config struct {
	Server    Server    `yaml:"server"`
	OpenAI    OpenAI    `yaml:"openai"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Cache     Cache     `yaml:"cache"`
	Transpile Transpile `yaml:"transpile"`
	Resync    Resync    `yaml:"resync"`
	Watch     Watch     `yaml:"watch"`
	Telemetry Telemetry `yaml:"telemetry"`
	MCP       MCP       `yaml:"mcp"`
}

// Server holds the control API configuration.
type Server struct {
	Addr string `yaml:"addr"`
	// Browser origin allowed to call the API and open the websocket.
	// Empty admits only clients that send no Origin header; "*" admits any.
	CORSOrigin string `yaml:"cors_origin"`
}

// OpenAI holds the remote assistant service connection settings.
type OpenAI struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`       // Per HTTP call, not per transpile
	PollInterval time.Duration `yaml:"poll_interval"` // Run status polling
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Format  string `yaml:"format"` // "auto" | "json" | "text"
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for remote calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds the remote identity cache configuration.
type Cache struct {
	MaxSizeMB   int64         `yaml:"max_size_mb"`
	IdentityTTL time.Duration `yaml:"identity_ttl"`
}

// Transpile holds reply interpretation settings.
type Transpile struct {
	ResultField string `yaml:"result_field"` // JSON field carrying the generated code
}

// Resync holds remote file mirror settings.
type Resync struct {
	Concurrency int `yaml:"concurrency"`
}

// Watch holds file watcher settings.
type Watch struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Telemetry holds OpenTelemetry export settings. Export is disabled when the endpoint is empty.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// MCP holds settings for the tool server mounted on the control API.
// Stdio serving via the mcp subcommand needs none of these.
type MCP struct {
	HTTPEnabled bool   `yaml:"http_enabled"`
	APIKey      string `yaml:"api_key"` // Empty disables auth on /mcp
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr: "127.0.0.1:7411",
		},
		OpenAI: OpenAI{
			BaseURL:      "https://api.openai.com",
			Timeout:      60 * time.Second,
			PollInterval: time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "sketchforge",
			Format:  "auto",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			MaxSizeMB:   4,
			IdentityTTL: time.Hour,
		},
		Transpile: Transpile{
			ResultField: "transpiled_code",
		},
		Resync: Resync{
			Concurrency: 4,
		},
		Watch: Watch{
			Debounce: 300 * time.Millisecond,
		},
		Telemetry: Telemetry{
			ServiceName: "sketchforge",
		},
	}
}
