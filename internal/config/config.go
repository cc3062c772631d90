// ABOUTME: Configuration loading and parsing for widget-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and overrides

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete widget-gateway configuration
type Config struct {
	Server            ServerConfig            `yaml:"server" toml:"server"`
	TransportSecurity TransportSecurityConfig `yaml:"transport_security" toml:"transport_security"`
	Auth              AuthConfig              `yaml:"auth" toml:"auth"`
	Database          DatabaseConfig          `yaml:"database" toml:"database"`
	Widgets           WidgetsConfig           `yaml:"widgets" toml:"widgets"`
	RateLimit         RateLimitConfig         `yaml:"rate_limit" toml:"rate_limit"`
	Tailscale         TailscaleConfig         `yaml:"tailscale" toml:"tailscale"`
	Logging           LoggingConfig           `yaml:"logging" toml:"logging"`
	Metrics           MetricsConfig           `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// BaseURL is the externally visible URL, used for the protected resource
	// metadata document.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	ReadHeaderTimeout    time.Duration `yaml:"-" toml:"-"`
	ReadHeaderTimeoutRaw string        `yaml:"read_header_timeout" toml:"read_header_timeout"`
}

// TransportSecurityConfig holds the DNS-rebinding allow-lists
type TransportSecurityConfig struct {
	AllowedHosts   []string `yaml:"allowed_hosts" toml:"allowed_hosts"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	Enabled              bool     `yaml:"enabled" toml:"enabled"`
	JWTSecret            string   `yaml:"jwt_secret" toml:"jwt_secret"`
	Audience             string   `yaml:"audience" toml:"audience"`
	AuthorizationServers []string `yaml:"authorization_servers" toml:"authorization_servers"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// WidgetsConfig points at built widget assets. An empty Dir serves the
// embedded set.
type WidgetsConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// RateLimitConfig holds per-client limits for tool calls and resource reads
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" toml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
	RedisAddr         string  `yaml:"redis_addr" toml:"redis_addr"` // shared window across replicas when set

	Window    time.Duration `yaml:"-" toml:"-"`
	WindowRaw string        `yaml:"window" toml:"window"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration that runs locally with no file present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:          ":8000",
			ReadHeaderTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "widget-gateway.db"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Window:            time.Minute,
		},
		Tailscale: TailscaleConfig{Hostname: "widget-gateway"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Path: "/metrics"},
	}
}

// DefaultPath returns the config file location: $WIDGET_GATEWAY_CONFIG, or
// gateway.yaml under the user config directory.
func DefaultPath() string {
	if p := os.Getenv("WIDGET_GATEWAY_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(dir, "widget-gateway", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Values not present in the file keep their Default. Environment variables in
// the format ${VAR_NAME} are expanded, then environment overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := decode(path, expandEnvVars(string(data)), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault loads path when it exists and otherwise starts from Default.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return finish(Default())
	}
	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path, content string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(content, cfg)
		return err
	case ".yaml", ".yml", "":
		return yaml.Unmarshal([]byte(content), cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv applies the deployment environment variables the server has
// always honored. They win over file values.
func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("PORT %q is not a valid port", port)
		}
		cfg.Server.HTTPAddr = ":" + port
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("MCP_ALLOWED_HOSTS"); v != "" {
		cfg.TransportSecurity.AllowedHosts = splitList(v)
	}
	if v := os.Getenv("MCP_ALLOWED_ORIGINS"); v != "" {
		cfg.TransportSecurity.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WIDGET_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	return nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.base_url %q must be an absolute URL", c.Server.BaseURL)
		}
	}

	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes when auth is enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive when rate limiting is enabled")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ReadHeaderTimeoutRaw != "" {
		cfg.Server.ReadHeaderTimeout, err = time.ParseDuration(cfg.Server.ReadHeaderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_header_timeout %q: %w", cfg.Server.ReadHeaderTimeoutRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_limit.window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
