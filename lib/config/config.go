// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the client core.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Platform names the device platform this core build serves:
	// "ios", "android", or "web".
	Platform string `yaml:"platform"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Chat configures the chat-platform client and session manager.
	Chat ChatConfig `yaml:"chat"`

	// Marketing configures the marketing-platform client.
	Marketing MarketingConfig `yaml:"marketing"`

	// Notify configures notification routing.
	Notify NotifyConfig `yaml:"notify"`

	// Feed configures the notification inbox store.
	Feed FeedConfig `yaml:"feed"`

	// Bridge configures the shell↔daemon control socket.
	Bridge BridgeConfig `yaml:"bridge"`

	// Log configures daemon logging.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per environment.
type Overrides struct {
	Chat      *ChatConfig      `yaml:"chat,omitempty"`
	Marketing *MarketingConfig `yaml:"marketing,omitempty"`
	Bridge    *BridgeConfig    `yaml:"bridge,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for core state. Other path fields may
	// reference it as ${PAVILION_ROOT}.
	Root string `yaml:"root"`
}

// ChatConfig configures the chat-platform client and the session
// lifecycle manager's timing.
type ChatConfig struct {
	// BaseURL is the chat platform's REST endpoint.
	BaseURL string `yaml:"base_url"`

	// AppID is the application identifier issued by the chat platform.
	AppID string `yaml:"app_id"`

	// APIKeyEnv names the environment variable holding the chat API
	// key. Names only; the value is an opaque secret the core never
	// logs.
	APIKeyEnv string `yaml:"api_key_env"`

	// RefreshInterval is how often the manager checks credential
	// expiry while the session is open. Go duration string.
	// Default: 30s.
	RefreshInterval string `yaml:"refresh_interval"`

	// RefreshSkew is how long before expiry a credential is considered
	// due for refresh. Default: 5m.
	RefreshSkew string `yaml:"refresh_skew"`

	// RetryAttempts bounds automatic initialize retries before the
	// session parks in the error state. Default: 3.
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the fixed delay between initialize attempts.
	// Default: 2s.
	RetryDelay string `yaml:"retry_delay"`
}

// Timing is the parsed form of ChatConfig's duration fields.
type Timing struct {
	RefreshInterval time.Duration
	RefreshSkew     time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

// Timing parses the duration fields, applying defaults for empty ones.
func (c *ChatConfig) Timing() (Timing, error) {
	timing := Timing{
		RefreshInterval: 30 * time.Second,
		RefreshSkew:     5 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      2 * time.Second,
	}
	if c.RetryAttempts > 0 {
		timing.RetryAttempts = c.RetryAttempts
	}

	for _, field := range []struct {
		name  string
		value string
		out   *time.Duration
	}{
		{"chat.refresh_interval", c.RefreshInterval, &timing.RefreshInterval},
		{"chat.refresh_skew", c.RefreshSkew, &timing.RefreshSkew},
		{"chat.retry_delay", c.RetryDelay, &timing.RetryDelay},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return Timing{}, fmt.Errorf("%s: %w", field.name, err)
		}
		if parsed <= 0 {
			return Timing{}, fmt.Errorf("%s must be positive, got %s", field.name, field.value)
		}
		*field.out = parsed
	}
	return timing, nil
}

// MarketingConfig configures the marketing-platform client.
type MarketingConfig struct {
	// BaseURL is the marketing platform's REST endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the marketing
	// API key. Names only, never the value.
	APIKeyEnv string `yaml:"api_key_env"`
}

// NotifyConfig configures notification routing.
type NotifyConfig struct {
	// DedupWindow is how long a foreground notification fingerprint
	// suppresses duplicates. Go duration string. Default: 60s.
	DedupWindow string `yaml:"dedup_window"`

	// RoutesPath optionally overrides the embedded route table with an
	// external routes.jsonc file.
	RoutesPath string `yaml:"routes_path"`
}

// DedupWindowDuration parses DedupWindow, defaulting to 60s.
func (c *NotifyConfig) DedupWindowDuration() (time.Duration, error) {
	if c.DedupWindow == "" {
		return 60 * time.Second, nil
	}
	parsed, err := time.ParseDuration(c.DedupWindow)
	if err != nil {
		return 0, fmt.Errorf("notify.dedup_window: %w", err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("notify.dedup_window must be positive, got %s", c.DedupWindow)
	}
	return parsed, nil
}

// FeedConfig configures the notification inbox store.
type FeedConfig struct {
	// Path is the SQLite database file for delivered notifications.
	Path string `yaml:"path"`

	// Keep bounds how many records the store retains. Default: 200.
	Keep int `yaml:"keep"`
}

// BridgeConfig configures the shell↔daemon control socket.
type BridgeConfig struct {
	// Socket is the Unix socket path the daemon listens on.
	Socket string `yaml:"socket"`
}

// LogConfig configures daemon logging.
type LogConfig struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the development defaults. They exist so every field
// has a sensible zero value before the file loads; the config file is
// still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "pavilion")

	return &Config{
		Environment: Development,
		Platform:    "ios",
		Paths: PathsConfig{
			Root: defaultRoot,
		},
		Chat: ChatConfig{
			RefreshInterval: "30s",
			RefreshSkew:     "5m",
			RetryAttempts:   3,
			RetryDelay:      "2s",
		},
		Notify: NotifyConfig{
			DedupWindow: "60s",
		},
		Feed: FeedConfig{
			Path: "${PAVILION_ROOT}/feed.db",
			Keep: 200,
		},
		Bridge: BridgeConfig{
			Socket: "${PAVILION_ROOT}/core.sock",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by PAVILION_CONFIG.
// There are no fallbacks: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PAVILION_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PAVILION_CONFIG environment variable not set; " +
			"set it to the path of your pavilion.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The file is the single source of truth: environment variables do not
// override values. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides merges the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Chat != nil {
		if overrides.Chat.BaseURL != "" {
			c.Chat.BaseURL = overrides.Chat.BaseURL
		}
		if overrides.Chat.AppID != "" {
			c.Chat.AppID = overrides.Chat.AppID
		}
		if overrides.Chat.APIKeyEnv != "" {
			c.Chat.APIKeyEnv = overrides.Chat.APIKeyEnv
		}
		if overrides.Chat.RefreshInterval != "" {
			c.Chat.RefreshInterval = overrides.Chat.RefreshInterval
		}
		if overrides.Chat.RefreshSkew != "" {
			c.Chat.RefreshSkew = overrides.Chat.RefreshSkew
		}
		if overrides.Chat.RetryAttempts > 0 {
			c.Chat.RetryAttempts = overrides.Chat.RetryAttempts
		}
		if overrides.Chat.RetryDelay != "" {
			c.Chat.RetryDelay = overrides.Chat.RetryDelay
		}
	}

	if overrides.Marketing != nil {
		if overrides.Marketing.BaseURL != "" {
			c.Marketing.BaseURL = overrides.Marketing.BaseURL
		}
		if overrides.Marketing.APIKeyEnv != "" {
			c.Marketing.APIKeyEnv = overrides.Marketing.APIKeyEnv
		}
	}

	if overrides.Bridge != nil {
		if overrides.Bridge.Socket != "" {
			c.Bridge.Socket = overrides.Bridge.Socket
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"PAVILION_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["PAVILION_ROOT"] = c.Paths.Root // update for dependent paths

	c.Feed.Path = expandVars(c.Feed.Path, vars)
	c.Bridge.Socket = expandVars(c.Bridge.Socket, vars)
	c.Notify.RoutesPath = expandVars(c.Notify.RoutesPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking the
// provided vars first and then the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, joining every problem
// into one error so operators fix them all in one pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.Platform {
	case "ios", "android", "web":
	default:
		errs = append(errs, fmt.Errorf("platform must be ios, android, or web, got %q", c.Platform))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Chat.BaseURL == "" {
		errs = append(errs, fmt.Errorf("chat.base_url is required"))
	} else if _, err := url.Parse(c.Chat.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("chat.base_url: %w", err))
	}
	if c.Chat.AppID == "" {
		errs = append(errs, fmt.Errorf("chat.app_id is required"))
	}
	if c.Chat.APIKeyEnv == "" {
		errs = append(errs, fmt.Errorf("chat.api_key_env is required"))
	}
	if _, err := c.Chat.Timing(); err != nil {
		errs = append(errs, err)
	}

	if c.Marketing.BaseURL == "" {
		errs = append(errs, fmt.Errorf("marketing.base_url is required"))
	}
	if c.Marketing.APIKeyEnv == "" {
		errs = append(errs, fmt.Errorf("marketing.api_key_env is required"))
	}

	if _, err := c.Notify.DedupWindowDuration(); err != nil {
		errs = append(errs, err)
	}

	if c.Feed.Path == "" {
		errs = append(errs, fmt.Errorf("feed.path is required"))
	}
	if c.Feed.Keep <= 0 {
		errs = append(errs, fmt.Errorf("feed.keep must be positive, got %d", c.Feed.Keep))
	}

	if c.Bridge.Socket == "" {
		errs = append(errs, fmt.Errorf("bridge.socket is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	dirs := []string{
		c.Paths.Root,
		filepath.Dir(c.Feed.Path),
		filepath.Dir(c.Bridge.Socket),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
