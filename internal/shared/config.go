package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// RunIDPlaceholder is substituted with the run id in [BackendConfig.ExecutePath].
const RunIDPlaceholder = "{runId}"

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Backend   BackendConfig   `toml:"backend" yaml:"backend"`
	Transport TransportConfig `toml:"transport" yaml:"transport"`
	Presenter PresenterConfig `toml:"presenter" yaml:"presenter"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// BackendConfig locates the evaluation backend.
type BackendConfig struct {
	BaseURL      string `toml:"base_url" yaml:"base_url"`
	WSPath       string `toml:"ws_path" yaml:"ws_path"`
	TopicPrefix  string `toml:"topic_prefix" yaml:"topic_prefix"`
	ProgressPath string `toml:"progress_path" yaml:"progress_path"`
	ExecutePath  string `toml:"execute_path" yaml:"execute_path"`
}

// TransportConfig tunes the publish/subscribe connection.
type TransportConfig struct {
	ReconnectDelayMS int `toml:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
}

// PresenterConfig holds the auto-dismiss delays of the progress view.
type PresenterConfig struct {
	CompleteDelayMS int `toml:"complete_delay_ms" yaml:"complete_delay_ms"`
	FailedDelayMS   int `toml:"failed_delay_ms" yaml:"failed_delay_ms"`
	PollIntervalMS  int `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// AuthConfig contains the backend bearer token.
type AuthConfig struct {
	Token         string `toml:"token" yaml:"token"`
	TokenExpiry   string `toml:"token_expiry" yaml:"token_expiry"`
	ManagementURL string `toml:"management_url" yaml:"management_url"`
}

// ServerConfig contains progress server settings.
type ServerConfig struct {
	Host           string `toml:"host" yaml:"host"`
	Port           int    `toml:"port" yaml:"port"`
	DemoSteps      int    `toml:"demo_steps" yaml:"demo_steps"`
	DemoStepMS     int    `toml:"demo_step_ms" yaml:"demo_step_ms"`
	CleanupAfterMS int    `toml:"cleanup_after_ms" yaml:"cleanup_after_ms"`
}

// LogConfig selects the log level and the file used while the terminal view is active.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Missing values are filled from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = toml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.normalize(DefaultConfig())
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) normalize(d *Config) {
	def := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	defInt := func(v *int, fallback int) {
		if *v <= 0 {
			*v = fallback
		}
	}

	def(&c.Backend.BaseURL, d.Backend.BaseURL)
	def(&c.Backend.WSPath, d.Backend.WSPath)
	def(&c.Backend.TopicPrefix, d.Backend.TopicPrefix)
	def(&c.Backend.ProgressPath, d.Backend.ProgressPath)
	def(&c.Backend.ExecutePath, d.Backend.ExecutePath)
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if !strings.HasSuffix(c.Backend.TopicPrefix, "/") {
		c.Backend.TopicPrefix += "/"
	}

	defInt(&c.Transport.ReconnectDelayMS, d.Transport.ReconnectDelayMS)
	defInt(&c.Presenter.CompleteDelayMS, d.Presenter.CompleteDelayMS)
	defInt(&c.Presenter.FailedDelayMS, d.Presenter.FailedDelayMS)
	defInt(&c.Presenter.PollIntervalMS, d.Presenter.PollIntervalMS)

	def(&c.Auth.ManagementURL, d.Auth.ManagementURL)

	def(&c.Server.Host, d.Server.Host)
	defInt(&c.Server.Port, d.Server.Port)
	defInt(&c.Server.DemoSteps, d.Server.DemoSteps)
	defInt(&c.Server.DemoStepMS, d.Server.DemoStepMS)
	defInt(&c.Server.CleanupAfterMS, d.Server.CleanupAfterMS)

	def(&c.Log.Level, d.Log.Level)
	def(&c.Log.File, d.Log.File)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: backend.base_url %q must be an http(s) URL", ErrInvalidConfig, c.Backend.BaseURL)
	}
	if !strings.Contains(c.Backend.ExecutePath, RunIDPlaceholder) {
		return fmt.Errorf("%w: backend.execute_path must contain %s", ErrInvalidConfig, RunIDPlaceholder)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.Auth.OAuthToken(); err != nil {
		return err
	}
	return nil
}

// WSURL derives the WebSocket endpoint from the base URL (http→ws, https→wss).
func (b BackendConfig) WSURL() string {
	base := b.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + b.WSPath
}

// ExecuteURL returns the absolute execute URL for runID.
func (b BackendConfig) ExecuteURL(runID string) string {
	return b.BaseURL + strings.ReplaceAll(b.ExecutePath, RunIDPlaceholder, url.PathEscape(runID))
}

// Topic returns the per-run topic.
func (b BackendConfig) Topic(runID string) string {
	return b.TopicPrefix + runID
}

// BroadcastTopic returns the topic receiving every run's events.
func (b BackendConfig) BroadcastTopic() string {
	return strings.TrimSuffix(b.TopicPrefix, "/")
}

func (t TransportConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectDelayMS) * time.Millisecond
}

func (p PresenterConfig) CompleteDelay() time.Duration {
	return time.Duration(p.CompleteDelayMS) * time.Millisecond
}

func (p PresenterConfig) FailedDelay() time.Duration {
	return time.Duration(p.FailedDelayMS) * time.Millisecond
}

func (p PresenterConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s ServerConfig) StepDelay() time.Duration {
	return time.Duration(s.DemoStepMS) * time.Millisecond
}

func (s ServerConfig) CleanupAfter() time.Duration {
	return time.Duration(s.CleanupAfterMS) * time.Millisecond
}

// OAuthToken returns the configured bearer token, or nil when none is set.
//
// An empty expiry yields a token that never expires.
func (a AuthConfig) OAuthToken() (*oauth2.Token, error) {
	if a.Token == "" {
		return nil, nil
	}

	tok := &oauth2.Token{AccessToken: a.Token, TokenType: "Bearer"}
	if a.TokenExpiry != "" {
		exp, err := time.Parse(time.RFC3339, a.TokenExpiry)
		if err != nil {
			return nil, fmt.Errorf("%w: auth.token_expiry %q: %v", ErrInvalidConfig, a.TokenExpiry, err)
		}
		tok.Expiry = exp
	}
	return tok, nil
}
