package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"extflow/internal/domain"
)

// Config models extflow.yml.
type Config struct {
	Backend struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		Issuer             string `yaml:"issuer"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		DevLogin           bool   `yaml:"dev_login"`
	} `yaml:"auth"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Workflow struct {
		EnforceRequirements bool `yaml:"enforce_requirements"`
	} `yaml:"workflow"`
	Journal struct {
		Enabled *bool `yaml:"enabled"`
		// Path overrides the default .extflow/extflow.db location.
		Path string `yaml:"path"`
	} `yaml:"journal"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one transition webhook. Events filters on the
// destination status; an empty list delivers every successful transition.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// BackendTimeout returns the HTTP timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// JournalEnabled reports whether transition attempts are journaled. The
// journal is on unless explicitly disabled.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with xf config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("config.backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.backend.base_url must be an absolute URL")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("config.backend.timeout_seconds must not be negative")
	}
	if c.Auth.JWTSecret == "" && !c.Auth.InsecureSkipVerify {
		return fmt.Errorf("config.auth.jwt_secret is required unless auth.insecure_skip_verify is set")
	}
	if c.Auth.DevLogin && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.dev_login requires auth.jwt_secret")
	}
	if bp := c.Server.BasePath; bp != "" && !strings.HasPrefix(bp, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
		for _, evt := range hook.Events {
			if !domain.Status(strings.TrimSpace(evt)).Valid() {
				return fmt.Errorf("webhook %d filters on unknown status %s", i, evt)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "extflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(backendURL string) string {
	return fmt.Sprintf(defaultTemplate, backendURL)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for a backend URL.
func Default(backendURL string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(backendURL)), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `backend:
  base_url: %s
  timeout_seconds: 15

auth:
  jwt_secret: change-me
  insecure_skip_verify: false
  dev_login: false

server:
  addr: 127.0.0.1:8080
  base_path: /v0

workflow:
  # When true, incomplete projects cannot move forward until every
  # requirement is met. Sending back to formulation or rejecting is never blocked.
  enforce_requirements: false

journal:
  enabled: true

webhooks: []
`
