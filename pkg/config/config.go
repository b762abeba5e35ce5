// Package config loads service configuration from defaults, a YAML file, and
// environment variables, in that order of increasing precedence, using the
// functional-options pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and authenticates against one of the two supported
// chat-completion dialects.
type LLMConfig struct {
	Provider   string `yaml:"provider" env:"LLM_PROVIDER"`
	APIKey     string `yaml:"api_key" env:"LLM_API_KEY"`
	Model      string `yaml:"model" env:"LLM_MODEL"`
	BaseURL    string `yaml:"base_url" env:"LLM_BASE_URL"`
	MaxTokens  int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE"`
}

// DockerConfig carries the CLI timeouts the driver uses and the default
// container resource caps. The pipeline's build task does not pass
// MemoryLimit or CPULimit to `docker run`, so sandbox containers start
// without memory or CPU caps.
type DockerConfig struct {
	BuildTimeout   time.Duration `yaml:"build_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	ExecTimeout    time.Duration `yaml:"exec_timeout"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	RemoveTimeout  time.Duration `yaml:"remove_timeout"`
	RestartTimeout time.Duration `yaml:"restart_timeout"`
	MemoryLimit    string        `yaml:"memory_limit" env:"DOCKER_MEMORY_LIMIT"`
	CPULimit       string        `yaml:"cpu_limit" env:"DOCKER_CPU_LIMIT"`
}

// ServerConfig controls the host-facing HTTP surface.
type ServerConfig struct {
	Addr          string `yaml:"addr" env:"SERVER_ADDR"`
	SearchAPIKey  string `yaml:"search_api_key" env:"SEARCH_API_KEY"`
	SearchBaseURL string `yaml:"search_base_url" env:"SEARCH_BASE_URL"`
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Config is the fully resolved configuration for one process.
type Config struct {
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	LLM     LLMConfig       `yaml:"llm"`
	Docker  DockerConfig    `yaml:"docker"`
	Server  ServerConfig    `yaml:"server"`
	Logging LoggingConfig   `yaml:"logging"`
}

// Option mutates a Config during Load; options apply in the order given, so
// later options win.
type Option func(*Config) error

// WithDefaults seeds every field with a usable default.
func WithDefaults() Option {
	return func(c *Config) error {
		c.DataDir = "./data"
		c.LLM = LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-3-5-sonnet-20241022",
			BaseURL:     "",
			MaxTokens:   4096,
			Temperature: 0.2,
		}
		c.Docker = DockerConfig{
			BuildTimeout:   300 * time.Second,
			RunTimeout:     60 * time.Second,
			ExecTimeout:    30 * time.Second,
			StopTimeout:    30 * time.Second,
			RemoveTimeout:  30 * time.Second,
			RestartTimeout: 30 * time.Second,
			MemoryLimit:    "2g",
			CPULimit:       "2",
		}
		c.Server = ServerConfig{Addr: ":8080"}
		c.Logging = LoggingConfig{Level: "info", Format: "json"}
		return nil
	}
}

// FromFile merges a YAML document at path into c. A missing file is not an error.
func FromFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: decoding %s: %w", path, err)
		}
		return nil
	}
}

// FromEnv overlays a fixed set of environment variables onto c.
func FromEnv() Option {
	return func(c *Config) error {
		if v, ok := os.LookupEnv("DATA_DIR"); ok {
			c.DataDir = v
		}
		if v, ok := os.LookupEnv("LLM_PROVIDER"); ok {
			c.LLM.Provider = v
		}
		if v, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = v
		}
		if v, ok := os.LookupEnv("LLM_MODEL"); ok {
			c.LLM.Model = v
		}
		if v, ok := os.LookupEnv("LLM_BASE_URL"); ok {
			c.LLM.BaseURL = v
		}
		if v, ok := os.LookupEnv("LLM_MAX_TOKENS"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				c.LLM.MaxTokens = n
			}
		}
		if v, ok := os.LookupEnv("LLM_TEMPERATURE"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.LLM.Temperature = f
			}
		}
		if v, ok := os.LookupEnv("SERVER_ADDR"); ok {
			c.Server.Addr = v
		}
		if v, ok := os.LookupEnv("SEARCH_API_KEY"); ok {
			c.Server.SearchAPIKey = v
		}
		if v, ok := os.LookupEnv("SEARCH_BASE_URL"); ok {
			c.Server.SearchBaseURL = v
		}
		if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
			c.Logging.Level = v
		}
		if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
			c.Logging.Format = v
		}
		if v, ok := os.LookupEnv("DOCKER_MEMORY_LIMIT"); ok {
			c.Docker.MemoryLimit = v
		}
		if v, ok := os.LookupEnv("DOCKER_CPU_LIMIT"); ok {
			c.Docker.CPULimit = v
		}
		return nil
	}
}

// Load builds a Config by applying opts in order. Callers typically pass
// WithDefaults(), FromFile(path), FromEnv() so environment always wins.
func Load(opts ...Option) (*Config, error) {
	c := &Config{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects configurations that would fail loudly and confusingly
// later, instead of at startup.
func (c *Config) Validate() error {
	provider := strings.ToLower(c.LLM.Provider)
	if provider != "anthropic" && provider != "openai" {
		return fmt.Errorf("config: llm.provider must be \"anthropic\" or \"openai\", got %q", c.LLM.Provider)
	}
	if c.Docker.BuildTimeout <= 0 || c.Docker.RunTimeout <= 0 || c.Docker.ExecTimeout <= 0 ||
		c.Docker.StopTimeout <= 0 || c.Docker.RemoveTimeout <= 0 || c.Docker.RestartTimeout <= 0 {
		return fmt.Errorf("config: all docker timeouts must be positive")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	return nil
}
