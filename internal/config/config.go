// Package config loads warren.yml and the LLM credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/fault"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is the config file looked up in the working directory.
	DefaultPath = "warren.yml"

	// PathEnv overrides DefaultPath.
	PathEnv = "WARREN_CONFIG"

	// APIKeyEnv and OrgIDEnv hold the LLM credentials.
	APIKeyEnv = "OPEN_AI_KEY"
	OrgIDEnv  = "OPEN_AI_ORG"
)

// instanceNamePattern keeps journal namespaces DNS-compatible: lowercase
// alphanumeric with inner hyphens, at most 63 characters.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]{0,61}[a-z0-9])?$`)

// Build drivers
const (
	DriverProcess = "process"
	DriverDocker  = "docker"
)

// Config represents the top-level warren.yml configuration
type Config struct {
	Version  string         `yaml:"version"`
	Model    ModelConfig    `yaml:"model"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Paths    PathsConfig    `yaml:"paths"`
	Build    BuildConfig    `yaml:"build"`
	Probe    ProbeConfig    `yaml:"probe"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelConfig selects the completion model
type ModelConfig struct {
	Name        string   `yaml:"name"`
	Temperature *float32 `yaml:"temperature,omitempty"` // default 1.0
}

// GatewayConfig controls retries of a single completion call
type GatewayConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // includes the first call, default 2
	Backoff     time.Duration `yaml:"backoff"`
	BaseURL     string        `yaml:"base_url,omitempty"` // empty = public API
}

// PipelineConfig controls the stages
type PipelineConfig struct {
	RetryBudget    *int          `yaml:"retry_budget,omitempty"`    // repair attempts, default 2
	DecodeReprompt *bool         `yaml:"decode_reprompt,omitempty"` // default true
	ImproveCode    *bool         `yaml:"improve_code,omitempty"`    // default true
	Timeout        time.Duration `yaml:"timeout"`                   // 0 = no limit
}

// PathsConfig locates the starter template and generated artifacts
type PathsConfig struct {
	Template       string `yaml:"template"`
	BackendCode    string `yaml:"backend_code"`
	EndpointSchema string `yaml:"endpoint_schema"`
}

// BuildConfig describes how generated code is compiled and run
type BuildConfig struct {
	Driver      string        `yaml:"driver"` // "process" or "docker"
	Dir         string        `yaml:"dir"`
	Command     []string      `yaml:"command"`
	RunCommand  []string      `yaml:"run_command"`
	Image       string        `yaml:"image,omitempty"` // required for docker
	Port        int           `yaml:"port"`
	StartupWait time.Duration `yaml:"startup_wait"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ProbeConfig bounds HTTP status checks
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// JournalConfig points the artefact journal at Redis. An empty RedisURL
// disables the journal.
type JournalConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
	Instance string `yaml:"instance"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level"`          // debug, info, warn, error
	Format string `yaml:"format"`         // console or json
	File   string `yaml:"file,omitempty"` // also log here
}

// Default returns the configuration used when warren.yml is absent.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Model.Name == "" {
		c.Model.Name = "o4-mini"
	}
	if c.Model.Temperature == nil {
		t := float32(1.0)
		c.Model.Temperature = &t
	}
	if c.Gateway.MaxAttempts == 0 {
		c.Gateway.MaxAttempts = 2
	}
	if c.Pipeline.RetryBudget == nil {
		budget := 2
		c.Pipeline.RetryBudget = &budget
	}
	if c.Pipeline.DecodeReprompt == nil {
		on := true
		c.Pipeline.DecodeReprompt = &on
	}
	if c.Pipeline.ImproveCode == nil {
		on := true
		c.Pipeline.ImproveCode = &on
	}
	if c.Paths.Template == "" {
		c.Paths.Template = "web_template/src/code_template.rs"
	}
	if c.Paths.BackendCode == "" {
		c.Paths.BackendCode = "web_template/src/main.rs"
	}
	if c.Paths.EndpointSchema == "" {
		c.Paths.EndpointSchema = "schemas/api_schema.json"
	}
	if c.Build.Driver == "" {
		c.Build.Driver = DriverProcess
	}
	if c.Build.Dir == "" {
		c.Build.Dir = "web_template"
	}
	if len(c.Build.Command) == 0 {
		c.Build.Command = []string{"cargo", "build"}
	}
	if len(c.Build.RunCommand) == 0 {
		c.Build.RunCommand = []string{"cargo", "run"}
	}
	if c.Build.Port == 0 {
		c.Build.Port = 8080
	}
	if c.Build.StartupWait == 0 {
		c.Build.StartupWait = 5 * time.Second
	}
	if c.Build.Timeout == 0 {
		c.Build.Timeout = 10 * time.Minute
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 5 * time.Second
	}
	if c.Journal.Instance == "" {
		c.Journal.Instance = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Temperature returns the configured sampling temperature.
func (c *Config) Temperature() float32 {
	return *c.Model.Temperature
}

// RetryBudget returns the number of repair attempts.
func (c *Config) RetryBudget() int {
	return *c.Pipeline.RetryBudget
}

// DecodeReprompt reports whether a failed decode is reprompted once.
func (c *Config) DecodeReprompt() bool {
	return *c.Pipeline.DecodeReprompt
}

// ImproveCode reports whether the backend developer runs the improvement pass.
func (c *Config) ImproveCode() bool {
	return *c.Pipeline.ImproveCode
}

// Validate applies defaults then performs strict validation
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if t := c.Temperature(); t < 0 || t > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2, got %g", t)
	}

	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway.max_attempts must be >= 1, got %d", c.Gateway.MaxAttempts)
	}
	if c.Gateway.Backoff < 0 {
		return fmt.Errorf("gateway.backoff must not be negative")
	}

	if c.RetryBudget() < 0 {
		return fmt.Errorf("pipeline.retry_budget must be >= 0, got %d", c.RetryBudget())
	}
	if c.Pipeline.Timeout < 0 {
		return fmt.Errorf("pipeline.timeout must not be negative")
	}

	switch c.Build.Driver {
	case DriverProcess:
	case DriverDocker:
		if c.Build.Image == "" {
			return fmt.Errorf("build.image is required when build.driver is %q", DriverDocker)
		}
	default:
		return fmt.Errorf("invalid build.driver: %s (must be '%s' or '%s')", c.Build.Driver, DriverProcess, DriverDocker)
	}

	if c.Build.Port < 1 || c.Build.Port > 65535 {
		return fmt.Errorf("build.port must be between 1 and 65535, got %d", c.Build.Port)
	}

	if !instanceNamePattern.MatchString(c.Journal.Instance) {
		return fmt.Errorf("invalid journal.instance '%s': must be lowercase alphanumeric with hyphens (not at start/end)", c.Journal.Instance)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be 'debug', 'info', 'warn' or 'error')", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	return nil
}

// Path returns the config file location, honouring WARREN_CONFIG.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and validates the config at path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Credentials authenticate against the LLM API.
type Credentials struct {
	APIKey string
	OrgID  string
}

// LoadCredentials reads OPEN_AI_KEY and OPEN_AI_ORG. Missing values are a
// fatal Config error.
func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		APIKey: strings.TrimSpace(os.Getenv(APIKeyEnv)),
		OrgID:  strings.TrimSpace(os.Getenv(OrgIDEnv)),
	}

	var missing []string
	if creds.APIKey == "" {
		missing = append(missing, APIKeyEnv)
	}
	if creds.OrgID == "" {
		missing = append(missing, OrgIDEnv)
	}
	if len(missing) > 0 {
		return Credentials{}, fault.Fatal(fault.KindConfig, "load credentials",
			fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", ")))
	}

	return creds, nil
}
