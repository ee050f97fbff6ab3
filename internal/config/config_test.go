package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "o4-mini", cfg.Model.Name)
	assert.Equal(t, float32(1.0), cfg.Temperature())
	assert.Equal(t, 2, cfg.Gateway.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Gateway.Backoff)
	assert.Equal(t, 2, cfg.RetryBudget())
	assert.True(t, cfg.DecodeReprompt())
	assert.True(t, cfg.ImproveCode())
	assert.Equal(t, DriverProcess, cfg.Build.Driver)
	assert.Equal(t, []string{"cargo", "build"}, cfg.Build.Command)
	assert.Equal(t, 8080, cfg.Build.Port)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "default", cfg.Journal.Instance)
	assert.Empty(t, cfg.Journal.RedisURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
model:
  name: gpt-4o
  temperature: 0
gateway:
  max_attempts: 3
  backoff: 250ms
pipeline:
  retry_budget: 0
  decode_reprompt: false
  timeout: 15m
build:
  driver: docker
  image: rust:1.79
  command: ["cargo", "build", "--release"]
  port: 9090
journal:
  redis_url: redis://localhost:6379/0
  instance: ci
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, float32(0), cfg.Temperature(), "explicit zero temperature is kept")
	assert.Equal(t, 3, cfg.Gateway.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.Backoff)
	assert.Equal(t, 0, cfg.RetryBudget(), "explicit zero budget is kept")
	assert.False(t, cfg.DecodeReprompt())
	assert.True(t, cfg.ImproveCode())
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, DriverDocker, cfg.Build.Driver)
	assert.Equal(t, []string{"cargo", "build", "--release"}, cfg.Build.Command)
	assert.Equal(t, []string{"cargo", "run"}, cfg.Build.RunCommand)
	assert.Equal(t, 9090, cfg.Build.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Journal.RedisURL)
	assert.Equal(t, "ci", cfg.Journal.Instance)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileNotFoundUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "model:\n  - this is invalid\n    yaml syntax\n")

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"bad version", `version: "2.0"`, "unsupported version"},
		{"temperature too high", "model:\n  temperature: 3", "model.temperature"},
		{"negative attempts", "gateway:\n  max_attempts: -1", "gateway.max_attempts"},
		{"negative budget", "pipeline:\n  retry_budget: -1", "pipeline.retry_budget"},
		{"unknown driver", "build:\n  driver: podman", "invalid build.driver"},
		{"docker without image", "build:\n  driver: docker", "build.image is required"},
		{"bad port", "build:\n  port: 70000", "build.port"},
		{"instance with capitals", "journal:\n  instance: MyRuns", "invalid journal.instance"},
		{"instance ending in hyphen", "journal:\n  instance: runs-", "invalid journal.instance"},
		{"bad level", "logging:\n  level: loud", "invalid logging.level"},
		{"bad format", "logging:\n  format: xml", "invalid logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv(PathEnv, "/etc/warren.yml")
	assert.Equal(t, "/etc/warren.yml", Path())
}

func TestLoadCredentials(t *testing.T) {
	t.Run("both present", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "sk-test")
		t.Setenv(OrgIDEnv, " org-test ")

		creds, err := LoadCredentials()
		require.NoError(t, err)
		assert.Equal(t, Credentials{APIKey: "sk-test", OrgID: "org-test"}, creds)
	})

	t.Run("missing is fatal config error", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		t.Setenv(OrgIDEnv, "")

		_, err := LoadCredentials()
		require.Error(t, err)
		assert.True(t, fault.IsFatal(err))
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
		assert.Contains(t, err.Error(), APIKeyEnv)
		assert.Contains(t, err.Error(), OrgIDEnv)
	})
}
