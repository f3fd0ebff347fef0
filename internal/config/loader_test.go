package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Agent.PollMaxAttempts != 24 {
		t.Errorf("expected 24 poll attempts, got %d", cfg.Agent.PollMaxAttempts)
	}
	if cfg.Agent.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %v", cfg.Agent.PollInterval)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
agent:
  agent_id: "agent-123"
  poll_max_attempts: 3
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Agent.AgentID != "agent-123" {
		t.Errorf("expected agent id agent-123, got %s", cfg.Agent.AgentID)
	}
	if cfg.Agent.PollMaxAttempts != 3 {
		t.Errorf("expected 3 poll attempts, got %d", cfg.Agent.PollMaxAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Agent.PollInterval != 5*time.Second {
		t.Errorf("expected default poll interval, got %v", cfg.Agent.PollInterval)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SPEAKERKIT_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("AIXPLAIN_API_KEY", "key-1")
	t.Setenv("SPEAKERKIT_AGENT_POLL_INTERVAL", "100ms")
	t.Setenv("SPEAKERKIT_LOG_LEVEL", "warn")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Agent.APIKey != "key-1" {
		t.Errorf("expected api key key-1, got %s", cfg.Agent.APIKey)
	}
	if cfg.Agent.PollInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms poll interval, got %v", cfg.Agent.PollInterval)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty agent base URL",
			modify: func(c *Config) { c.Agent.BaseURL = "" },
			errMsg: "agent.base_url is required",
		},
		{
			name:   "zero poll attempts",
			modify: func(c *Config) { c.Agent.PollMaxAttempts = 0 },
			errMsg: "agent.poll_max_attempts must be >= 1",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}
