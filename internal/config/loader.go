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
const DefaultConfigFile = "speakerkit.yaml"

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
	data, err := os.ReadFile(path)
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
	setString(&cfg.Server.Port, "SPEAKERKIT_PORT")
	setString(&cfg.Server.CORSOrigin, "SPEAKERKIT_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SPEAKERKIT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SPEAKERKIT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SPEAKERKIT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SPEAKERKIT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SPEAKERKIT_PG_HEALTH_CHECK")
	setString(&cfg.Agent.BaseURL, "AIXPLAIN_BASE_URL")
	setString(&cfg.Agent.APIKey, "AIXPLAIN_API_KEY")
	setString(&cfg.Agent.AgentID, "AIXPLAIN_AGENT_ID")
	setDuration(&cfg.Agent.HTTPTimeout, "SPEAKERKIT_AGENT_HTTP_TIMEOUT")
	setDuration(&cfg.Agent.PollInterval, "SPEAKERKIT_AGENT_POLL_INTERVAL")
	setInt(&cfg.Agent.PollMaxAttempts, "SPEAKERKIT_AGENT_POLL_MAX_ATTEMPTS")
	setString(&cfg.Logging.Level, "SPEAKERKIT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SPEAKERKIT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SPEAKERKIT_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "SPEAKERKIT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SPEAKERKIT_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "SPEAKERKIT_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SPEAKERKIT_CACHE_TTL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Agent.BaseURL == "" {
		return errors.New("agent.base_url is required")
	}
	if cfg.Agent.PollMaxAttempts < 1 {
		return errors.New("agent.poll_max_attempts must be >= 1")
	}
	if cfg.Agent.PollInterval <= 0 {
		return errors.New("agent.poll_interval must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
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

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
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
