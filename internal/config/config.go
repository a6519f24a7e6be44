// Package config loads the askr runtime configuration from a YAML file with
// environment-variable overrides, following the ASKR_<SECTION>_<FIELD>
// convention.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Gateway holds the outbound message gateway's connection settings.
type Gateway struct {
	BaseURL                   string `yaml:"base_url"`
	TimeoutSeconds            int    `yaml:"timeout_seconds"`
	StatusCheckTimeoutSeconds int    `yaml:"status_check_timeout_seconds"`
	MaxRetries                int    `yaml:"max_retries"`
}

// Listen holds the ingress HTTP server's bind address.
type Listen struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Paths holds filesystem locations the runtime depends on.
type Paths struct {
	PluginsDir   string `yaml:"plugins_dir"`
	DatabaseFile string `yaml:"database_file"`
}

// Execution holds the sandbox's resource caps and the worker binary path.
type Execution struct {
	MaxCPUSeconds  float64 `yaml:"max_cpu_seconds"`
	MaxWallSeconds float64 `yaml:"max_wall_seconds"`
	MemoryLimitMB  int64   `yaml:"memory_limit_mb"`
	PollIntervalMS int     `yaml:"poll_interval_ms"`
	WorkerBinary   string  `yaml:"worker_binary"`
}

// Admin holds the admin notification channel's settings.
type Admin struct {
	Enabled          bool   `yaml:"enabled"`
	AdminID          int64  `yaml:"admin_id"`
	NotifyLevel      string `yaml:"notify_level"`
	RateLimitSeconds int    `yaml:"rate_limit_seconds"`
	MessageFormat    string `yaml:"message_format"`
}

// Config is the top-level runtime configuration.
type Config struct {
	Gateway   Gateway   `yaml:"gateway"`
	Listen    Listen    `yaml:"listen"`
	Paths     Paths     `yaml:"paths"`
	Execution Execution `yaml:"execution"`
	Admin     Admin     `yaml:"admin"`
	LogLevel  string    `yaml:"log_level"`
	LogPretty bool      `yaml:"log_pretty"`
}

// Default returns the configuration's zero-value-safe defaults.
func Default() Config {
	return Config{
		Gateway: Gateway{
			BaseURL:                   "http://localhost:29217",
			TimeoutSeconds:            10,
			StatusCheckTimeoutSeconds: 5,
			MaxRetries:                3,
		},
		Listen: Listen{Host: "0.0.0.0", Port: 29218},
		Paths:  Paths{PluginsDir: "./plugins", DatabaseFile: "./askr_history.db"},
		Execution: Execution{
			MaxCPUSeconds:  3.0,
			MaxWallSeconds: 30.0,
			MemoryLimitMB:  100,
			PollIntervalMS: 100,
			WorkerBinary:   "./askr-worker",
		},
		Admin: Admin{
			Enabled:          false,
			NotifyLevel:      "warn",
			RateLimitSeconds: 300,
			MessageFormat:    "Alert\n[{level}] {time}\n{message}",
		},
		LogLevel:  "info",
		LogPretty: false,
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(env string, dst *string) {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	i := func(env string, dst *int) {
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	i64 := func(env string, dst *int64) {
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	f := func(env string, dst *float64) {
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	b := func(env string, dst *bool) {
		if v, ok := os.LookupEnv(env); ok {
			if n, err := strconv.ParseBool(v); err == nil {
				*dst = n
			}
		}
	}

	str("ASKR_GATEWAY_BASE_URL", &cfg.Gateway.BaseURL)
	i("ASKR_GATEWAY_TIMEOUT_SECONDS", &cfg.Gateway.TimeoutSeconds)
	i("ASKR_GATEWAY_MAX_RETRIES", &cfg.Gateway.MaxRetries)
	str("ASKR_LISTEN_HOST", &cfg.Listen.Host)
	i("ASKR_LISTEN_PORT", &cfg.Listen.Port)
	str("ASKR_PATHS_PLUGINS_DIR", &cfg.Paths.PluginsDir)
	str("ASKR_PATHS_DATABASE_FILE", &cfg.Paths.DatabaseFile)
	f("ASKR_EXECUTION_MAX_CPU_SECONDS", &cfg.Execution.MaxCPUSeconds)
	f("ASKR_EXECUTION_MAX_WALL_SECONDS", &cfg.Execution.MaxWallSeconds)
	i64("ASKR_EXECUTION_MEMORY_LIMIT_MB", &cfg.Execution.MemoryLimitMB)
	i("ASKR_EXECUTION_POLL_INTERVAL_MS", &cfg.Execution.PollIntervalMS)
	str("ASKR_EXECUTION_WORKER_BINARY", &cfg.Execution.WorkerBinary)
	b("ASKR_ADMIN_ENABLED", &cfg.Admin.Enabled)
	i64("ASKR_ADMIN_ID", &cfg.Admin.AdminID)
	str("ASKR_ADMIN_NOTIFY_LEVEL", &cfg.Admin.NotifyLevel)
	i("ASKR_ADMIN_RATE_LIMIT_SECONDS", &cfg.Admin.RateLimitSeconds)
	str("ASKR_LOG_LEVEL", &cfg.LogLevel)
	b("ASKR_LOG_PRETTY", &cfg.LogPretty)
}
