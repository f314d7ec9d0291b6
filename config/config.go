package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Addr     string       `koanf:"addr"`
	DBPath   string       `koanf:"db_path"`
	Timezone string       `koanf:"timezone"` // IANA name, or "Local"
	Auth     AuthConfig   `koanf:"auth"`
	Alarm    AlarmConfig  `koanf:"alarm"`
	Backup   BackupConfig `koanf:"backup"`
	Log      LogConfig    `koanf:"log"`
}

type AuthConfig struct {
	Secret        string `koanf:"secret"`
	TokenTTLHours int    `koanf:"token_ttl_hours"`
}

type AlarmConfig struct {
	// ExactEnabled is the exact-scheduling permission gate. When false,
	// Schedule calls are refused and the caller surfaces the denial.
	ExactEnabled bool `koanf:"exact_enabled"`
}

type BackupConfig struct {
	Enabled  bool   `koanf:"enabled"`
	RepoPath string `koanf:"repo_path"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// Load builds the configuration from defaults, an optional YAML file and
// REMIND_-prefixed environment variables ("__" maps to a level separator,
// e.g. REMIND_AUTH__SECRET -> auth.secret).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("REMIND_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "REMIND_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (set REMIND_AUTH__SECRET or auth.secret in the config file)")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("auth token_ttl_hours must be positive")
	}
	if c.Backup.Enabled && c.Backup.RepoPath == "" {
		return fmt.Errorf("backup repo_path is required when backup is enabled")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
