// Package config defines the gateway's typed configuration, loaded from
// YAML via gopkg.in/yaml.v3 with environment-variable overrides, grounded
// on the teacher's one-struct-per-concern config package
// (internal/config/config_*.go) trimmed to the options spec.md §6 names.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's full configuration, assembled from YAML and then
// patched by environment variable overrides.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Channels ChannelsConfig `yaml:"channels"`
	Agents   AgentsConfig   `yaml:"agents"`
	Skills   SkillsConfig   `yaml:"skills"`
}

// Environment variables the gateway reads, per spec.md §6.
const (
	EnvGatewayToken  = "CHAI_GATEWAY_TOKEN"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
)

// Load reads path as YAML into a Config and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// applyEnvOverrides lets deployment secrets override file-based config
// without writing them to disk.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv(EnvGatewayToken); token != "" {
		c.Gateway.Auth.Token = token
	}
	if token := os.Getenv(EnvTelegramToken); token != "" {
		c.Channels.Telegram.Token = token
	}
}
