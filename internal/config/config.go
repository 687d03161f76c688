package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/opsgate/internal/auth"
	"github.com/loykin/opsgate/internal/logger"
	"github.com/loykin/opsgate/internal/monitor"
	"github.com/loykin/opsgate/internal/store"
	"github.com/loykin/opsgate/internal/tls"
)

// Config is the top-level TOML structure for the opsgate daemon.
type Config struct {
	Server    ServerConfig   `toml:"server" mapstructure:"server"`
	Log       logger.Config  `toml:"log" mapstructure:"log"`
	Store     store.Config   `toml:"store" mapstructure:"store"`
	Audit     AuditConfig    `toml:"audit" mapstructure:"audit"`
	Monitor   monitor.Config `toml:"monitor" mapstructure:"monitor"`
	Alert     AlertConfig    `toml:"alert" mapstructure:"alert"`
	Confirm   ConfirmConfig  `toml:"confirm" mapstructure:"confirm"`
	Docker    DockerConfig   `toml:"docker" mapstructure:"docker"`
	Operators []string       `toml:"operators" mapstructure:"operators"`
}

type ServerConfig struct {
	Addr     string      `toml:"addr" mapstructure:"addr"`
	BasePath string      `toml:"base_path" mapstructure:"base_path"`
	Auth     auth.Config `toml:"auth" mapstructure:"auth"`
	TLS      tls.Config  `toml:"tls" mapstructure:"tls"`
}

type AuditConfig struct {
	DSNs []string `toml:"dsns" mapstructure:"dsns"`
}

type AlertConfig struct {
	WebhookURL  string        `toml:"webhook_url" mapstructure:"webhook_url"`
	Destination string        `toml:"destination" mapstructure:"destination"`
	Cooldown    time.Duration `toml:"cooldown" mapstructure:"cooldown"`
	SendTimeout time.Duration `toml:"send_timeout" mapstructure:"send_timeout"`
}

type ConfirmConfig struct {
	Timeout       time.Duration `toml:"timeout" mapstructure:"timeout"`
	SweepInterval time.Duration `toml:"sweep_interval" mapstructure:"sweep_interval"`
}

type DockerConfig struct {
	ComposeDir string `toml:"compose_dir" mapstructure:"compose_dir"`
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8553"
	}
	if c.Confirm.Timeout <= 0 {
		c.Confirm.Timeout = 30 * time.Second
	}
	if c.Confirm.SweepInterval <= 0 {
		c.Confirm.SweepInterval = time.Minute
	}
	if c.Alert.SendTimeout <= 0 {
		c.Alert.SendTimeout = 10 * time.Second
	}
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Alert.Cooldown < 0 {
		return fmt.Errorf("alert.cooldown must not be negative")
	}
	if c.Monitor.Interval < 0 {
		return fmt.Errorf("monitor.interval must not be negative")
	}
	if c.Alert.WebhookURL == "" && c.Alert.Destination != "" {
		return fmt.Errorf("alert.destination set without alert.webhook_url")
	}
	if c.Server.Auth.Enabled && len(c.Server.Auth.Tokens) == 0 {
		return fmt.Errorf("server.auth.enabled requires at least one token")
	}
	for _, op := range c.Operators {
		if op == "" {
			return fmt.Errorf("operators must not contain empty ids")
		}
	}
	return nil
}

// OperatorAllowed reports whether the operator id is on the allow-list.
// An empty list allows everyone (embedding callers gate themselves).
func (c *Config) OperatorAllowed(id string) bool {
	if len(c.Operators) == 0 {
		return true
	}
	for _, op := range c.Operators {
		if op == id {
			return true
		}
	}
	return false
}
