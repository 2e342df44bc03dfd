package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the parts of the config that have no sensible default.
func (c *AppConfig) Validate() error {
	if c.Target.Name == "" {
		return fmt.Errorf("target.name is required")
	}
	if c.Target.URL == "" {
		return fmt.Errorf("target.url is required")
	}
	if len(c.Identities) == 0 {
		return fmt.Errorf("at least one identity is required")
	}
	for i, id := range c.Identities {
		if id.Name == "" {
			return fmt.Errorf("identities[%d]: name is required", i)
		}
		if len(id.Up) == 0 || len(id.Down) == 0 || len(id.Status) == 0 {
			return fmt.Errorf("identity %q: up, down and status commands are required", id.Name)
		}
	}
	if c.Target.RequiresCredentials && len(c.Credentials) == 0 {
		return fmt.Errorf("target %q requires credentials but none are configured", c.Target.Name)
	}
	if len(c.Probe.Command) == 0 {
		return fmt.Errorf("probe.command is required")
	}
	return nil
}

func (c *AppConfig) applyDefaults() {
	if c.Rotation.MaxIdentityRotations == 0 {
		c.Rotation.MaxIdentityRotations = 3
	}
	if c.Rotation.SettleDelay == 0 {
		c.Rotation.SettleDelay = 5 * time.Second
	}
	if c.Rotation.ReachabilityAttempts == 0 {
		c.Rotation.ReachabilityAttempts = 5
	}
	if c.Rotation.ReachabilityDelay == 0 {
		c.Rotation.ReachabilityDelay = 2 * time.Second
	}
	if c.Rotation.ReachabilityTimeout == 0 {
		c.Rotation.ReachabilityTimeout = 10 * time.Second
	}
	if c.Rotation.ActivateCommandTimout == 0 {
		c.Rotation.ActivateCommandTimout = 30 * time.Second
	}
	if c.Cooldown.Skips == 0 {
		c.Cooldown.Skips = 2
	}
	if len(c.Lookup.Services) == 0 {
		c.Lookup.Services = []string{
			"https://api.ipify.org",
			"https://icanhazip.com",
		}
	}
	if c.Lookup.Timeout == 0 {
		c.Lookup.Timeout = 10 * time.Second
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 3 * time.Minute
	}
}
