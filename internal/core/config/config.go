package config

import (
	"time"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/notify"
	redisclient "slotwatch/internal/infra/redis"
	"slotwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Target      TargetConfig             `yaml:"target"`
	Identities  []domain.NetworkIdentity `yaml:"identities"`
	Credentials []domain.Credential      `yaml:"credentials"`
	Probe       ProbeConfig              `yaml:"probe"`
	Rotation    RotationConfig           `yaml:"rotation"`
	Cooldown    CooldownConfig           `yaml:"cooldown"`
	Lookup      LookupConfig             `yaml:"lookup"`
	Blocklist   BlocklistConfig          `yaml:"blocklist"`
	Server      ServerConfig             `yaml:"server"`
	Logging     LoggingConfig            `yaml:"logging"`
	Redis       redisclient.Config       `yaml:"redis"`
	Database    postgres.Config          `yaml:"database"`
	Telegram    notify.Config            `yaml:"telegram"`
}

// TargetConfig identifies the booking endpoint being probed.
type TargetConfig struct {
	Name                string `yaml:"name"`     // e.g. "hungary"
	Location            string `yaml:"location"` // e.g. "subotica"
	URL                 string `yaml:"url"`
	RequiresCredentials bool   `yaml:"requires_credentials"`
}

// ProbeConfig holds the external probe command.
type ProbeConfig struct {
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// RotationConfig bounds identity rotation within one invocation.
type RotationConfig struct {
	MaxIdentityRotations  int           `yaml:"max_identity_rotations"`
	SettleDelay           time.Duration `yaml:"settle_delay"`
	ReachabilityAttempts  int           `yaml:"reachability_attempts"`
	ReachabilityDelay     time.Duration `yaml:"reachability_delay"`
	ReachabilityTimeout   time.Duration `yaml:"reachability_timeout"`
	ActivateCommandTimout time.Duration `yaml:"activate_command_timeout"`
}

// CooldownConfig controls the captcha cooldown window.
type CooldownConfig struct {
	Skips int `yaml:"skips"`
}

// LookupConfig lists IP-reflection services, tried in order.
type LookupConfig struct {
	Services []string      `yaml:"services"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BlocklistConfig controls blocklist entry aging. Zero means entries never
// stop excluding.
type BlocklistConfig struct {
	RecheckAfter time.Duration `yaml:"recheck_after"`
}

// ServerConfig holds the health/metrics listener settings. Port 0 disables it.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
