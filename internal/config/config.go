package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Core    CoreConfig    `yaml:"core" json:"core"`
	Privacy PrivacyConfig `yaml:"privacy" json:"privacy"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowedOrigins,omitempty"`
}

// CoreConfig holds the tunables the aggregation core consults on every
// processed event and pruner sweep. Updates take effect on the next event
// or sweep; no restart is needed.
type CoreConfig struct {
	// PruneInterval is the period of the lifecycle sweep.
	PruneInterval time.Duration `yaml:"prune_interval" json:"pruneInterval"`
	// StaleTimeout ends active sessions idle this long.
	StaleTimeout time.Duration `yaml:"stale_timeout" json:"staleTimeout"`
	// GhostTimeout removes active sessions that recorded zero tool calls
	// and have been idle this long. Suppresses false-start sessions from
	// rapid producer reconnects.
	GhostTimeout time.Duration `yaml:"ghost_timeout" json:"ghostTimeout"`
	// Retention keeps ended sessions visible this long before deletion.
	Retention time.Duration `yaml:"retention" json:"retention"`

	MaxTimeline          int `yaml:"max_timeline" json:"maxTimeline"`
	MaxFiles             int `yaml:"max_files" json:"maxFiles"`
	MaxToolCallsPerAgent int `yaml:"max_tool_calls_per_agent" json:"maxToolCallsPerAgent"`
}

type PrivacyConfig struct {
	MaskSessionIDs bool     `yaml:"mask_session_ids" json:"maskSessionIds"`
	MaskFilePaths  bool     `yaml:"mask_file_paths" json:"maskFilePaths"`
	BlockedPaths   []string `yaml:"blocked_paths" json:"blockedPaths,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4680,
		},
		Core: CoreConfig{
			PruneInterval:        5 * time.Second,
			StaleTimeout:         5 * time.Minute,
			GhostTimeout:         30 * time.Second,
			Retention:            time.Minute,
			MaxTimeline:          200,
			MaxFiles:             100,
			MaxToolCallsPerAgent: 20,
		},
	}
}

// Load reads a YAML config file, applying defaults for absent fields. A
// missing file is not an error: the defaults are returned so the service
// runs without any configuration at all.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps nonsensical values back to defaults so a partial or
// hand-edited file cannot disable the pruner or the snapshot caps.
func (c *Config) Normalize() {
	def := Default()
	if c.Core.PruneInterval <= 0 {
		c.Core.PruneInterval = def.Core.PruneInterval
	}
	if c.Core.StaleTimeout <= 0 {
		c.Core.StaleTimeout = def.Core.StaleTimeout
	}
	if c.Core.GhostTimeout <= 0 {
		c.Core.GhostTimeout = def.Core.GhostTimeout
	}
	if c.Core.Retention <= 0 {
		c.Core.Retention = def.Core.Retention
	}
	if c.Core.MaxTimeline <= 0 {
		c.Core.MaxTimeline = def.Core.MaxTimeline
	}
	if c.Core.MaxFiles <= 0 {
		c.Core.MaxFiles = def.Core.MaxFiles
	}
	if c.Core.MaxToolCallsPerAgent <= 0 {
		c.Core.MaxToolCallsPerAgent = def.Core.MaxToolCallsPerAgent
	}
}
