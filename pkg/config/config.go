// Package config holds the host-supplied, opaque configuration record the
// runtime is constructed from. CLI flag parsing and file watching are out of
// scope (spec.md §1); this package only decodes a config the host already has.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmspell/llmspell/pkg/observability"
)

// SandboxConfig configures the filesystem/process sandbox (C2).
type SandboxConfig struct {
	AllowedRoots    []string `yaml:"allowed_roots"`
	DenyPatterns    []string `yaml:"deny_patterns,omitempty"`
	AllowedCommands []string `yaml:"allowed_commands,omitempty"`
	DeniedCommands  []string `yaml:"denied_commands,omitempty"`
	AllowedEnvVars  []string `yaml:"allowed_env_vars,omitempty"`
}

// ResourceDefaults configures default per-tool resource ceilings (C1).
type ResourceDefaults struct {
	MaxMemoryBytes   int64 `yaml:"max_memory_bytes,omitempty"`
	MaxCPUTimeMs     int64 `yaml:"max_cpu_time_ms,omitempty"`
	MaxOperations    int64 `yaml:"max_operations,omitempty"`
	OperationTimeout int64 `yaml:"operation_timeout_ms,omitempty"`
	MaxOutputBytes   int64 `yaml:"max_output_bytes,omitempty"`
}

// HookPipelineConfig configures C4's dispatch behavior.
type HookPipelineConfig struct {
	MaxEventsPerSecond float64 `yaml:"max_events_per_second,omitempty"`
	ReplayEnabled      bool    `yaml:"replay_enabled,omitempty"`
	SensitiveKeys      []string `yaml:"sensitive_keys,omitempty"`
}

// AccessControlConfig configures C9.
type AccessControlConfig struct {
	DecisionCacheTTL time.Duration `yaml:"decision_cache_ttl,omitempty"`
	AdminRoles       []string      `yaml:"admin_roles,omitempty"`
	RedisAddr        string        `yaml:"redis_addr,omitempty"` // optional distributed cache backend
}

// GraphConfig configures C10's storage backend.
type GraphConfig struct {
	Database       DatabaseConfig `yaml:"database"`
	MaxTraverseDepth int          `yaml:"max_traverse_depth,omitempty"`
	MigrationsPath string         `yaml:"migrations_path,omitempty"`
}

// ErrorHandlingConfig is the process-wide Safe Error Handler switch (spec.md §7).
// It is set once at startup and must never vary based on untrusted input.
type ErrorHandlingConfig struct {
	DebugMode bool `yaml:"debug_mode,omitempty"`
}

// LLMSpellConfig is the single opaque record the host constructs and hands to
// ScriptRuntime.NewWithEngine. It is decoded from YAML bytes the host already
// owns; this package performs no file-system discovery of its own.
type LLMSpellConfig struct {
	Sandbox        SandboxConfig        `yaml:"sandbox"`
	Resources      ResourceDefaults     `yaml:"resources"`
	Hooks          HookPipelineConfig   `yaml:"hooks"`
	AccessControl  AccessControlConfig  `yaml:"access_control"`
	Graph          GraphConfig          `yaml:"graph"`
	ErrorHandling  ErrorHandlingConfig  `yaml:"error_handling"`
	Observability  observability.Config `yaml:"observability"`
	SafeEnvVars    []string             `yaml:"safe_env_vars,omitempty"`
	WorkingDir     string               `yaml:"working_dir,omitempty"`
}

// Load decodes an LLMSpellConfig from YAML bytes.
func Load(data []byte) (*LLMSpellConfig, error) {
	var cfg LLMSpellConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode failed: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *LLMSpellConfig) setDefaults() {
	if c.Hooks.MaxEventsPerSecond == 0 {
		c.Hooks.MaxEventsPerSecond = 1000
	}
	if c.AccessControl.DecisionCacheTTL == 0 {
		c.AccessControl.DecisionCacheTTL = 60 * time.Second
	}
	if len(c.AccessControl.AdminRoles) == 0 {
		c.AccessControl.AdminRoles = []string{"admin", "super_admin"}
	}
	if c.Graph.MaxTraverseDepth == 0 || c.Graph.MaxTraverseDepth > 10 {
		c.Graph.MaxTraverseDepth = 10
	}
}
