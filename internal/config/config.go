// Package config loads the supervisor's on-disk configuration document and
// resolves the process-wide home directory and timing-environment overrides
// every other package depends on.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"agentmux/internal/agentmodel"

	"gopkg.in/yaml.v3"
)

// Config is the top-level on-disk document (~/.agentmux/config.yaml):
// per-runtime launch templates, per-role timeout overrides and default
// skill sets, and the skill catalog itself.
type Config struct {
	Runtimes     map[string]RuntimeConfig `yaml:"runtimes"`
	Roles        map[string]RoleConfig    `yaml:"roles"`
	Skills       map[string]SkillConfig   `yaml:"skills"`
	Continuation ContinuationConfig       `yaml:"continuation"`
}

// ContinuationConfig configures the Continuation / Output Analyzer's
// idle-detection thresholds.
type ContinuationConfig struct {
	MaxIterations   int `yaml:"max_iterations"`
	IdleCycles      int `yaml:"idle_cycles"`
	IdlePollSeconds int `yaml:"idle_poll_seconds"`
}

// RuntimeConfig configures one runtime flavor ("claude-code", "gemini-cli",
// "codex-cli").
type RuntimeConfig struct {
	LaunchCommandTemplate string `yaml:"launch_command_template"`
}

// RoleConfig configures per-role registration budgets (the orchestrator
// gets a few minutes, regular roles around 90-120s) and the role's default
// skill set.
type RoleConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Skills         []string `yaml:"skills"`
}

// SkillConfig declares one named skill: the runtime flavor it applies to
// and the extra CLI flags it contributes to that runtime's launch command.
type SkillConfig struct {
	Runtime string   `yaml:"runtime"`
	Flags   []string `yaml:"flags"`
}

// AgentmuxHome returns the supervisor's home directory (~/.agentmux),
// overridable via AGENTMUX_HOME for tests and alternate-environment runs.
func AgentmuxHome() string {
	if dir := strings.TrimSpace(os.Getenv("AGENTMUX_HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".agentmux")
	}
	return filepath.Join(home, ".agentmux")
}

// Load reads the config document from ~/.agentmux/config.yaml. A missing
// file is not an error — it returns an empty Config.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(AgentmuxHome(), "config.yaml"))
}

// LoadFrom reads the config document from path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var runtimeNameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

func (c *Config) validate() error {
	for name := range c.Runtimes {
		if !runtimeNameRe.MatchString(name) {
			return fmt.Errorf("runtimes: invalid runtime name %q (must match [a-z0-9-]+)", name)
		}
	}
	for name, role := range c.Roles {
		if role.TimeoutSeconds < 0 {
			return fmt.Errorf("roles.%s: timeout_seconds must be non-negative", name)
		}
	}
	return nil
}

// RoleTimeout returns the configured registration timeout for role, falling
// back to fallback when unset. Shrunk by FastTimers for tests.
func (c *Config) RoleTimeout(role string, fallbackSeconds int) int {
	seconds := fallbackSeconds
	if c != nil {
		if rc, ok := c.Roles[role]; ok && rc.TimeoutSeconds > 0 {
			seconds = rc.TimeoutSeconds
		}
	}
	if FastTimers() {
		seconds = seconds / 10
		if seconds < 1 {
			seconds = 1
		}
	}
	return seconds
}

// LaunchCommandTemplate returns the configured launch command for a runtime
// name, or def if unset.
func (c *Config) LaunchCommandTemplate(runtimeName, def string) string {
	if c != nil {
		if rc, ok := c.Runtimes[runtimeName]; ok && rc.LaunchCommandTemplate != "" {
			return rc.LaunchCommandTemplate
		}
	}
	return def
}

// MaxContinuationIterations returns the configured per-(session,task)
// iteration cap, falling back to def when unset.
func (c *Config) MaxContinuationIterations(def int) int {
	if c != nil && c.Continuation.MaxIterations > 0 {
		return c.Continuation.MaxIterations
	}
	return def
}

// IdleCycles returns the configured activity-poller idle-cycle threshold,
// falling back to def when unset.
func (c *Config) IdleCycles(def int) int {
	if c != nil && c.Continuation.IdleCycles > 0 {
		return c.Continuation.IdleCycles
	}
	return def
}

// IdlePollInterval returns the configured activity-poller interval, falling
// back to def when unset.
func (c *Config) IdlePollInterval(def time.Duration) time.Duration {
	if c != nil && c.Continuation.IdlePollSeconds > 0 {
		return time.Duration(c.Continuation.IdlePollSeconds) * time.Second
	}
	return def
}

// SkillCatalog converts the configured skills into the catalog
// agentmodel.ResolveFlags consumes. Skills naming an unknown runtime are
// dropped rather than failing the load.
func (c *Config) SkillCatalog() map[string]agentmodel.Skill {
	if c == nil || len(c.Skills) == 0 {
		return nil
	}
	catalog := make(map[string]agentmodel.Skill, len(c.Skills))
	for name, sc := range c.Skills {
		rt, ok := agentmodel.ParseRuntimeType(sc.Runtime)
		if !ok {
			continue
		}
		catalog[name] = agentmodel.Skill{Name: name, Runtime: rt, Flags: sc.Flags}
	}
	return catalog
}

// RoleSkills returns role's configured default skill set, or nil.
func (c *Config) RoleSkills(role string) []string {
	if c == nil {
		return nil
	}
	if rc, ok := c.Roles[role]; ok {
		return rc.Skills
	}
	return nil
}

// FastTimers reports whether AGENTMUX_FAST_TIMERS is set, shrinking the
// escalation/readiness windows for tests.
func FastTimers() bool {
	v, ok := os.LookupEnv("AGENTMUX_FAST_TIMERS")
	return ok && v != "" && v != "0"
}
