package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoistlab/hoist/pkg/telemetry"
)

// envHome overrides the default data directory.
const envHome = "HOIST_HOME"

// Duration decodes from either a duration string ("10s") or integer
// nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if err := node.Decode(&nanos); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(nanos)
	return nil
}

// Settings is the tool-level configuration: where state lives and how
// the process observes itself. Environment definitions are configured
// separately, per environment.
type Settings struct {
	// HomeDir is the root data directory. Everything below defaults to
	// a path underneath it.
	HomeDir string `yaml:"home_dir"`

	// StateDir holds persisted environment records and locks.
	StateDir string `yaml:"state_dir"`

	// HistoryPath is the command-history database file.
	HistoryPath string `yaml:"history_path"`

	// TemplatesDir holds the template sets rendered during deployment.
	TemplatesDir string `yaml:"templates_dir"`

	// WorkRoot holds per-environment working directories for rendered
	// files and tool runs.
	WorkRoot string `yaml:"work_root"`

	// LockTimeout bounds how long a command waits for an environment
	// lock held by another process.
	LockTimeout Duration `yaml:"lock_timeout"`

	// KnownHostsPath enables strict SSH host key checking when set.
	KnownHostsPath string `yaml:"known_hosts_path"`

	// PolicyDir holds additional .rego policy rules. Missing is fine.
	PolicyDir string `yaml:"policy_dir"`

	// ProtectedEnvironments lists names the policy engine shields from
	// destroy and purge.
	ProtectedEnvironments []string `yaml:"protected_environments"`

	// AllowedCloudProviders, when non-empty, restricts which cloud
	// providers may be provisioned.
	AllowedCloudProviders []string `yaml:"allowed_cloud_providers"`

	// Telemetry configures logging, tracing, metrics, and events.
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// DefaultSettings returns settings rooted at $HOIST_HOME, falling back
// to ~/.hoist.
func DefaultSettings() Settings {
	home := os.Getenv(envHome)
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".hoist")
		} else {
			home = ".hoist"
		}
	}
	s := Settings{
		HomeDir:     home,
		LockTimeout: Duration(10 * time.Second),
		Telemetry:   telemetry.DefaultConfig(),
	}
	s.applyHomeDefaults()
	return s
}

func (s *Settings) applyHomeDefaults() {
	if s.StateDir == "" {
		s.StateDir = filepath.Join(s.HomeDir, "state")
	}
	if s.HistoryPath == "" {
		s.HistoryPath = filepath.Join(s.HomeDir, "history.db")
	}
	if s.TemplatesDir == "" {
		s.TemplatesDir = filepath.Join(s.HomeDir, "templates")
	}
	if s.WorkRoot == "" {
		s.WorkRoot = filepath.Join(s.HomeDir, "work")
	}
	if s.PolicyDir == "" {
		s.PolicyDir = filepath.Join(s.HomeDir, "policies")
	}
}

// LoadSettings reads a settings file over the defaults. A missing file
// is not an error; the defaults apply unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.applyHomeDefaults()
	if s.LockTimeout <= 0 {
		s.LockTimeout = Duration(10 * time.Second)
	}
	if s.Telemetry == nil {
		s.Telemetry = telemetry.DefaultConfig()
	}
	if err := s.Telemetry.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// EnsureDirectories creates the directories settings point at.
func (s *Settings) EnsureDirectories() error {
	for _, dir := range []string{s.HomeDir, s.StateDir, s.TemplatesDir, s.WorkRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
