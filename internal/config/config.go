package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project directory holding gridscope state.
const DirName = ".gridscope"

// Config represents the gridscope configuration
type Config struct {
	// Backend
	APIURL    string `json:"api_url" yaml:"api_url"`
	APIPrefix string `json:"api_prefix" yaml:"api_prefix"`
	APIToken  string `json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// UI preferences
	Theme string `json:"theme" yaml:"theme"`
	Debug bool   `json:"debug" yaml:"debug"`

	// Observability
	LogFile     string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// Debounce windows
	FilterDebounceMS int `json:"filter_debounce_ms" yaml:"filter_debounce_ms"`
	TargetDebounceMS int `json:"target_debounce_ms" yaml:"target_debounce_ms"`

	// Task polling
	PollInitialMS   int     `json:"poll_initial_ms" yaml:"poll_initial_ms"`
	PollFactor      float64 `json:"poll_factor" yaml:"poll_factor"`
	PollMaxMS       int     `json:"poll_max_ms" yaml:"poll_max_ms"`
	PollMaxAttempts int     `json:"poll_max_attempts" yaml:"poll_max_attempts"`

	// Surface readiness
	AttachAttempts   int `json:"attach_attempts" yaml:"attach_attempts"`
	AttachIntervalMS int `json:"attach_interval_ms" yaml:"attach_interval_ms"`

	// Facet fan-out
	FanOutConcurrency int `json:"fanout_concurrency" yaml:"fanout_concurrency"`

	// Optional absolute deadline per generation, 0 disables it
	GenerationDeadlineMS int `json:"generation_deadline_ms,omitempty" yaml:"generation_deadline_ms,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		APIURL:            "http://localhost:8000",
		APIPrefix:         "/api/v1",
		Theme:             "grid",
		FilterDebounceMS:  500,
		TargetDebounceMS:  200,
		PollInitialMS:     500,
		PollFactor:        1.5,
		PollMaxMS:         5000,
		PollMaxAttempts:   60,
		AttachAttempts:    20,
		AttachIntervalMS:  50,
		FanOutConcurrency: 4,
	}
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url must be set")
	}
	if c.FilterDebounceMS <= 0 || c.TargetDebounceMS <= 0 {
		return fmt.Errorf("debounce windows must be positive")
	}
	if c.PollInitialMS <= 0 {
		return fmt.Errorf("poll_initial_ms must be positive")
	}
	if c.PollFactor <= 1 {
		return fmt.Errorf("poll_factor must be greater than 1, got %v", c.PollFactor)
	}
	if c.PollMaxMS < c.PollInitialMS {
		return fmt.Errorf("poll_max_ms (%d) must not be below poll_initial_ms (%d)", c.PollMaxMS, c.PollInitialMS)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll_max_attempts must be positive")
	}
	if c.AttachAttempts <= 0 || c.AttachIntervalMS <= 0 {
		return fmt.Errorf("attach_attempts and attach_interval_ms must be positive")
	}
	if c.FanOutConcurrency <= 0 {
		return fmt.Errorf("fanout_concurrency must be positive")
	}
	if c.GenerationDeadlineMS < 0 {
		return fmt.Errorf("generation_deadline_ms must not be negative")
	}
	return nil
}

// FilterDebounce is the quiescence window for filter edits.
func (c *Config) FilterDebounce() time.Duration { return ms(c.FilterDebounceMS) }

// TargetDebounce is the quiescence window for dataset selection changes.
func (c *Config) TargetDebounce() time.Duration { return ms(c.TargetDebounceMS) }

// PollInitial is the first poll delay.
func (c *Config) PollInitial() time.Duration { return ms(c.PollInitialMS) }

// PollMax caps the poll delay.
func (c *Config) PollMax() time.Duration { return ms(c.PollMaxMS) }

// AttachInterval is the pause between surface readiness checks.
func (c *Config) AttachInterval() time.Duration { return ms(c.AttachIntervalMS) }

// GenerationDeadline is zero when no absolute deadline is configured.
func (c *Config) GenerationDeadline() time.Duration { return ms(c.GenerationDeadlineMS) }

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Manager handles configuration loading and saving
type Manager struct {
	projectPath string
	configPath  string
	format      string // "json" or "yaml"
	config      *Config
}

// NewManager creates a new configuration manager
func NewManager(projectPath string) *Manager {
	dir := filepath.Join(projectPath, DirName)
	return &Manager{
		projectPath: projectPath,
		configPath:  filepath.Join(dir, "config.json"),
		format:      "json",
		config:      DefaultConfig(),
	}
}

// Dir returns the .gridscope directory for the project.
func (m *Manager) Dir() string {
	return filepath.Dir(m.configPath)
}

// Path returns the config file currently in use.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk, creating defaults if needed
func (m *Manager) Load() error {
	dir := m.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}

	if err := m.ensureGitignore(); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	// Prefer JSON, fall back to YAML when only that exists
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		yamlPath := filepath.Join(dir, "config.yaml")
		if _, yerr := os.Stat(yamlPath); yerr == nil {
			m.configPath = yamlPath
			m.format = "yaml"
		} else {
			return m.Save()
		}
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so missing keys keep sensible values
	config := DefaultConfig()
	if m.format == "yaml" {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	m.expandEnvVars(config)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.config = config
	return nil
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	var (
		data []byte
		err  error
	)
	if m.format == "yaml" {
		data, err = yaml.Marshal(m.config)
	} else {
		data, err = json.MarshalIndent(m.config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// Replace swaps the whole configuration, validates it and saves.
func (m *Manager) Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return m.Save()
}

// Set updates a configuration value and saves
func (m *Manager) Set(key, value string) error {
	next := *m.config

	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: expected an integer, got %q", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "api_url":
		next.APIURL = value
	case "api_prefix":
		next.APIPrefix = value
	case "api_token":
		next.APIToken = value
	case "theme":
		next.Theme = value
	case "debug":
		next.Debug = value == "true"
	case "log_file":
		next.LogFile = value
	case "metrics_addr":
		next.MetricsAddr = value
	case "filter_debounce_ms":
		next.FilterDebounceMS, err = atoi()
	case "target_debounce_ms":
		next.TargetDebounceMS, err = atoi()
	case "poll_initial_ms":
		next.PollInitialMS, err = atoi()
	case "poll_max_ms":
		next.PollMaxMS, err = atoi()
	case "poll_max_attempts":
		next.PollMaxAttempts, err = atoi()
	case "attach_attempts":
		next.AttachAttempts, err = atoi()
	case "attach_interval_ms":
		next.AttachIntervalMS, err = atoi()
	case "fanout_concurrency":
		next.FanOutConcurrency, err = atoi()
	case "generation_deadline_ms":
		next.GenerationDeadlineMS, err = atoi()
	case "poll_factor":
		next.PollFactor, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("%s: expected a number, got %q", key, value)
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return err
	}

	return m.Replace(&next)
}

// ensureGitignore creates a .gitignore in .gridscope/ with smart defaults
func (m *Manager) ensureGitignore() error {
	gitignorePath := filepath.Join(m.Dir(), ".gitignore")

	if _, err := os.Stat(gitignorePath); !os.IsNotExist(err) {
		return nil
	}

	gitignoreContent := `# gridscope data directory .gitignore
#
# Config is committed, logs and plot exports are not

*.log
*.png
exports/

!config.json
!config.yaml
!.gitignore
`

	return os.WriteFile(gitignorePath, []byte(gitignoreContent), 0o644)
}

// expandEnvVars expands environment variables in string settings
func (m *Manager) expandEnvVars(config *Config) {
	config.APIURL = m.expandString(config.APIURL)
	config.APIPrefix = m.expandString(config.APIPrefix)
	config.APIToken = m.expandString(config.APIToken)
	config.Theme = m.expandString(config.Theme)
	config.LogFile = m.expandString(config.LogFile)
	config.MetricsAddr = m.expandString(config.MetricsAddr)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandString expands environment variables in a string
// Supports $VAR and ${VAR} syntax
func (m *Manager) expandString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		// Unknown variables stay as written
		return match
	})
}
