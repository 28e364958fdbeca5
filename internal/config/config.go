package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	GitHub   GitHub   `yaml:"github"`
	Agent    Agent    `yaml:"agent"`
	Analysis Analysis `yaml:"analysis"`
	Tests    Tests    `yaml:"tests"`
	Research Research `yaml:"research"`
	Output   Output   `yaml:"output"`
	Logging  Logging  `yaml:"logging"`
}

type GitHub struct {
	TokenEnv       string `yaml:"token_env"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Cache          bool   `yaml:"cache"`
}

// Agent configures the claude CLI used for story and test generation.
type Agent struct {
	Bin            string   `yaml:"bin"`
	TimeoutMinutes int      `yaml:"timeout_minutes"`
	SystemPrompt   string   `yaml:"system_prompt"`
	MaxTurns       int      `yaml:"max_turns"`
	AllowedTools   []string `yaml:"allowed_tools"`
	PermissionMode string   `yaml:"permission_mode"`
}

type Analysis struct {
	MaxStories          int    `yaml:"max_stories"`
	FocusArea           string `yaml:"focus_area"`
	IncludeArchitecture bool   `yaml:"include_architecture"`
	IncludeAPIAnalysis  bool   `yaml:"include_api_analysis"`
}

type Tests struct {
	IncludeUnit        bool `yaml:"include_unit"`
	IncludeIntegration bool `yaml:"include_integration"`
	IncludeE2E         bool `yaml:"include_e2e"`
	IncludeAPI         bool `yaml:"include_api"`
	MaxPerStory        int  `yaml:"max_per_story"`
}

type Research struct {
	Enabled        bool `yaml:"enabled"`
	MaxResults     int  `yaml:"max_results"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

type Output struct {
	Format  string `yaml:"format"`
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

const defaultSystemPrompt = "You are an expert product analyst and software engineer. " +
	"Your task is to analyze GitHub repositories and generate comprehensive, actionable " +
	"user stories that would be valuable for development teams."

// ConfigDir returns the XDG config directory for storygen.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "storygen")
}

// DataDir returns the XDG data directory for storygen.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "storygen")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/storygen/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'storygen init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		// The embedded default must always parse.
		panic(fmt.Sprintf("invalid embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		GitHub: GitHub{
			TokenEnv:       "GITHUB_TOKEN",
			BaseURL:        "https://api.github.com",
			TimeoutSeconds: 30,
			Cache:          true,
		},
		Agent: Agent{
			Bin:            "claude",
			TimeoutMinutes: 10,
			SystemPrompt:   defaultSystemPrompt,
			MaxTurns:       3,
			AllowedTools:   []string{"Read", "Write", "Bash"},
			PermissionMode: "acceptEdits",
		},
		Analysis: Analysis{
			MaxStories:          5,
			IncludeArchitecture: true,
			IncludeAPIAnalysis:  true,
		},
		Tests: Tests{
			IncludeUnit:        true,
			IncludeIntegration: true,
			IncludeE2E:         true,
			IncludeAPI:         true,
			MaxPerStory:        8,
		},
		Research: Research{
			Enabled:        true,
			MaxResults:     5,
			TimeoutSeconds: 10,
		},
		Output:  Output{Format: "text"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GitHubTimeout returns the GitHub client timeout as a duration.
func (c *Config) GitHubTimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// AgentTimeout returns the claude CLI timeout as a duration.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutMinutes) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
