package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/labsite/config.yml.
type GlobalConfig struct {
	SitePath string `yaml:"site_path,omitempty"`
	Reviewer string `yaml:"reviewer,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "labsite"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// EnvRoot overrides the directory the tree search starts from.
	EnvRoot = "LABSITE_ROOT"
	// EnvLogLevel overrides the log level.
	EnvLogLevel = "LABSITE_LOG_LEVEL"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/labsite/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.SitePath != "" {
		cfg.SitePath = ExpandPath(cfg.SitePath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// LoadEnv loads a .env file from the working directory if there is one.
func LoadEnv() {
	_ = godotenv.Load()
}

// StartDir returns the directory to start searching for a site tree.
// LABSITE_ROOT wins over site_path, which wins over the working directory.
func StartDir() (string, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		return ExpandPath(root), nil
	}
	if cfg, err := LoadGlobalConfig(); err == nil && cfg.SitePath != "" {
		return cfg.SitePath, nil
	}
	return os.Getwd()
}

// LogLevel returns the configured log level, or "" when unset.
func LogLevel() string {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		return lvl
	}
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.LogLevel
}

// Reviewer returns the reviewer name from global config.
func Reviewer() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.Reviewer
}

// HelpfulConfigMessage returns a helpful message when no tree is found.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No site tree found.

Run labsite inside your fork of the website repository, pass --root,
or create %s with a default:
  mkdir -p %s
  echo 'site_path: /path/to/your/fork' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
