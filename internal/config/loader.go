package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader reading an explicit config file instead of
// searching rootDir/.relocate.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (RELOCATE_*)
// 2. Config file (.relocate/config.yml or .relocate/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".relocate"))
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("RELOCATE")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., RELOCATE_INDEX_BACKEND)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Refactoring configuration
	v.BindEnv("refactoring.insert_stubs")
	v.BindEnv("refactoring.pull_into_abstract")
	v.BindEnv("refactoring.default_visibility")

	// Index configuration
	v.BindEnv("index.backend")
	v.BindEnv("index.path")
	v.BindEnv("index.cache_size")

	v.BindEnv("paths.model")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("refactoring.insert_stubs", defaults.Refactoring.InsertStubs)
	v.SetDefault("refactoring.pull_into_abstract", defaults.Refactoring.PullIntoAbstract)
	v.SetDefault("refactoring.default_visibility", defaults.Refactoring.DefaultVisibility)

	v.SetDefault("index.backend", defaults.Index.Backend)
	v.SetDefault("index.path", defaults.Index.Path)
	v.SetDefault("index.cache_size", defaults.Index.CacheSize)

	v.SetDefault("paths.model", defaults.Paths.Model)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
