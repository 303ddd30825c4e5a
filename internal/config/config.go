package config

import (
	"path/filepath"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// Config represents the complete relocate configuration.
// It can be loaded from .relocate/config.yml with environment variable overrides.
type Config struct {
	Refactoring RefactoringConfig `yaml:"refactoring" mapstructure:"refactoring"`
	Index       IndexConfig       `yaml:"index" mapstructure:"index"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
}

// RefactoringConfig holds the defaults of pull up and push down sessions.
type RefactoringConfig struct {
	InsertStubs       bool   `yaml:"insert_stubs" mapstructure:"insert_stubs"`             // add empty overrides below the target
	PullIntoAbstract  bool   `yaml:"pull_into_abstract" mapstructure:"pull_into_abstract"` // keep bodies when the target is abstract
	DefaultVisibility string `yaml:"default_visibility" mapstructure:"default_visibility"` // "keep", "public", "protected" or "private"
}

// IndexConfig selects where references are looked up.
type IndexConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`       // "memory" or "sqlite"
	Path      string `yaml:"path" mapstructure:"path"`             // sqlite database, relative to the project root
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size"` // LRU entries per query kind
}

// PathsConfig locates the program model.
type PathsConfig struct {
	Model string `yaml:"model" mapstructure:"model"` // YAML program model, relative to the project root
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Refactoring: RefactoringConfig{
			InsertStubs:       false,
			PullIntoAbstract:  false,
			DefaultVisibility: KeepVisibility,
		},
		Index: IndexConfig{
			Backend:   "memory",
			Path:      filepath.Join(".relocate", "index.db"),
			CacheSize: 256,
		},
		Paths: PathsConfig{
			Model: filepath.Join(".relocate", "model.yaml"),
		},
	}
}

// KeepVisibility leaves relocated members at their current visibility.
const KeepVisibility = "keep"

// Visibility returns the visibility relocated members get when none is
// given explicitly. ok is false when they keep their own.
func (c *Config) Visibility() (v model.Visibility, ok bool) {
	if strings.EqualFold(c.Refactoring.DefaultVisibility, KeepVisibility) {
		return model.Private, false
	}
	v, err := model.ParseVisibility(c.Refactoring.DefaultVisibility)
	if err != nil {
		return model.Private, false
	}
	return v, true
}

// IndexPath returns the sqlite index path resolved against rootDir.
func (c *Config) IndexPath(rootDir string) string {
	return resolve(rootDir, c.Index.Path)
}

// ModelPath returns the program model path resolved against rootDir.
func (c *Config) ModelPath(rootDir string) string {
	return resolve(rootDir, c.Paths.Model)
}

func resolve(rootDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}
