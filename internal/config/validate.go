package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

var (
	// ErrInvalidBackend indicates an unsupported index backend
	ErrInvalidBackend = errors.New("invalid index backend")

	// ErrInvalidCacheSize indicates a non-positive cache size
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrEmptyIndexPath indicates a sqlite backend without a database path
	ErrEmptyIndexPath = errors.New("empty index path")

	// ErrInvalidVisibility indicates an unknown default visibility
	ErrInvalidVisibility = errors.New("invalid visibility")

	// ErrEmptyModelPath indicates a missing program model path
	ErrEmptyModelPath = errors.New("empty model path")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateRefactoring(&cfg.Refactoring); err != nil {
		errs = append(errs, err)
	}

	if err := validateIndex(&cfg.Index); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(cfg.Paths.Model) == "" {
		errs = append(errs, fmt.Errorf("%w: paths.model is required", ErrEmptyModelPath))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateRefactoring(cfg *RefactoringConfig) error {
	if strings.EqualFold(cfg.DefaultVisibility, KeepVisibility) {
		return nil
	}
	if _, err := model.ParseVisibility(cfg.DefaultVisibility); err != nil {
		return fmt.Errorf("%w: must be 'keep', 'public', 'protected' or 'private', got '%s'", ErrInvalidVisibility, cfg.DefaultVisibility)
	}
	return nil
}

func validateIndex(cfg *IndexConfig) error {
	var errs []error

	backend := strings.ToLower(cfg.Backend)
	if backend != "memory" && backend != "sqlite" {
		errs = append(errs, fmt.Errorf("%w: must be 'memory' or 'sqlite', got '%s'", ErrInvalidBackend, cfg.Backend))
	}

	if backend == "sqlite" && strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: index.path is required for the sqlite backend", ErrEmptyIndexPath))
	}

	if cfg.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size must be positive, got %d", ErrInvalidCacheSize, cfg.CacheSize))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The combined error still matches each sentinel through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return &validationError{msg: fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - ")), errs: errs}
}

type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }
