package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/config"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/storage"
)

// session is the loaded program a command works on.
type session struct {
	rootDir string
	cfg     *config.Config
	ws      *model.Workspace
	index   *model.CachedIndex
	oracle  model.Oracle

	closers []io.Closer
}

// openSession loads the configuration, the program model and the configured
// reference index.
func openSession(g *globalFlags, stderr io.Writer) (*session, error) {
	if g.verbose {
		log.SetOutput(stderr)
	}

	rootDir, err := projectRoot(g)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(g, rootDir)
	if err != nil {
		return nil, err
	}

	modelPath := modelPathFor(g.model, cfg, rootDir)
	if g.verbose {
		log.Printf("Loading model %s", modelPath)
	}
	ws, err := model.LoadFile(modelPath)
	if err != nil {
		return nil, err
	}

	s := &session{rootDir: rootDir, cfg: cfg, ws: ws, oracle: model.USROracle{}}

	var index model.Index = ws
	if strings.EqualFold(cfg.Index.Backend, "sqlite") {
		path := cfg.IndexPath(rootDir)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("index %s not found; run 'relocate index' first: %w", path, err)
		}
		reader, err := storage.NewIndexReader(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, reader)
		index = reader
		if g.verbose {
			log.Printf("Using sqlite index %s", path)
		}
	}
	s.index, err = model.NewCachedIndex(index, cfg.Index.CacheSize)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func projectRoot(g *globalFlags) (string, error) {
	if g.rootDir != "" {
		return g.rootDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

// modelPathFor resolves an explicit model path against the project root, or
// falls back to the configured one.
func modelPathFor(explicit string, cfg *config.Config, rootDir string) string {
	if explicit == "" {
		return cfg.ModelPath(rootDir)
	}
	if filepath.IsAbs(explicit) {
		return explicit
	}
	return filepath.Join(rootDir, explicit)
}

func loadConfig(g *globalFlags, rootDir string) (*config.Config, error) {
	loader := config.NewLoader(rootDir)
	if g.cfgFile != "" {
		loader = config.NewFileLoader(rootDir, g.cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// findClass resolves a class by qualified or simple name.
func (s *session) findClass(name string) (*model.Class, error) {
	var matches []*model.Class
	for _, c := range s.ws.Classes() {
		if c.QualifiedName() == name {
			return c, nil
		}
		if c.Name == name {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("class %s: %w", name, model.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		var names []string
		for _, c := range matches {
			names = append(names, c.QualifiedName())
		}
		return nil, fmt.Errorf("class %s is ambiguous: %s", name, strings.Join(names, ", "))
	}
}
