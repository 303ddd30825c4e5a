package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/storage"
	"github.com/mvp-joe/project-relocate/internal/watcher"
	"github.com/spf13/cobra"
)

type indexOptions struct {
	quiet bool
	watch bool
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index [model.yaml]",
		Short: "Store the references of a program model in a SQLite index",
		Long: `Index reads the program model and stores its units and symbol references in
a SQLite database. Set index.backend to sqlite to have pullup and pushdown
look references up there instead of in the loaded model.

Examples:
  # Index the configured model into .relocate/index.db
  relocate index

  # Index a specific model without progress output
  relocate index --quiet build/model.yaml

  # Reindex whenever the model changes
  relocate index --watch
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted! Cancelling indexing...")
					cancel()
				case <-ctx.Done():
				}
			}()

			modelPath := g.model
			if len(args) == 1 {
				modelPath = args[0]
			}
			return executeIndex(ctx, g, modelPath, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Disable progress bars and non-error output")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Watch the model for changes and reindex")
	return cmd
}

func executeIndex(ctx context.Context, g *globalFlags, modelPath string, opts *indexOptions, stdout, stderr io.Writer) error {
	if g.verbose {
		log.SetOutput(stderr)
	}
	rootDir, err := projectRoot(g)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(g, rootDir)
	if err != nil {
		return err
	}
	modelPath = modelPathFor(modelPath, cfg, rootDir)

	dbPath := cfg.IndexPath(rootDir)
	shown := dbPath
	if rel, err := filepath.Rel(rootDir, dbPath); err == nil {
		shown = filepath.ToSlash(rel)
	}
	if g.verbose {
		log.Printf("Writing index %s", dbPath)
	}
	w, err := storage.NewIndexWriter(dbPath)
	if err != nil {
		return err
	}
	defer w.Close()

	reindex := func() error {
		ws, err := model.LoadFile(modelPath)
		if err != nil {
			return err
		}
		progress := newIndexProgress(stderr, opts.quiet)
		progress.OnStart(len(ws.References()))
		if err := w.WriteWorkspace(ctx, ws, modelPath, progress.OnReference); err != nil {
			return err
		}
		progress.OnComplete(stdout, len(ws.Units()), shown)
		return nil
	}
	if err := reindex(); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	mw, err := watcher.NewModelWatcher([]string{modelPath})
	if err != nil {
		return err
	}
	defer mw.Stop()
	if !opts.quiet {
		fmt.Fprintf(stderr, "Watching %s for changes (Ctrl+C to stop)\n", modelPath)
	}
	err = mw.Start(ctx, func(files []string) {
		if err := reindex(); err != nil {
			log.Printf("Warning: reindex failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
