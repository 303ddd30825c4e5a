package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// errRefactoringFailed is returned when a refactoring reported errors. The
// diagnostics themselves have already been printed.
var errRefactoringFailed = errors.New("refactoring not applied")

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	cfgFile string
	rootDir string
	model   string
	verbose bool
}

// NewRootCmd builds the relocate command tree. Every call returns fresh
// commands with fresh flag state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "relocate",
		Short: "Relocate - move C++ class members along the inheritance hierarchy",
		Long: `Relocate pulls members of a C++ class up into one of its base classes or
pushes them down into its subclasses. It checks that the program still holds
together afterwards and prints the edits it would make per file.

The program model is read from .relocate/model.yaml unless --model is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default is .relocate/config.yml)")
	rootCmd.PersistentFlags().StringVar(&g.rootDir, "root", "", "project root (default is the working directory)")
	rootCmd.PersistentFlags().StringVar(&g.model, "model", "", "program model (default is paths.model from the config)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newHierarchyCmd(g),
		newPullUpCmd(g),
		newPushDownCmd(g),
		newIndexCmd(g),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with the process arguments.
// This is called by main.main().
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errRefactoringFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}
