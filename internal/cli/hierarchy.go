package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/hierarchy"
	"github.com/spf13/cobra"
)

func newHierarchyCmd(g *globalFlags) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "hierarchy <class>",
		Short: "Print the base classes or subclasses of a class",
		Long: `Hierarchy prints the inheritance tree of a class: its base classes, or with
--down the classes deriving from it. Each line shows the base access, whether
the inheritance is virtual and whether the class is abstract. A class reached
along several paths is printed once per path.

Examples:
  relocate hierarchy geo::Circle
  relocate hierarchy Shape --down
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			return executeHierarchy(cmd.Context(), s, args[0], down, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "print subclasses instead of base classes")
	return cmd
}

func executeHierarchy(ctx context.Context, s *session, className string, down bool, out io.Writer) error {
	c, err := s.findClass(className)
	if err != nil {
		return err
	}
	b := hierarchy.NewBuilder(s.ws, s.index, s.oracle)
	var gr *hierarchy.Graph
	if down {
		gr, err = b.Descending(ctx, c)
	} else {
		gr, err = b.Ascending(ctx, c)
	}
	if err != nil {
		return err
	}
	printTree(out, gr.Root)
	return nil
}

func printTree(out io.Writer, n *hierarchy.Node) {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", n.Level))
	sb.WriteString(n.Class.QualifiedName())
	if n.Base != nil {
		sb.WriteString(" (")
		sb.WriteString(n.Base.Visibility.String())
		if n.Base.Virtual {
			sb.WriteString(", virtual")
		}
		sb.WriteString(")")
	}
	if n.Abstract {
		sb.WriteString(" abstract")
	}
	fmt.Fprintln(out, sb.String())
	for _, succ := range n.Successors {
		printTree(out, succ)
	}
}
