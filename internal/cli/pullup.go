package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/pullup"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
	"github.com/spf13/cobra"
)

type pullUpOptions struct {
	target         string
	members        []string
	declareVirtual []string
	remove         []string
	stubs          bool
	abstract       bool
	json           bool
}

func newPullUpCmd(g *globalFlags) *cobra.Command {
	opts := &pullUpOptions{}
	cmd := &cobra.Command{
		Use:   "pullup <class>",
		Short: "Move members of a class into one of its base classes",
		Long: `Pullup moves the selected members of a class into one of its base classes.

Members are selected by glob over their names, optionally followed by the
visibility they should get in the target. Members given with --declare-virtual
stay in the class and are declared pure virtual in the target. Methods of the
target's other subclasses can be removed with --remove.

Examples:
  relocate pullup Circle --target Shape --member area
  relocate pullup Circle --target Shape --member 'get*:protected' --stubs
  relocate pullup Circle --target Shape --declare-virtual draw --remove Square::draw
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			if !cmd.Flags().Changed("stubs") {
				opts.stubs = s.cfg.Refactoring.InsertStubs
			}
			if !cmd.Flags().Changed("abstract") {
				opts.abstract = s.cfg.Refactoring.PullIntoAbstract
			}
			return executePullUp(cmd.Context(), s, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "", "base class to pull members into")
	cmd.Flags().StringArrayVar(&opts.members, "member", nil, "member to pull up, as pattern[:visibility] (repeatable)")
	cmd.Flags().StringArrayVar(&opts.declareVirtual, "declare-virtual", nil, "member to declare pure virtual in the target (repeatable)")
	cmd.Flags().StringArrayVar(&opts.remove, "remove", nil, "method of another subclass to remove, as Class::pattern (repeatable)")
	cmd.Flags().BoolVar(&opts.stubs, "stubs", false, "add empty overrides to concrete subclasses of the target")
	cmd.Flags().BoolVar(&opts.abstract, "abstract", false, "pull bodies into abstract targets")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	return cmd
}

func executePullUp(ctx context.Context, s *session, className string, opts *pullUpOptions, out io.Writer) error {
	c, err := s.findClass(className)
	if err != nil {
		return err
	}

	r := pullup.New(s.ws, s.index, s.oracle,
		pullup.WithInsertStubs(opts.stubs),
		pullup.WithPullIntoAbstract(opts.abstract),
	)
	st := status.New()
	edits := rewrite.NewCollector("pull up")
	rep := newReport("pull up", c, st, edits)

	if err := r.Prepare(ctx, c.ID, st); err != nil {
		return err
	}
	if st.HasFatal() {
		return finish(rep, out, opts.json)
	}

	if opts.target != "" {
		target, err := s.findClass(opts.target)
		if err != nil {
			return err
		}
		rep.Target = target.QualifiedName()
		if err := r.SetTarget(ctx, target); err != nil {
			return err
		}
	}

	def, hasDef := s.cfg.Visibility()
	for _, sel := range []struct {
		args []string
		kind plan.ActionKind
	}{
		{opts.members, plan.PullUp},
		{opts.declareVirtual, plan.DeclareVirtual},
	} {
		ms, patterns, err := selectMembers(r.Class(), sel.args)
		if err != nil {
			return err
		}
		for _, m := range ms {
			if err := r.Select(m, sel.kind, patterns[m].visibilityFor(m, def, hasDef)); err != nil {
				return err
			}
		}
	}

	for _, arg := range opts.remove {
		if err := toggleRemovals(r, arg); err != nil {
			return err
		}
	}

	p, err := r.Check(ctx, st)
	if err != nil {
		return err
	}
	rep.setPlan(p)
	if !st.HasError() {
		err := p.Run(ctx, edits)
		switch {
		case err == nil:
			rep.Applied = true
		case !errors.Is(err, plan.ErrNotPossible):
			return err
		}
	}
	return finish(rep, out, opts.json)
}

// toggleRemovals marks the removal candidates matched by "Class::pattern".
func toggleRemovals(r *pullup.Refactoring, arg string) error {
	className, pattern, err := parseQualifiedMember(arg)
	if err != nil {
		return err
	}
	p, err := parseMemberPattern(pattern)
	if err != nil {
		return err
	}
	matched := false
	for _, rm := range r.Removals() {
		if rm.Owner.Name != className && rm.Owner.QualifiedName() != className {
			continue
		}
		if !p.match(rm.Member) || rm.Remove {
			continue
		}
		if err := r.ToggleRemove(rm.Member); err != nil {
			return err
		}
		matched = true
	}
	if !matched {
		return fmt.Errorf("no method of another subclass matches %q: %w", arg, model.ErrNotFound)
	}
	return nil
}

func finish(rep *report, out io.Writer, asJSON bool) error {
	if err := rep.write(out, asJSON); err != nil {
		return err
	}
	return rep.result()
}
