package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/pushdown"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
	"github.com/spf13/cobra"
)

type pushDownOptions struct {
	members []string
	virtual []string
	to      []string
	json    bool
}

func newPushDownCmd(g *globalFlags) *cobra.Command {
	opts := &pushDownOptions{}
	cmd := &cobra.Command{
		Use:   "pushdown <class>",
		Short: "Move members of a class into its subclasses",
		Long: `Pushdown removes the selected members from a class and copies them into
the subclasses that need them.

By default a member is copied into every subclass that uses it, or into the
direct subclasses when none does. Use --to to choose the action for a subclass
explicitly: existing (copy the definition), stub (insert an empty override) or
none. Members given with --virtual stay declared in the class as pure virtual.

Examples:
  relocate pushdown Shape --member radius
  relocate pushdown Shape --member 'draw*' --to Square=stub
  relocate pushdown Shape --virtual area --to Circle=existing --to Square=existing
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			return executePushDown(cmd.Context(), s, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&opts.members, "member", nil, "member to push down (repeatable)")
	cmd.Flags().StringArrayVar(&opts.virtual, "virtual", nil, "member to push down, keeping a pure virtual declaration (repeatable)")
	cmd.Flags().StringArrayVar(&opts.to, "to", nil, "action for a subclass, as Class=existing|stub|none (repeatable)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	return cmd
}

type targetOverride struct {
	class string
	kind  plan.ActionKind
}

func parseTargetOverride(arg string) (targetOverride, error) {
	class, action, ok := strings.Cut(arg, "=")
	if !ok || class == "" {
		return targetOverride{}, fmt.Errorf("invalid target %q: want Class=action", arg)
	}
	kind, err := plan.ParseActionKind(action)
	if err != nil {
		return targetOverride{}, fmt.Errorf("invalid target %q: %w", arg, err)
	}
	switch kind {
	case plan.None, plan.ExistingDefinition, plan.MethodStub:
	default:
		return targetOverride{}, fmt.Errorf("invalid target %q: action %s is not available for a subclass", arg, kind)
	}
	return targetOverride{class: class, kind: kind}, nil
}

func executePushDown(ctx context.Context, s *session, className string, opts *pushDownOptions, out io.Writer) error {
	c, err := s.findClass(className)
	if err != nil {
		return err
	}
	overrides := make([]targetOverride, 0, len(opts.to))
	for _, arg := range opts.to {
		o, err := parseTargetOverride(arg)
		if err != nil {
			return err
		}
		overrides = append(overrides, o)
	}

	r := pushdown.New(s.ws, s.index, s.oracle)
	st := status.New()
	edits := rewrite.NewCollector("push down")
	rep := newReport("push down", c, st, edits)

	if err := r.Prepare(ctx, c.ID, st); err != nil {
		return err
	}
	if st.HasFatal() {
		return finish(rep, out, opts.json)
	}

	for _, sel := range []struct {
		args []string
		kind plan.ActionKind
	}{
		{opts.members, plan.PushDown},
		{opts.virtual, plan.DeclareVirtual},
	} {
		ms, _, err := selectMembers(r.Class(), sel.args)
		if err != nil {
			return err
		}
		for _, m := range ms {
			if err := r.Select(ctx, m, sel.kind); err != nil {
				return err
			}
			for _, o := range overrides {
				target, err := s.findClass(o.class)
				if err != nil {
					return err
				}
				if o.kind == plan.MethodStub && m.Kind != model.Method {
					continue
				}
				if err := r.SetTargetAction(m, target, o.kind); err != nil {
					return err
				}
			}
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
