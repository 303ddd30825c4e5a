package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
)

// report is the outcome of one refactoring run.
type report struct {
	Refactoring string         `json:"refactoring"`
	Class       string         `json:"class"`
	Target      string         `json:"target,omitempty"`
	Applied     bool           `json:"applied"`
	Actions     []actionJSON   `json:"actions"`
	Status      []status.Entry `json:"status"`
	Edits       []editJSON     `json:"edits"`

	st    *status.Status
	edits *rewrite.Collector
}

type actionJSON struct {
	Kind       string `json:"kind"`
	Member     string `json:"member"`
	Source     string `json:"source,omitempty"`
	Target     string `json:"target,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

type editJSON struct {
	Unit     string         `json:"unit"`
	Kind     string         `json:"kind"`
	Summary  string         `json:"summary"`
	Location model.Location `json:"location"`
	Text     string         `json:"text,omitempty"`
}

func newReport(name string, c *model.Class, st *status.Status, edits *rewrite.Collector) *report {
	r := &report{Refactoring: name, st: st, edits: edits}
	if c != nil {
		r.Class = c.QualifiedName()
	}
	return r
}

func (r *report) setPlan(p *plan.Plan) {
	if p == nil {
		return
	}
	for _, a := range p.Actions() {
		aj := actionJSON{Kind: a.Kind.String(), Member: a.Member.Display()}
		if a.Source != nil {
			aj.Source = a.Source.QualifiedName()
		}
		if a.Target != nil {
			aj.Target = a.Target.QualifiedName()
			aj.Visibility = a.Visibility.String()
		}
		r.Actions = append(r.Actions, aj)
	}
}

// writeText prints the diagnostics, then the staged edits per unit.
func (r *report) writeText(w io.Writer) error {
	if _, err := io.WriteString(w, r.st.String()); err != nil {
		return err
	}
	if !r.Applied {
		_, err := fmt.Fprintf(w, "%s of %s not applied\n", r.Refactoring, r.Class)
		return err
	}
	_, err := r.edits.WriteTo(w)
	return err
}

// writeJSON prints the report as indented JSON.
func (r *report) writeJSON(w io.Writer) error {
	r.Status = r.st.Entries()
	if r.Status == nil {
		r.Status = []status.Entry{}
	}
	if r.Actions == nil {
		r.Actions = []actionJSON{}
	}
	r.Edits = []editJSON{}
	for _, e := range r.edits.All() {
		ej := editJSON{Unit: e.Unit, Kind: e.Kind.String(), Summary: e.String(), Location: e.Location}
		if e.Kind == rewrite.Insert {
			ej.Text = rewrite.Render(e.Node)
		}
		r.Edits = append(r.Edits, ej)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *report) write(w io.Writer, asJSON bool) error {
	if asJSON {
		return r.writeJSON(w)
	}
	return r.writeText(w)
}

// result maps the status to the command's error.
func (r *report) result() error {
	if r.st.HasError() {
		return errRefactoringFailed
	}
	return nil
}
