// Package status collects the diagnostics produced while checking a refactoring.
package status

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// Severity orders diagnostics from least to most severe.
type Severity int

const (
	// Warning is reported but does not block execution.
	Warning Severity = iota + 1
	// Error blocks execution; errors are collected so all of them are shown.
	Error
	// Fatal aborts checking immediately.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "ok"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is one diagnostic attached to a source location.
type Entry struct {
	Severity Severity       `json:"severity"`
	Location model.Location `json:"location"`
	Message  string         `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Severity, e.Location, e.Message)
}

// Status is a composite status. The zero value is ready to use.
type Status struct {
	entries []Entry
	seen    map[string]bool
}

// New returns an empty status.
func New() *Status {
	return &Status{}
}

// Add records e unless an entry with the same location and message exists.
func (s *Status) Add(e Entry) {
	key := e.Location.String() + "\x00" + e.Message
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.entries = append(s.entries, e)
}

func (s *Status) Warningf(loc model.Location, format string, args ...any) {
	s.Add(Entry{Severity: Warning, Location: loc, Message: fmt.Sprintf(format, args...)})
}

func (s *Status) Errorf(loc model.Location, format string, args ...any) {
	s.Add(Entry{Severity: Error, Location: loc, Message: fmt.Sprintf(format, args...)})
}

func (s *Status) Fatalf(loc model.Location, format string, args ...any) {
	s.Add(Entry{Severity: Fatal, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Merge adds every entry of o.
func (s *Status) Merge(o *Status) {
	if o == nil {
		return
	}
	for _, e := range o.entries {
		s.Add(e)
	}
}

// Severity returns the most severe recorded severity, or 0 when empty.
func (s *Status) Severity() Severity {
	var worst Severity
	for _, e := range s.entries {
		if e.Severity > worst {
			worst = e.Severity
		}
	}
	return worst
}

// HasFatal reports whether a fatal entry was recorded.
func (s *Status) HasFatal() bool {
	return s.Severity() >= Fatal
}

// HasError reports whether an error or fatal entry was recorded.
func (s *Status) HasError() bool {
	return s.Severity() >= Error
}

// OK reports whether nothing was recorded.
func (s *Status) OK() bool {
	return len(s.entries) == 0
}

// Len returns the number of recorded entries.
func (s *Status) Len() int {
	return len(s.entries)
}

// Count returns the number of entries with severity sev.
func (s *Status) Count(sev Severity) int {
	n := 0
	for _, e := range s.entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

// Entries returns the entries sorted by location; entries at the same
// location keep their recording order.
func (s *Status) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location.Less(out[j].Location)
	})
	return out
}

// Filter returns the entries with severity sev, in location order.
func (s *Status) Filter(sev Severity) []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}

// Err returns an error describing every error and fatal entry, or nil.
func (s *Status) Err() error {
	if !s.HasError() {
		return nil
	}
	var errs []error
	for _, e := range s.Entries() {
		if e.Severity >= Error {
			errs = append(errs, errors.New(e.String()))
		}
	}
	return errors.Join(errs...)
}

func (s *Status) String() string {
	var sb strings.Builder
	for _, e := range s.Entries() {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
