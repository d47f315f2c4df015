// Package probe resolves device attributes by trying ordered lists of
// candidate commands until one produces a value that validates.
package probe

import (
	"context"
	"strings"

	"github.com/micromdm/nanoprobe/runner"
)

// Unavailable is the value of an attribute that no probe could resolve.
const Unavailable = "unavailable"

// Fetcher is an in-process source for a probe, used in place of a command.
type Fetcher func(ctx context.Context) (string, error)

// Probe is one candidate way of retrieving an attribute.
type Probe struct {
	// Command is run through the session Runner.
	Command string

	// Fetch, if set, is called instead of running Command.
	Fetch Fetcher

	// Backends restricts the probe to the listed backends.
	// An empty list means every backend.
	Backends []runner.Backend

	// Prepare, if set, rewrites raw output before normalization.
	Prepare func(string) string

	// Verbatim skips normalization, for free-form text such as
	// timestamps whose colons are part of the value.
	Verbatim bool
}

// AppliesTo reports whether p may run against b.
func (p Probe) AppliesTo(b runner.Backend) bool {
	if len(p.Backends) < 1 {
		return true
	}
	for _, pb := range p.Backends {
		if pb == b {
			return true
		}
	}
	return false
}

func (p Probe) String() string {
	if p.Command != "" {
		return p.Command
	}
	return "<native>"
}

// Spec is an ordered list of probes for one attribute.
type Spec []Probe

// Commands builds a Spec of plain commands limited to backends.
func Commands(backends []runner.Backend, commands ...string) Spec {
	s := make(Spec, 0, len(commands))
	for _, c := range commands {
		s = append(s, Probe{Command: c, Backends: backends})
	}
	return s
}

// Only is a convenience for a single-backend list.
func Only(b runner.Backend) []runner.Backend {
	return []runner.Backend{b}
}

// Result is the resolved value of one attribute.
// It is never modified after the resolver returns it.
type Result struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Validated bool   `json:"validated"`
	// Source is the index in the Spec of the committing probe, or -1.
	Source int `json:"source"`
}

func unavailable(name string) Result {
	return Result{Name: name, Value: Unavailable, Source: -1}
}

// Display returns the value elided to width runes for display.
// The full value stays in Value.
func (r Result) Display(width int) string {
	v := []rune(r.Value)
	if width < 4 || len(v) <= width {
		return r.Value
	}
	return string(v[:width-3]) + "..."
}

// Normalize applies the normalization policy shared by every attribute:
// the first non-empty line is trimmed; text after the last ':' is kept;
// then text after the last '=' is kept with surrounding quotes stripped.
// Probe outputs mix raw values with "key=value" and "label: value" forms
// depending on which property store answered.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s = line
			break
		}
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if i := strings.LastIndex(s, "="); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
		s = strings.Trim(s, `"'`)
	}
	return strings.TrimSpace(s)
}
