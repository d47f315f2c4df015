// Package test provides a scripted Runner for tests.
package test

import (
	"context"
	"errors"
	"sync"

	"github.com/micromdm/nanoprobe/runner"
)

// ErrUnscripted is reported for commands with no scripted result.
var ErrUnscripted = errors.New("unscripted command")

// Call records one Run invocation.
type Call struct {
	Backend runner.Backend
	Command string
}

// Runner replays scripted results per command.
// When more than one result is scripted for a command they are returned
// in order and the last one repeats.
type Runner struct {
	mu      sync.Mutex
	scripts map[string][]runner.Result
	calls   []Call
}

// New creates a new scripted runner.
func New() *Runner {
	return &Runner{scripts: make(map[string][]runner.Result)}
}

// On scripts results for command.
func (r *Runner) On(command string, results ...runner.Result) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range results {
		results[i].Command = command
	}
	r.scripts[command] = append(r.scripts[command], results...)
	return r
}

// Run returns the next scripted result for command.
func (r *Runner) Run(_ context.Context, b runner.Backend, command string) runner.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Backend: b, Command: command})
	results := r.scripts[command]
	if len(results) < 1 {
		return runner.Result{Command: command, Outcome: runner.BackendError, Err: ErrUnscripted}
	}
	res := results[0]
	if len(results) > 1 {
		r.scripts[command] = results[1:]
	}
	return res
}

// Calls returns the commands run so far.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns just the command strings run so far.
func (r *Runner) Commands() []string {
	var ret []string
	for _, c := range r.Calls() {
		ret = append(ret, c.Command)
	}
	return ret
}

// Output is a successful result.
func Output(s string) runner.Result {
	if s == "" {
		return runner.Result{Outcome: runner.Empty}
	}
	return runner.Result{Output: s, Outcome: runner.Success}
}

// Fail is a backend error result with stderr text.
func Fail(stderr string) runner.Result {
	return runner.Result{Stderr: stderr, Outcome: runner.BackendError, Err: errors.New("exit status 1")}
}

// Timeout is a timed out result.
func Timeout() runner.Result {
	return runner.Result{Outcome: runner.TimedOut, Err: context.DeadlineExceeded}
}
