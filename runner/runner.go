// Package runner executes probe commands against the session backend.
//
// A Runner never returns a Go error to its caller. Probes are expected
// to fail routinely (unsupported commands, missing binaries, devices that
// vanish mid-scan) so every failure is reported as a typed Outcome on the
// Result instead.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend is the execution target for probe commands.
type Backend int

const (
	// RemoteDevice runs commands inside a remote shell on the device over the debug bridge.
	RemoteDevice Backend = iota
	// LocalHost runs commands on the operator's host.
	LocalHost
)

var ErrUnknownBackend = errors.New("unknown backend")

func (b Backend) String() string {
	switch b {
	case RemoteDevice:
		return "adb"
	case LocalHost:
		return "local"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses the textual backend names used by flags and storage.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adb", "remote", "device":
		return RemoteDevice, nil
	case "local", "host":
		return LocalHost, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Outcome classifies the result of running a single command.
type Outcome int

const (
	// Success means the command exited cleanly with non-empty output.
	Success Outcome = iota
	// Empty means the command exited cleanly but printed nothing.
	Empty
	// TimedOut means the command was killed after the runner timeout.
	TimedOut
	// BackendError covers every other failure: missing binaries,
	// non-zero exits, bridge errors.
	BackendError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Empty:
		return "empty"
	case TimedOut:
		return "timed-out"
	case BackendError:
		return "backend-error"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the outcome of one command.
type Result struct {
	Command string // the command as given by the caller
	Output  string // trimmed stdout
	Stderr  string // trimmed stderr
	Outcome Outcome
	Err     error // set for TimedOut and BackendError
}

// OK reports whether the command succeeded with output.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Message describes the result for operators and logs.
func (r Result) Message() string {
	switch r.Outcome {
	case Success:
		return r.Output
	case Empty:
		return "no output"
	}
	msg := r.Outcome.String()
	if r.Err != nil {
		msg += ": " + r.Err.Error()
	}
	if r.Stderr != "" {
		msg += ": " + r.Stderr
	}
	return msg
}

// Runner runs one textual command against a backend.
type Runner interface {
	Run(ctx context.Context, b Backend, command string) Result
}
