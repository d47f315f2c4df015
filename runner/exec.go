package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/micromdm/nanoprobe/log/logkeys"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// DefaultTimeout bounds every command run by Exec.
const DefaultTimeout = 15 * time.Second

const (
	// BridgeName is the name commands use to address the debug bridge client.
	BridgeName = "adb"
	// BootloaderClientName is the name commands use to address the bootloader client.
	BootloaderClientName = "fastboot"
)

// Invocation is a concrete process to start.
type Invocation struct {
	Name string
	Args []string
}

func (i Invocation) String() string {
	return strings.Join(append([]string{i.Name}, i.Args...), " ")
}

// Exec runs commands as external processes.
type Exec struct {
	bridge     string
	bootloader string
	serial     string
	timeout    time.Duration
	goos       string
	logger     log.Logger
}

type Option func(*Exec)

// WithLogger configures the logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Exec) {
		e.logger = logger
	}
}

// WithTimeout sets the per-command timeout.
// A zero or negative duration keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Exec) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBridge sets the path of the debug bridge client binary.
func WithBridge(path string) Option {
	return func(e *Exec) {
		if path != "" {
			e.bridge = path
		}
	}
}

// WithBootloaderClient sets the path of the bootloader client binary.
func WithBootloaderClient(path string) Option {
	return func(e *Exec) {
		if path != "" {
			e.bootloader = path
		}
	}
}

// WithSerial targets a specific device: remote shell commands and
// device-addressed bridge and bootloader commands get "-s serial".
func WithSerial(serial string) Option {
	return func(e *Exec) {
		e.serial = serial
	}
}

// New creates a new command executor.
func New(opts ...Option) *Exec {
	e := &Exec{
		bridge:     BridgeName,
		bootloader: BootloaderClientName,
		timeout:    DefaultTimeout,
		goos:       runtime.GOOS,
		logger:     log.NopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsBridgeCommand reports whether command directly invokes the bridge
// or the bootloader client and so must run on the host.
func IsBridgeCommand(command string) bool {
	fields := strings.Fields(command)
	if len(fields) < 1 {
		return false
	}
	return fields[0] == BridgeName || fields[0] == BootloaderClientName
}

// untargeted are client subcommands that act on the server or list every
// device rather than address one.
var untargeted = map[string]bool{
	"devices":      true,
	"kill-server":  true,
	"start-server": true,
	"connect":      true,
	"disconnect":   true,
	"version":      true,
	"help":         true,
}

func (e *Exec) hostShell(command string) Invocation {
	if e.goos == "windows" {
		return Invocation{Name: "cmd", Args: []string{"/C", command}}
	}
	return Invocation{Name: "sh", Args: []string{"-c", command}}
}

// Wrap turns command into the process that Run would start for b.
// Plain commands on RemoteDevice are wrapped into a bridge remote shell.
// Bridge commands, and every command on LocalHost, go to the host shell
// with configured client paths substituted. A configured serial is added
// to bridge commands that address a single device.
func (e *Exec) Wrap(b Backend, command string) Invocation {
	if IsBridgeCommand(command) {
		fields := strings.Fields(command)
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(command), fields[0]))
		name := e.bridge
		if fields[0] == BootloaderClientName {
			name = e.bootloader
		}
		if e.serial != "" && len(fields) > 1 && fields[1] != "-s" && !untargeted[fields[1]] {
			name += " -s " + e.serial
		}
		if rest != "" {
			name += " " + rest
		}
		return e.hostShell(name)
	}
	if b == RemoteDevice {
		args := []string{}
		if e.serial != "" {
			args = append(args, "-s", e.serial)
		}
		return Invocation{Name: e.bridge, Args: append(args, "shell", command)}
	}
	return e.hostShell(command)
}

// Run executes command against b and classifies the result.
func (e *Exec) Run(ctx context.Context, b Backend, command string) Result {
	inv := e.Wrap(b, command)
	logger := ctxlog.Logger(ctx, e.logger).With(
		logkeys.Backend, b,
		logkeys.Command, command,
		logkeys.Invocation, inv.String(),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// shells may leave children holding our pipes after a kill
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	r := Result{
		Command: command,
		Output:  strings.TrimSpace(stdout.String()),
		Stderr:  strings.TrimSpace(stderr.String()),
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.Outcome = TimedOut
		r.Err = fmt.Errorf("no result after %s", e.timeout)
	case err != nil:
		r.Outcome = BackendError
		r.Err = fmt.Errorf("running %s: %w", inv.Name, err)
	case r.Output == "":
		r.Outcome = Empty
	default:
		r.Outcome = Success
	}

	if r.Err != nil {
		logger.Debug(logkeys.Outcome, r.Outcome, logkeys.Error, r.Err)
	} else {
		logger.Debug(logkeys.Outcome, r.Outcome)
	}
	return r
}
