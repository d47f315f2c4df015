// Package mode detects which channel a device is reachable through.
//
// A device may answer on its normal debug bridge session, in its
// bootloader, or in a chipset low-level loader (emergency download) mode.
// Detection is recomputed on every call: the physical state of a device
// changes underneath us (reboots, cables) so it is never cached.
package mode

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/micromdm/nanoprobe/log/logkeys"
	"github.com/micromdm/nanoprobe/runner"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// Mode is a device connection mode.
type Mode int

const (
	Unreachable Mode = iota
	Normal
	Bootloader
	LowLevelLoader
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Bootloader:
		return "bootloader"
	case LowLevelLoader:
		return "low-level-loader"
	}
	return "unreachable"
}

// Label is the operator-facing description of m.
func (m Mode) Label() string {
	switch m {
	case Normal:
		return "Normal (debug bridge, booted)"
	case Bootloader:
		return "Bootloader (fastboot)"
	case LowLevelLoader:
		return "Low-level loader (Qualcomm 9008/EDL)"
	}
	return "Unreachable"
}

var (
	ErrUnreachable    = errors.New("no device reachable")
	ErrLowLevelLoader = errors.New("device is in low-level loader mode")
	ErrNotBootloader  = errors.New("device did not enter bootloader mode")
	ErrAmbiguous      = errors.New("multiple modes detected and no chooser")
	ErrInvalidChoice  = errors.New("invalid mode choice")
	ErrTransition     = errors.New("bootloader transition failed")
)

// DefaultSettle is how long to wait after a reboot-to-bootloader before
// detecting again.
const DefaultSettle = 5 * time.Second

// Host commands used by the probes.
const (
	DevicesCommand    = "adb devices"
	KillServerCommand = "adb kill-server"
	StartCommand      = "adb start-server"
	FastbootCommand   = "fastboot devices"
	RebootCommand     = "adb reboot bootloader"

	windowsEnumCommand = "wmic path Win32_PnPEntity get Name"
	linuxEnumCommand   = "lsusb"
)

// Chooser asks the operator to pick one of several detected modes.
// It blocks until the operator answers; there is no default.
type Chooser interface {
	Choose(ctx context.Context, candidates []Mode) (Mode, error)
}

// Addresser asks the operator for a network address of the device.
// An empty address skips the network tier.
type Addresser interface {
	NetworkAddress(ctx context.Context) (string, error)
}

// Detection is the set of modes whose probe succeeded.
type Detection struct {
	Modes []Mode

	// Network is the address reconnected over, when the network
	// tier produced the Normal mode.
	Network string
}

// Has reports whether m was detected.
func (d Detection) Has(m Mode) bool {
	for _, dm := range d.Modes {
		if dm == m {
			return true
		}
	}
	return false
}

// Detector probes the debug bridge, bootloader and low-level loader channels.
type Detector struct {
	runner    runner.Runner
	logger    log.Logger
	chooser   Chooser
	addresser Addresser
	serial    string
	settle    time.Duration
	goos      string
	sleep     func(context.Context, time.Duration) error
}

type Option func(*Detector)

// WithLogger configures the logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithChooser configures how ambiguous detections are resolved.
func WithChooser(c Chooser) Option {
	return func(d *Detector) {
		d.chooser = c
	}
}

// WithAddresser turns on the network reconnection tier.
func WithAddresser(a Addresser) Option {
	return func(d *Detector) {
		d.addresser = a
	}
}

// WithSerial restricts detection to the device with this serial.
// Other attached devices are ignored.
func WithSerial(serial string) Option {
	return func(d *Detector) {
		d.serial = serial
	}
}

// WithSettle sets the wait after a reboot-to-bootloader.
func WithSettle(s time.Duration) Option {
	return func(d *Detector) {
		d.settle = s
	}
}

// New creates a new mode detector.
func New(r runner.Runner, opts ...Option) *Detector {
	d := &Detector{
		runner: r,
		logger: log.NopLogger,
		settle: DefaultSettle,
		goos:   runtime.GOOS,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Detector) run(ctx context.Context, command string) runner.Result {
	return d.runner.Run(ctx, runner.LocalHost, command)
}

// ParseDevices returns the serials of `adb devices` entries in the
// "device" state. Unauthorized and offline entries are not counted.
func ParseDevices(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}

// targeted keeps the serials matching the configured serial, or all of
// them when none is configured.
func (d *Detector) targeted(serials []string) []string {
	if d.serial == "" {
		return serials
	}
	var ret []string
	for _, s := range serials {
		if s == d.serial {
			ret = append(ret, s)
		}
	}
	return ret
}

func (d *Detector) listNormal(ctx context.Context) ([]string, runner.Result) {
	res := d.run(ctx, DevicesCommand)
	if !res.OK() {
		return nil, res
	}
	return ParseDevices(res.Output), res
}

// probeNormal reports whether the bridge lists an attached device.
// A failing bridge gets exactly one service restart and retry.
func (d *Detector) probeNormal(ctx context.Context) bool {
	logger := ctxlog.Logger(ctx, d.logger)
	serials, res := d.listNormal(ctx)
	if res.Outcome == runner.BackendError || res.Outcome == runner.TimedOut {
		logger.Info(logkeys.Message, "restarting bridge service", logkeys.Error, res.Message())
		d.run(ctx, KillServerCommand)
		d.run(ctx, StartCommand)
		serials, res = d.listNormal(ctx)
	}
	if !res.OK() {
		logger.Debug(logkeys.Message, "bridge probe", logkeys.Outcome, res.Outcome)
	}
	return len(d.targeted(serials)) > 0
}

// ParseBootloaderDevices returns the serials listed by `fastboot devices`.
func ParseBootloaderDevices(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			serials = append(serials, fields[0])
		}
	}
	return serials
}

func (d *Detector) probeBootloader(ctx context.Context) bool {
	res := d.run(ctx, FastbootCommand)
	if !res.OK() {
		return false
	}
	return len(d.targeted(ParseBootloaderDevices(res.Output))) > 0
}

// probeLowLevel looks for the Qualcomm emergency download device in the
// host's device enumeration. Only Windows and Linux have an enumeration
// source; elsewhere the probe never succeeds.
func (d *Detector) probeLowLevel(ctx context.Context) bool {
	switch d.goos {
	case "windows":
		res := d.run(ctx, windowsEnumCommand)
		return res.OK() && (strings.Contains(res.Output, "9008") || strings.Contains(res.Output, "QDLoader"))
	case "linux":
		res := d.run(ctx, linuxEnumCommand)
		return res.OK() && strings.Contains(strings.ToLower(res.Output), "05c6:9008")
	}
	return false
}

// probeNetwork asks the operator for an address and reconnects the
// bridge over the network.
func (d *Detector) probeNetwork(ctx context.Context) (string, bool) {
	if d.addresser == nil {
		return "", false
	}
	logger := ctxlog.Logger(ctx, d.logger)
	addr, err := d.addresser.NetworkAddress(ctx)
	if err != nil {
		logger.Info(logkeys.Message, "network address", logkeys.Error, err)
		return "", false
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", false
	}
	if !strings.Contains(addr, ":") {
		addr += ":5555"
	}
	res := d.run(ctx, "adb connect "+addr)
	out := strings.ToLower(res.Output)
	if !res.OK() || !strings.Contains(out, "connected to") || strings.Contains(out, "failed") {
		logger.Info(logkeys.Message, "network reconnect", "address", addr, logkeys.Error, res.Message())
		return "", false
	}
	// a network device is listed under its address, not its serial
	serials, _ := d.listNormal(ctx)
	for _, s := range serials {
		if s == addr {
			return addr, true
		}
	}
	return "", false
}

// Detect probes every channel and returns the set of reachable modes.
func (d *Detector) Detect(ctx context.Context) Detection {
	return d.detect(ctx, true)
}

// detect probes every channel. The network tier only runs when network
// is set and nothing else answered.
func (d *Detector) detect(ctx context.Context, network bool) Detection {
	var det Detection
	if d.probeNormal(ctx) {
		det.Modes = append(det.Modes, Normal)
	}
	if d.probeBootloader(ctx) {
		det.Modes = append(det.Modes, Bootloader)
	}
	if d.probeLowLevel(ctx) {
		det.Modes = append(det.Modes, LowLevelLoader)
	}
	if network && len(det.Modes) < 1 {
		if addr, ok := d.probeNetwork(ctx); ok {
			det.Modes = append(det.Modes, Normal)
			det.Network = addr
		}
	}
	ctxlog.Logger(ctx, d.logger).Debug(
		logkeys.Message, "detected modes",
		logkeys.GenericCount, len(det.Modes),
	)
	return det
}

// Resolve detects and reduces the detection to a single mode. An empty
// set is Unreachable. Several modes are put to the operator: a device
// mid-reboot can show on two channels and guessing between them is unsafe.
func (d *Detector) Resolve(ctx context.Context) (Mode, error) {
	return d.resolve(ctx, d.Detect(ctx))
}

func (d *Detector) resolve(ctx context.Context, det Detection) (Mode, error) {
	switch len(det.Modes) {
	case 0:
		return Unreachable, nil
	case 1:
		return det.Modes[0], nil
	}
	if d.chooser == nil {
		return Unreachable, ErrAmbiguous
	}
	m, err := d.chooser.Choose(ctx, det.Modes)
	if err != nil {
		return Unreachable, fmt.Errorf("choosing mode: %w", err)
	}
	if !det.Has(m) {
		return Unreachable, fmt.Errorf("%w: %s", ErrInvalidChoice, m)
	}
	return m, nil
}

// Transition moves a device from Normal towards Bootloader mode.
type Transition func(ctx context.Context) error

// Reboot is the automatic Transition: it asks the bridge to reboot the
// device into its bootloader and waits for the settle interval.
func (d *Detector) Reboot(ctx context.Context) error {
	res := d.run(ctx, RebootCommand)
	if res.Outcome != runner.Success && res.Outcome != runner.Empty {
		return fmt.Errorf("%w: %s", ErrTransition, res.Message())
	}
	return d.sleep(ctx, d.settle)
}

// PrepareBootloader makes sure the device is in Bootloader mode before a
// bootloader-affecting operation. From Normal it runs t once and detects
// again; it never retries. Low-level loader mode is terminal: the
// operator must leave it by hand.
func (d *Detector) PrepareBootloader(ctx context.Context, t Transition) (Mode, error) {
	m, err := d.Resolve(ctx)
	if err != nil {
		return m, err
	}
	logger := ctxlog.Logger(ctx, d.logger).With(logkeys.Mode, m)
	switch m {
	case Bootloader:
		return m, nil
	case Unreachable:
		return m, ErrUnreachable
	case LowLevelLoader:
		return m, ErrLowLevelLoader
	}

	logger.Info(logkeys.Message, "transitioning to bootloader")
	if err = t(ctx); err != nil {
		return m, err
	}
	// a network reconnect would only find the device booted normally
	if m, err = d.resolve(ctx, d.detect(ctx, false)); err != nil {
		return m, err
	}
	if m != Bootloader {
		return m, fmt.Errorf("%w: detected %s", ErrNotBootloader, m)
	}
	return m, nil
}
