package mode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/micromdm/nanoprobe/runner"
	"github.com/micromdm/nanoprobe/runner/test"
)

const (
	devicesHeader   = "List of devices attached"
	devicesAttached = devicesHeader + "\nR5CT1234ABC\tdevice"
)

type fixedChooser struct {
	m      Mode
	err    error
	called int
}

func (c *fixedChooser) Choose(_ context.Context, _ []Mode) (Mode, error) {
	c.called++
	return c.m, c.err
}

type fixedAddresser string

func (a fixedAddresser) NetworkAddress(context.Context) (string, error) {
	return string(a), nil
}

type countingAddresser struct {
	addr   string
	called int
}

func (a *countingAddresser) NetworkAddress(context.Context) (string, error) {
	a.called++
	return a.addr, nil
}

func newDetector(r runner.Runner, goos string, opts ...Option) *Detector {
	d := New(r, opts...)
	d.goos = goos
	d.sleep = func(context.Context, time.Duration) error { return nil }
	return d
}

func count(cmds []string, cmd string) (n int) {
	for _, c := range cmds {
		if c == cmd {
			n++
		}
	}
	return
}

func TestParseDevices(t *testing.T) {
	out := "* daemon started successfully\n" + devicesHeader + "\nR5CT1234ABC\tdevice\nemulator-5554\toffline\nXYZ987654\tunauthorized\n192.168.1.5:5555\tdevice\n"
	have := ParseDevices(out)
	if len(have) != 2 {
		t.Fatalf("have: %v", have)
	}
	if have[0] != "R5CT1234ABC" || have[1] != "192.168.1.5:5555" {
		t.Errorf("have: %v", have)
	}
	if have := ParseDevices(devicesHeader); len(have) != 0 {
		t.Errorf("have: %v", have)
	}
}

func TestParseBootloaderDevices(t *testing.T) {
	have := ParseBootloaderDevices("R5CT1234ABC\tfastboot\n\nemulator-5554\tfastboot\n")
	if len(have) != 2 || have[0] != "R5CT1234ABC" || have[1] != "emulator-5554" {
		t.Errorf("have: %v", have)
	}
}

func TestDetectSerial(t *testing.T) {
	other := devicesHeader + "\nemulator-5554\tdevice"
	for _, tc := range []struct {
		name     string
		devices  string
		fastboot string
		want     []Mode
	}{
		{"targeted normal", devicesAttached + "\nemulator-5554\tdevice", "", []Mode{Normal}},
		{"other normal", other, "", nil},
		{"targeted bootloader", other, "R5CT1234ABC\tfastboot", []Mode{Bootloader}},
		{"other bootloader", other, "emulator-5554\tfastboot", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := test.New().
				On(DevicesCommand, test.Output(tc.devices)).
				On(FastbootCommand, test.Output(tc.fastboot))

			det := newDetector(r, "darwin", WithSerial("R5CT1234ABC")).Detect(context.Background())

			if len(det.Modes) != len(tc.want) {
				t.Fatalf("have: %v, want: %v", det.Modes, tc.want)
			}
			for i := range tc.want {
				if det.Modes[i] != tc.want[i] {
					t.Errorf("have: %v, want: %v", det.Modes, tc.want)
				}
			}
		})
	}
}

func TestDetectNormal(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesAttached)).
		On(FastbootCommand, test.Output(""))

	det := newDetector(r, "darwin").Detect(context.Background())

	if len(det.Modes) != 1 || det.Modes[0] != Normal {
		t.Errorf("have: %v", det.Modes)
	}
	if n := count(r.Commands(), KillServerCommand); n != 0 {
		t.Errorf("bridge restarted %d times", n)
	}
	for _, c := range r.Calls() {
		if c.Backend != runner.LocalHost {
			t.Errorf("%s ran against %v", c.Command, c.Backend)
		}
	}
}

func TestDetectBridgeRestartOnce(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Fail("cannot connect to daemon"), test.Output(devicesAttached)).
		On(KillServerCommand, test.Output("")).
		On(StartCommand, test.Output("")).
		On(FastbootCommand, test.Output(""))

	det := newDetector(r, "darwin").Detect(context.Background())

	if !det.Has(Normal) {
		t.Errorf("expected normal mode after restart: %v", det.Modes)
	}
	cmds := r.Commands()
	if have, want := count(cmds, KillServerCommand), 1; have != want {
		t.Errorf("kill-server: have: %d, want: %d", have, want)
	}
	if have, want := count(cmds, DevicesCommand), 2; have != want {
		t.Errorf("devices: have: %d, want: %d", have, want)
	}
}

func TestDetectBridgeRestartBounded(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Fail("cannot connect to daemon")).
		On(FastbootCommand, test.Fail("fastboot: not found"))

	det := newDetector(r, "darwin").Detect(context.Background())

	if len(det.Modes) != 0 {
		t.Errorf("have: %v", det.Modes)
	}
	if have, want := count(r.Commands(), DevicesCommand), 2; have != want {
		t.Errorf("devices: have: %d, want: %d", have, want)
	}
}

func TestDetectLowLevel(t *testing.T) {
	for _, tc := range []struct {
		goos string
		cmd  string
		out  string
		want bool
	}{
		{"windows", windowsEnumCommand, "Name\nQualcomm HS-USB QDLoader 9008 (COM3)", true},
		{"windows", windowsEnumCommand, "Name\nUSB Root Hub", false},
		{"linux", linuxEnumCommand, "Bus 001 Device 004: ID 05c6:9008 Qualcomm, Inc. Gobi Wireless Modem (QDL mode)", true},
		{"linux", linuxEnumCommand, "Bus 001 Device 001: ID 1d6b:0002 Linux Foundation 2.0 root hub", false},
		{"darwin", "", "", false},
	} {
		t.Run(tc.goos, func(t *testing.T) {
			r := test.New().On(DevicesCommand, test.Output(devicesHeader))
			if tc.cmd != "" {
				r.On(tc.cmd, test.Output(tc.out))
			}
			det := newDetector(r, tc.goos).Detect(context.Background())
			if have := det.Has(LowLevelLoader); have != tc.want {
				t.Errorf("have: %v, want: %v", have, tc.want)
			}
		})
	}
}

func TestDetectNetworkTier(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesHeader), test.Output(devicesHeader+"\n192.168.1.5:5555\tdevice")).
		On("adb connect 192.168.1.5:5555", test.Output("connected to 192.168.1.5:5555"))

	det := newDetector(r, "darwin", WithAddresser(fixedAddresser("192.168.1.5"))).Detect(context.Background())

	if !det.Has(Normal) {
		t.Fatalf("have: %v", det.Modes)
	}
	if have, want := det.Network, "192.168.1.5:5555"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func TestDetectNetworkSkipped(t *testing.T) {
	r := test.New().On(DevicesCommand, test.Output(devicesHeader))

	det := newDetector(r, "darwin", WithAddresser(fixedAddresser(""))).Detect(context.Background())

	if len(det.Modes) != 0 {
		t.Errorf("have: %v", det.Modes)
	}
	for _, c := range r.Commands() {
		if len(c) > 11 && c[:11] == "adb connect" {
			t.Errorf("unexpected %q", c)
		}
	}
}

func TestResolve(t *testing.T) {
	both := func() *test.Runner {
		return test.New().
			On(DevicesCommand, test.Output(devicesAttached)).
			On(FastbootCommand, test.Output("R5CT1234ABC\tfastboot"))
	}

	t.Run("unreachable", func(t *testing.T) {
		m, err := newDetector(test.New(), "darwin").Resolve(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if m != Unreachable {
			t.Errorf("have: %v", m)
		}
	})

	t.Run("ambiguous without chooser", func(t *testing.T) {
		_, err := newDetector(both(), "darwin").Resolve(context.Background())
		if !errors.Is(err, ErrAmbiguous) {
			t.Errorf("have: %v, want: %v", err, ErrAmbiguous)
		}
	})

	t.Run("chooser", func(t *testing.T) {
		c := &fixedChooser{m: Bootloader}
		m, err := newDetector(both(), "darwin", WithChooser(c)).Resolve(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if m != Bootloader {
			t.Errorf("have: %v", m)
		}
		if c.called != 1 {
			t.Errorf("chooser called %d times", c.called)
		}
	})

	t.Run("invalid choice", func(t *testing.T) {
		c := &fixedChooser{m: LowLevelLoader}
		_, err := newDetector(both(), "darwin", WithChooser(c)).Resolve(context.Background())
		if !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("have: %v, want: %v", err, ErrInvalidChoice)
		}
	})
}

func TestPrepareBootloaderAlreadyThere(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesHeader)).
		On(FastbootCommand, test.Output("R5CT1234ABC\tfastboot"))
	called := false

	m, err := newDetector(r, "darwin").PrepareBootloader(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	if err != nil {
		t.Fatal(err)
	}
	if m != Bootloader {
		t.Errorf("have: %v", m)
	}
	if called {
		t.Error("transition ran for a device already in bootloader")
	}
}

func TestPrepareBootloaderAutomatic(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesAttached), test.Output(devicesHeader)).
		On(FastbootCommand, test.Output(""), test.Output("R5CT1234ABC\tfastboot")).
		On(RebootCommand, test.Output(""))
	d := newDetector(r, "darwin")
	var slept time.Duration
	d.sleep = func(_ context.Context, s time.Duration) error {
		slept = s
		return nil
	}

	m, err := d.PrepareBootloader(context.Background(), d.Reboot)

	if err != nil {
		t.Fatal(err)
	}
	if m != Bootloader {
		t.Errorf("have: %v", m)
	}
	if slept != DefaultSettle {
		t.Errorf("settle: have: %v, want: %v", slept, DefaultSettle)
	}
	if have, want := count(r.Commands(), RebootCommand), 1; have != want {
		t.Errorf("reboots: have: %d, want: %d", have, want)
	}
}

func TestPrepareBootloaderNoNetworkAfterTransition(t *testing.T) {
	// the bootloader has not enumerated yet when the settle ends
	r := test.New().
		On(DevicesCommand, test.Output(devicesAttached), test.Output(devicesHeader)).
		On(FastbootCommand, test.Output("")).
		On(RebootCommand, test.Output("")).
		On("adb connect 192.168.1.5:5555", test.Output("connected to 192.168.1.5:5555"))
	a := &countingAddresser{addr: "192.168.1.5"}
	d := newDetector(r, "darwin", WithAddresser(a))

	m, err := d.PrepareBootloader(context.Background(), d.Reboot)

	if !errors.Is(err, ErrNotBootloader) {
		t.Errorf("have: %v, want: %v", err, ErrNotBootloader)
	}
	if m != Unreachable {
		t.Errorf("have: %v", m)
	}
	if a.called != 0 {
		t.Errorf("network address asked %d times", a.called)
	}
	if n := count(r.Commands(), "adb connect 192.168.1.5:5555"); n != 0 {
		t.Errorf("network reconnect ran %d times", n)
	}
}

func TestPrepareBootloaderNoTransition(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesAttached)).
		On(FastbootCommand, test.Output(""))

	waited := 0
	manual := func(context.Context) error {
		waited++
		return nil
	}
	m, err := newDetector(r, "darwin").PrepareBootloader(context.Background(), manual)

	if !errors.Is(err, ErrNotBootloader) {
		t.Errorf("have: %v, want: %v", err, ErrNotBootloader)
	}
	if m != Normal {
		t.Errorf("have: %v", m)
	}
	if waited != 1 {
		t.Errorf("transition ran %d times", waited)
	}
}

func TestPrepareBootloaderTerminal(t *testing.T) {
	r := test.New().
		On(DevicesCommand, test.Output(devicesHeader)).
		On(FastbootCommand, test.Output("")).
		On(linuxEnumCommand, test.Output("ID 05c6:9008 Qualcomm"))
	noop := func(context.Context) error {
		t.Error("transition ran")
		return nil
	}

	_, err := newDetector(r, "linux").PrepareBootloader(context.Background(), noop)
	if !errors.Is(err, ErrLowLevelLoader) {
		t.Errorf("have: %v, want: %v", err, ErrLowLevelLoader)
	}

	_, err = newDetector(test.New(), "darwin").PrepareBootloader(context.Background(), noop)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("have: %v, want: %v", err, ErrUnreachable)
	}
}

func TestRebootFailure(t *testing.T) {
	r := test.New().On(RebootCommand, test.Fail("error: no devices/emulators found"))
	err := newDetector(r, "darwin").Reboot(context.Background())
	if !errors.Is(err, ErrTransition) {
		t.Errorf("have: %v, want: %v", err, ErrTransition)
	}
}
