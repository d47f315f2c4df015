package runner

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
	"time"
)

func TestWrap(t *testing.T) {
	e := New()
	e.goos = "linux"

	for _, tc := range []struct {
		name    string
		backend Backend
		command string
		want    Invocation
	}{
		{
			name:    "remote property read",
			backend: RemoteDevice,
			command: "getprop ro.serialno",
			want:    Invocation{Name: "adb", Args: []string{"shell", "getprop ro.serialno"}},
		},
		{
			name:    "remote pipeline stays one argument",
			backend: RemoteDevice,
			command: `dumpsys battery | grep level`,
			want:    Invocation{Name: "adb", Args: []string{"shell", "dumpsys battery | grep level"}},
		},
		{
			name:    "local passthrough",
			backend: LocalHost,
			command: "getprop ro.serialno",
			want:    Invocation{Name: "sh", Args: []string{"-c", "getprop ro.serialno"}},
		},
		{
			name:    "bridge command not wrapped",
			backend: RemoteDevice,
			command: "adb devices",
			want:    Invocation{Name: "sh", Args: []string{"-c", "adb devices"}},
		},
		{
			name:    "bootloader command not wrapped",
			backend: RemoteDevice,
			command: "fastboot devices",
			want:    Invocation{Name: "sh", Args: []string{"-c", "fastboot devices"}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if have, want := e.Wrap(tc.backend, tc.command), tc.want; !reflect.DeepEqual(have, want) {
				t.Errorf("have: %v, want: %v", have, want)
			}
		})
	}
}

func TestWrapOptions(t *testing.T) {
	e := New(WithBridge("/opt/platform-tools/adb"), WithBootloaderClient("/opt/platform-tools/fastboot"), WithSerial("192.168.1.20:5555"))
	e.goos = "windows"

	have := e.Wrap(RemoteDevice, "getprop ro.product.model")
	want := Invocation{Name: "/opt/platform-tools/adb", Args: []string{"-s", "192.168.1.20:5555", "shell", "getprop ro.product.model"}}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have: %v, want: %v", have, want)
	}

	have = e.Wrap(LocalHost, "fastboot devices")
	want = Invocation{Name: "cmd", Args: []string{"/C", "/opt/platform-tools/fastboot devices"}}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have: %v, want: %v", have, want)
	}
}

func TestWrapSerialBridgeCommands(t *testing.T) {
	e := New(WithSerial("R5CT1234ABC"))
	e.goos = "linux"

	for _, tc := range []struct {
		command string
		want    string
	}{
		{"adb reboot bootloader", "adb -s R5CT1234ABC reboot bootloader"},
		{"fastboot reboot", "fastboot -s R5CT1234ABC reboot"},
		{"fastboot oem device-info", "fastboot -s R5CT1234ABC oem device-info"},
		// listings and server control are not device-addressed
		{"adb devices", "adb devices"},
		{"fastboot devices", "fastboot devices"},
		{"adb kill-server", "adb kill-server"},
		{"adb connect 192.168.1.5:5555", "adb connect 192.168.1.5:5555"},
		// an explicit target wins
		{"adb -s emulator-5554 reboot", "adb -s emulator-5554 reboot"},
	} {
		t.Run(tc.command, func(t *testing.T) {
			have := e.Wrap(RemoteDevice, tc.command)
			want := Invocation{Name: "sh", Args: []string{"-c", tc.want}}
			if !reflect.DeepEqual(have, want) {
				t.Errorf("have: %v, want: %v", have, want)
			}
		})
	}
}

func TestInvocationString(t *testing.T) {
	inv := New(WithSerial("R5CT1234ABC")).Wrap(RemoteDevice, "getprop ro.serialno")
	if have, want := inv.String(), "adb -s R5CT1234ABC shell getprop ro.serialno"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func TestParseBackend(t *testing.T) {
	if b, err := ParseBackend("ADB"); err != nil || b != RemoteDevice {
		t.Errorf("have: %v, %v", b, err)
	}
	if b, err := ParseBackend("local"); err != nil || b != LocalHost {
		t.Errorf("have: %v, %v", b, err)
	}
	if _, err := ParseBackend("serial"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, have: %v", err)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh available")
	}
}

func TestRunOutcomes(t *testing.T) {
	requireShell(t)
	e := New()
	ctx := context.Background()

	r := e.Run(ctx, LocalHost, "echo '  hello  '; echo oops >&2")
	if have, want := r.Outcome, Success; have != want {
		t.Fatalf("have: %v, want: %v (%s)", have, want, r.Message())
	}
	if have, want := r.Output, "hello"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
	if have, want := r.Stderr, "oops"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}

	r = e.Run(ctx, LocalHost, "true")
	if have, want := r.Outcome, Empty; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}

	r = e.Run(ctx, LocalHost, "exit 3")
	if have, want := r.Outcome, BackendError; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
	if r.OK() || r.Err == nil {
		t.Error("expected failed result with error")
	}
}

func TestRunTimeout(t *testing.T) {
	requireShell(t)
	e := New(WithTimeout(100 * time.Millisecond))

	start := time.Now()
	r := e.Run(context.Background(), LocalHost, "sleep 5")
	if have, want := r.Outcome, TimedOut; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout not enforced")
	}
}
