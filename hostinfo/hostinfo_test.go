package hostinfo

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/micromdm/nanoprobe/runner/test"
)

const hardwareProfile = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<array>
	<dict>
		<key>_dataType</key>
		<string>SPHardwareDataType</string>
		<key>_items</key>
		<array>
			<dict>
				<key>_name</key>
				<string>hardware_overview</string>
				<key>chip_type</key>
				<string>Apple M2</string>
				<key>machine_model</key>
				<string>Mac14,2</string>
				<key>machine_name</key>
				<string>MacBook Air</string>
				<key>physical_memory</key>
				<string>16 GB</string>
				<key>platform_UUID</key>
				<string>9C1A6E2B-6E7E-5F3A-9A3B-3C1F0E8D7A11</string>
				<key>serial_number</key>
				<string>C02XK1ABJHD3</string>
			</dict>
		</array>
	</dict>
</array>
</plist>`

func TestParseHardwareProfile(t *testing.T) {
	h, err := ParseHardwareProfile([]byte(hardwareProfile))
	if err != nil {
		t.Fatal(err)
	}
	if have, want := h.SerialNumber, "C02XK1ABJHD3"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
	if have, want := h.MachineModel, "Mac14,2"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
	if have, want := h.CPU(), "Apple M2"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func TestParseHardwareProfileInvalid(t *testing.T) {
	for _, in := range []string{"", "Hardware:\n  Serial Number: X", `<?xml version="1.0"?><plist version="1.0"><array/></plist>`} {
		if _, err := ParseHardwareProfile([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestSerialDarwin(t *testing.T) {
	r := test.New().On(HardwareProfileCommand, test.Output(hardwareProfile))
	s := New(r)
	s.goos = "darwin"

	serial, err := s.Serial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if have, want := serial, "C02XK1ABJHD3"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func TestDarwinHardwareProfile(t *testing.T) {
	r := test.New().On(HardwareProfileCommand, test.Output(hardwareProfile))
	s := New(r)
	s.goos = "darwin"
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		fetch func(context.Context) (string, error)
		want  string
	}{
		{"cpu", s.CPUModel, "Apple M2"},
		{"memory", s.MemTotal, "16 GB"},
		{"model", s.Model, "Mac14,2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			have, err := tc.fetch(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if have != tc.want {
				t.Errorf("have: %q, want: %q", have, tc.want)
			}
		})
	}
}

func TestModelDarwinName(t *testing.T) {
	profile := strings.Replace(hardwareProfile, "<key>machine_model</key>\n\t\t\t\t<string>Mac14,2</string>", "", 1)
	r := test.New().On(HardwareProfileCommand, test.Output(profile))
	s := New(r)
	s.goos = "darwin"

	model, err := s.Model(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if have, want := model, "MacBook Air"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}
}

func fakeFS(files map[string]string) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		v, ok := files[name]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return []byte(v), nil
	}
}

func TestSerialLinux(t *testing.T) {
	s := New(test.New())
	s.goos = "linux"
	s.readFile = fakeFS(map[string]string{
		productSerialFile: "To be filled by O.E.M.\n",
		boardSerialFile:   "PF2ABCDE\n",
		productNameFile:   "ThinkPad X1 Carbon Gen 9\n",
	})
	ctx := context.Background()

	serial, err := s.Serial(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := serial, "PF2ABCDE"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}

	model, err := s.Model(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := model, "ThinkPad X1 Carbon Gen 9"; have != want {
		t.Errorf("have: %q, want: %q", have, want)
	}

	if _, err = s.Vendor(ctx); err == nil {
		t.Error("expected error for missing vendor")
	}
}

func TestUnsupported(t *testing.T) {
	s := New(test.New())
	s.goos = "plan9"
	if _, err := s.Serial(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, have: %v", err)
	}
}

func TestHumanBytes(t *testing.T) {
	for n, want := range map[uint64]string{
		512:                    "512B",
		2048:                   "2.0K",
		5 * 1024 * 1024 * 1024: "5.0G",
	} {
		if have := humanBytes(n); have != want {
			t.Errorf("%d: have: %q, want: %q", n, have, want)
		}
	}
}
