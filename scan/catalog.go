package scan

import (
	"github.com/micromdm/nanoprobe/hostinfo"
	"github.com/micromdm/nanoprobe/probe"
	"github.com/micromdm/nanoprobe/runner"
)

// Attribute names. These double as inventory storage keys for system facts.
const (
	AttrModel     = "model"
	AttrSerial    = "serial_number"
	AttrIMEI      = "imei"
	AttrBuildDate = "build_date"

	AttrCPU           = "cpu"
	AttrCPUArch       = "cpu_arch"
	AttrBrand         = "brand"
	AttrOSRelease     = "os_release"
	AttrSystemVersion = "system_version"
	AttrKernel        = "kernel"
	AttrMemory        = "memory"
	AttrStorage       = "storage"
	AttrBattery       = "battery"
)

var labels = map[string]string{
	AttrModel:         "Model",
	AttrSerial:        "Serial number",
	AttrIMEI:          "IMEI",
	AttrBuildDate:     "Build date",
	AttrCPU:           "CPU",
	AttrCPUArch:       "CPU architecture",
	AttrBrand:         "Brand",
	AttrOSRelease:     "OS release",
	AttrSystemVersion: "System version",
	AttrKernel:        "Kernel",
	AttrMemory:        "Memory",
	AttrStorage:       "Storage",
	AttrBattery:       "Battery",
}

// Label returns the operator-facing label of an attribute name.
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// MaxIMEIs is the number of IMEIs collected (one per SIM slot).
const MaxIMEIs = 2

// Attribute is one catalog entry: how to probe for a value and how to
// decide the value is acceptable.
type Attribute struct {
	Name     string
	Spec     probe.Spec
	Validate probe.Validator
}

// Catalog is the fixed set of attributes a scan resolves.
// System facts are resolved in slice order.
type Catalog struct {
	Model     Attribute
	Serial    Attribute
	IMEI      Attribute
	BuildDate Attribute
	System    []Attribute
}

var (
	remote = probe.Only(runner.RemoteDevice)
	local  = probe.Only(runner.LocalHost)
)

func fetch(f probe.Fetcher) probe.Probe {
	return probe.Probe{Fetch: f, Backends: local}
}

func cmd(command string, backends []runner.Backend) probe.Probe {
	return probe.Probe{Command: command, Backends: backends}
}

// DefaultCatalog builds the attribute catalog. Remote probes query the
// device property store and procfs over the bridge shell. Local probes
// run the same shell commands on the host and fall back to h.
func DefaultCatalog(h *hostinfo.Source) Catalog {
	c := Catalog{
		Model: Attribute{
			Name: AttrModel,
			Spec: append(probe.Commands(remote,
				"getprop ro.product.model",
				"getprop ro.product.device",
				"getprop ro.product.name",
				"getprop ro.build.product",
			), fetch(h.Model)),
			Validate: probe.Text,
		},
		Serial: Attribute{
			Name: AttrSerial,
			Spec: append(probe.Commands(remote,
				"getprop ro.serialno",
				"getprop sys.serialnumber",
			),
				cmd(`cat /proc/cmdline | grep -o "serialno=[^ ]*" | cut -d= -f2`, nil),
				fetch(h.Serial),
			),
			Validate: probe.Serial,
		},
		IMEI: Attribute{
			Name: AttrIMEI,
			Spec: append(probe.Commands(remote,
				"getprop gsm.imei",
				"getprop ril.imei",
				"getprop ro.ril.oem.imei",
			),
				// per-slot device IDs, then the generic subscriber info
				probe.Probe{Command: "service call iphonesubinfo 4 i32 0", Backends: remote, Prepare: probe.ParcelString},
				probe.Probe{Command: "service call iphonesubinfo 4 i32 1", Backends: remote, Prepare: probe.ParcelString},
				cmd(`dumpsys iphonesubinfo | grep "Device ID"`, nil),
				probe.Probe{Command: "service call iphonesubinfo 1", Prepare: probe.ParcelString},
			),
			Validate: probe.IMEI,
		},
		BuildDate: Attribute{
			Name: AttrBuildDate,
			Spec: probe.Spec{
				{Command: "getprop ro.build.date", Backends: remote, Verbatim: true},
				{Command: "uname -v", Backends: local, Verbatim: true},
			},
			Validate: probe.Text,
		},
	}

	c.System = []Attribute{
		{
			Name: AttrCPU,
			Spec: probe.Spec{
				cmd(`cat /proc/cpuinfo | grep "model name" | head -1`, nil),
				cmd(`cat /proc/cpuinfo | grep "Hardware" | head -1`, remote),
				cmd("getprop ro.soc.model", remote),
				cmd("getprop ro.board.platform", remote),
				fetch(h.CPUModel),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrCPUArch,
			Spec: probe.Spec{
				cmd("getprop ro.product.cpu.abi", remote),
				cmd("uname -m", local),
				fetch(h.Arch),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrBrand,
			Spec: probe.Spec{
				cmd("getprop ro.product.brand", remote),
				cmd("getprop ro.product.manufacturer", remote),
				cmd("cat /sys/devices/soc0/vendor", local),
				fetch(h.Vendor),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrOSRelease,
			Spec: probe.Spec{
				cmd("getprop ro.build.version.release", remote),
				{Command: "cat /proc/version", Backends: local, Verbatim: true},
				fetch(h.Platform),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrSystemVersion,
			Spec: probe.Spec{
				cmd("getprop ro.build.display.id", remote),
				cmd(`cat /etc/os-release | grep "PRETTY_NAME" | cut -d= -f2`, local),
				fetch(h.Platform),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrKernel,
			Spec: probe.Spec{
				cmd("uname -r", nil),
				fetch(h.Kernel),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrMemory,
			Spec: probe.Spec{
				cmd("cat /proc/meminfo | grep MemTotal", nil),
				fetch(h.MemTotal),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrStorage,
			Spec: probe.Spec{
				cmd("df -h /data | tail -1", remote),
				cmd("df -h / | tail -1", local),
				fetch(h.RootDisk),
			},
			Validate: probe.Text,
		},
		{
			Name: AttrBattery,
			Spec: probe.Spec{
				cmd("dumpsys battery | grep level", remote),
				cmd("cat /sys/class/power_supply/battery/capacity", local),
				cmd("cat /sys/class/power_supply/BAT0/capacity", local),
			},
			Validate: probe.Percent,
		},
	}
	return c
}
