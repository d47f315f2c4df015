// Package hostinfo reads hardware and system facts of the local host.
//
// Each method has the probe.Fetcher shape so it can serve as a native
// fallback probe after the shell commands of the local backend. Missing
// sources (containers, permissions, other platforms) are errors, which
// the resolver treats like any other failed probe.
package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/micromdm/nanoprobe/runner"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	productSerialFile = "/sys/class/dmi/id/product_serial"
	boardSerialFile   = "/sys/class/dmi/id/board_serial"
	productNameFile   = "/sys/class/dmi/id/product_name"
	sysVendorFile     = "/sys/class/dmi/id/sys_vendor"
)

var ErrUnsupported = errors.New("unsupported on this host")

// Source reads local host facts.
type Source struct {
	runner   runner.Runner
	goos     string
	readFile func(string) ([]byte, error)
	diskPath string
}

// New creates a new host fact source. r runs the macOS hardware profile command.
func New(r runner.Runner) *Source {
	return &Source{
		runner:   r,
		goos:     runtime.GOOS,
		readFile: os.ReadFile,
		diskPath: "/",
	}
}

// CPUModel returns the model name of the first CPU. On macOS the hardware
// profile's chip name is preferred.
func (s *Source) CPUModel(ctx context.Context) (string, error) {
	if s.goos == "darwin" {
		if h, err := s.hardware(ctx); err == nil && h.CPU() != "" {
			return h.CPU(), nil
		}
	}
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("cpu info: %w", err)
	}
	for _, i := range infos {
		if i.ModelName != "" {
			return i.ModelName, nil
		}
	}
	return "", errors.New("no cpu model name")
}

// Arch returns the kernel architecture, e.g. x86_64.
func (s *Source) Arch(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	return info.KernelArch, nil
}

// Kernel returns the kernel version.
func (s *Source) Kernel(ctx context.Context) (string, error) {
	return host.KernelVersionWithContext(ctx)
}

// Platform returns the OS platform and version, e.g. "ubuntu 22.04".
func (s *Source) Platform(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	return strings.TrimSpace(info.Platform + " " + info.PlatformVersion), nil
}

// MemTotal returns total physical memory in the /proc/meminfo style, or
// as the hardware profile reports it (e.g. "16 GB") on macOS.
func (s *Source) MemTotal(ctx context.Context) (string, error) {
	if s.goos == "darwin" {
		if h, err := s.hardware(ctx); err == nil && h.PhysicalMemory != "" {
			return h.PhysicalMemory, nil
		}
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("virtual memory: %w", err)
	}
	return fmt.Sprintf("%d kB", vm.Total/1024), nil
}

// RootDisk summarizes usage of the root filesystem.
func (s *Source) RootDisk(ctx context.Context) (string, error) {
	u, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return "", fmt.Errorf("disk usage: %w", err)
	}
	return fmt.Sprintf("%s %s used of %s (%.0f%%)", u.Path, humanBytes(u.Used), humanBytes(u.Total), u.UsedPercent), nil
}

// Serial returns the host hardware serial number.
func (s *Source) Serial(ctx context.Context) (string, error) {
	switch s.goos {
	case "darwin":
		h, err := s.hardware(ctx)
		if err != nil {
			return "", err
		}
		return h.SerialNumber, nil
	case "linux":
		if serial := s.dmi(productSerialFile); serial != "" {
			return serial, nil
		}
		if serial := s.dmi(boardSerialFile); serial != "" {
			return serial, nil
		}
		return "", errors.New("no dmi serial")
	}
	return "", ErrUnsupported
}

// Model returns the host hardware model.
func (s *Source) Model(ctx context.Context) (string, error) {
	switch s.goos {
	case "darwin":
		h, err := s.hardware(ctx)
		if err != nil {
			return "", err
		}
		if h.MachineModel == "" {
			return h.MachineName, nil
		}
		return h.MachineModel, nil
	case "linux":
		if name := s.dmi(productNameFile); name != "" {
			return name, nil
		}
		return "", errors.New("no dmi product name")
	}
	return "", ErrUnsupported
}

// Vendor returns the host hardware vendor.
func (s *Source) Vendor(ctx context.Context) (string, error) {
	switch s.goos {
	case "darwin":
		return "Apple", nil
	case "linux":
		if v := s.dmi(sysVendorFile); v != "" {
			return v, nil
		}
		return "", errors.New("no dmi vendor")
	}
	return "", ErrUnsupported
}

func (s *Source) hardware(ctx context.Context) (*Hardware, error) {
	res := s.runner.Run(ctx, runner.LocalHost, HardwareProfileCommand)
	if !res.OK() {
		return nil, fmt.Errorf("hardware profile: %s", res.Message())
	}
	return ParseHardwareProfile([]byte(res.Output))
}

// dmi reads a DMI sysfs value, discarding common OEM placeholders.
func (s *Source) dmi(path string) string {
	b, err := s.readFile(path)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(string(b))
	switch strings.ToLower(v) {
	case "0123456789", "system serial number", "to be filled by o.e.m.", "default string", "none":
		return ""
	}
	return v
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
