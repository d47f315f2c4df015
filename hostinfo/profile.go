package hostinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/groob/plist"
)

// HardwareProfileCommand prints the macOS hardware overview as an XML plist.
const HardwareProfileCommand = "system_profiler SPHardwareDataType -xml"

// Hardware is some of the hardware overview reported by system_profiler.
type Hardware struct {
	MachineModel   string `plist:"machine_model"`
	MachineName    string `plist:"machine_name"`
	ChipType       string `plist:"chip_type,omitempty"`
	CPUType        string `plist:"cpu_type,omitempty"`
	PhysicalMemory string `plist:"physical_memory,omitempty"`
	SerialNumber   string `plist:"serial_number"`
}

// CPU returns the chip (Apple silicon) or CPU (Intel) description.
func (h *Hardware) CPU() string {
	if h.ChipType != "" {
		return h.ChipType
	}
	return h.CPUType
}

var ErrInvalidProfile = errors.New("invalid hardware profile")

// Validate tests a Hardware against basic validity of required fields.
func (h *Hardware) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: empty profile", ErrInvalidProfile)
	}
	if h.MachineModel == "" && h.SerialNumber == "" {
		return fmt.Errorf("%w: no model or serial number", ErrInvalidProfile)
	}
	return nil
}

type dataTypeReport struct {
	Items []Hardware `plist:"_items"`
}

// ParseHardwareProfile parses the output of HardwareProfileCommand.
func ParseHardwareProfile(b []byte) (*Hardware, error) {
	b = bytes.TrimSpace(b)
	if !bytes.HasPrefix(b, []byte("<?xml")) && !bytes.HasPrefix(b, []byte("bplist0")) {
		return nil, fmt.Errorf("%w: not a plist", ErrInvalidProfile)
	}
	var reports []dataTypeReport
	if err := plist.Unmarshal(b, &reports); err != nil {
		return nil, fmt.Errorf("unmarshal plist: %w", err)
	}
	for _, r := range reports {
		for i := range r.Items {
			if err := r.Items[i].Validate(); err == nil {
				return &r.Items[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no hardware items", ErrInvalidProfile)
}
