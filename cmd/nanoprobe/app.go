package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/micromdm/nanoprobe/log/logkeys"
	"github.com/micromdm/nanoprobe/mode"
	"github.com/micromdm/nanoprobe/probe"
	"github.com/micromdm/nanoprobe/report"
	"github.com/micromdm/nanoprobe/runner"
	"github.com/micromdm/nanoprobe/scan"
	"github.com/micromdm/nanoprobe/token"

	"github.com/micromdm/nanolib/log"
)

const valueWidth = 40

// errQuit ends the menu loop.
var errQuit = errors.New("quit")

// app is the interactive menu and its actions.
type app struct {
	console  *Console
	session  *scan.Session
	detector *mode.Detector
	runner   runner.Runner
	outDir   string
	logger   log.Logger
	now      func() time.Time
}

// selectBackend asks the operator which backend to use.
func (a *app) selectBackend(context.Context) (runner.Backend, error) {
	a.console.Section("Select backend")
	a.console.Println("1. Device over adb (USB or network)")
	a.console.Println("2. Local host")
	n, err := a.console.Number("Choose (1-2): ", 2)
	if err != nil {
		return 0, err
	}
	if n == 2 {
		return runner.LocalHost, nil
	}
	return runner.RemoteDevice, nil
}

func (a *app) menu() {
	a.console.Println()
	a.console.Title("nanoprobe: device attribute probe")
	a.console.Hint("Backend: " + a.session.Backend().String())
	a.console.Println("1. Scan device information (with manufacture date inference)")
	a.console.Println("2. Generate unlock token")
	a.console.Println("3. Bootloader unlock (mode detection, dry run)")
	a.console.Println("4. Switch backend")
	a.console.Println("5. Exit")
}

// Run shows the menu until the operator exits or input ends.
func (a *app) Run(ctx context.Context) error {
	actions := map[int]func(context.Context) error{
		1: a.scan,
		2: a.unlockToken,
		3: a.bootloader,
		4: a.switchBackend,
		5: func(context.Context) error { return errQuit },
	}
	for {
		a.menu()
		n, err := a.console.Number("Choose (1-5): ", len(actions))
		if err != nil {
			return err
		}
		err = a.safely(ctx, n, actions[n])
		if errors.Is(err, errQuit) {
			a.console.Println("Goodbye.")
			return nil
		} else if errors.Is(err, io.EOF) {
			return err
		}
	}
}

// safely runs action n and reports its failure, including a panic, to the
// operator. Only errQuit and io.EOF are passed back to the menu loop.
func (a *app) safely(ctx context.Context, n int, action func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Info(logkeys.Message, "action panic", "action", n, logkeys.Error, fmt.Sprint(r))
			a.console.Error(fmt.Sprintf("Unexpected error: %v", r))
			err = nil
		}
	}()
	err = action(ctx)
	if err == nil || errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		return err
	}
	a.logger.Info(logkeys.Message, "action failed", "action", n, logkeys.Error, err)
	a.console.Error(err.Error())
	if errors.Is(err, mode.ErrUnreachable) {
		a.console.Hint("Check that the device is connected, USB debugging is authorized and drivers are installed.")
	}
	return nil
}

func (a *app) item(r probe.Result, label string) {
	a.console.Item(r.Validated, label, r.Display(valueWidth))
}

func (a *app) scan(ctx context.Context) error {
	if a.session.Backend() == runner.RemoteDevice {
		det := a.detector.Detect(ctx)
		if !det.Has(mode.Normal) {
			if len(det.Modes) > 0 {
				return fmt.Errorf("device is in %s mode: scanning needs a booted device", det.Modes[0])
			}
			return mode.ErrUnreachable
		}
		if det.Network != "" {
			a.console.Success("Connected over the network to " + det.Network)
		}
	}

	a.console.Println("Scanning device information...")
	r, err := a.session.Scan(ctx)
	if r == nil {
		return err
	}
	if err != nil {
		// history is a convenience: the report itself is still good
		a.console.Warn("Scan history not saved: " + err.Error())
	}

	a.console.Section("Key identifiers")
	a.item(r.Key.Model, scan.Label(scan.AttrModel))
	a.item(r.Key.Serial, scan.Label(scan.AttrSerial))
	for i, imei := range r.Key.IMEI {
		a.item(imei, fmt.Sprintf("IMEI%d", i+1))
	}
	a.console.Item(r.Manufacture.Known(), "Manufacture date", r.Manufacture.String()+" (inferred)")

	a.console.Section("System information")
	for _, res := range r.System {
		a.item(res, scan.Label(res.Name))
	}

	resolved, total := r.Counts()
	a.console.Println()
	a.console.Success(fmt.Sprintf("Scan complete: %d/%d items resolved", resolved, total))

	save, err := a.console.Confirm("Save the scan report to a file? (y/n): ", "y")
	if err != nil || !save {
		return err
	}
	path, err := report.WriteScan(a.outDir, r, a.now())
	if err != nil {
		return err
	}
	a.console.Success("Report saved to " + path)
	return nil
}

// defaults pre-fills unlock token fields from the last scan.
func (a *app) defaults() token.Fields {
	var f token.Fields
	r := a.session.Last()
	if r == nil {
		return f
	}
	if len(r.Key.IMEI) > 0 && r.Key.IMEI[0].Validated {
		f.IMEI = r.Key.IMEI[0].Value
	}
	if r.Key.Serial.Validated {
		f.Serial = r.Key.Serial.Value
	}
	if r.Key.Model.Validated {
		f.Model = r.Key.Model.Value
	}
	return f
}

func (a *app) unlockToken(context.Context) error {
	a.console.Section("Generate unlock token")
	a.console.Hint("Fill in the following. Press Enter to keep a value from the last scan.")

	def := a.defaults()
	var (
		f   token.Fields
		err error
	)
	checkIMEI := func(s string) error {
		return token.Fields{IMEI: s, Serial: "-", Model: "-", PurchaseDate: "-"}.Validate()
	}
	if f.IMEI, err = a.console.Required("IMEI (15 digits): ", def.IMEI, checkIMEI); err != nil {
		return err
	}
	if f.Serial, err = a.console.Required("Serial number: ", def.Serial, nil); err != nil {
		return err
	}
	if f.Model, err = a.console.Required("Full model name: ", def.Model, nil); err != nil {
		return err
	}
	if f.PurchaseDate, err = a.console.Required("Purchase date (YYYY-MM-DD): ", "", nil); err != nil {
		return err
	}
	if err = f.Validate(); err != nil {
		return err
	}

	tok := token.Generate(f)
	a.console.Println()
	a.console.Println(a.console.styles.token.Render("Unlock token: " + tok))
	a.console.Warn("This token is computed locally. It is not a vendor unlock code.")
	a.console.Warn("Unlocking a bootloader erases all data and may void the warranty.")

	path, err := report.WriteUnlock(a.outDir, f, tok, a.now())
	if err != nil {
		return err
	}
	a.console.Success("Token saved to " + path)
	return nil
}

// transition asks whether to reboot automatically or walks the operator
// through entering the bootloader by hand.
func (a *app) transition(ctx context.Context) error {
	a.console.Println("The device is booted normally. It has to be in bootloader mode to unlock.")
	auto, err := a.console.Confirm("Reboot into the bootloader automatically? (y/n): ", "y")
	if err != nil {
		return err
	}
	if auto {
		a.console.Println("Rebooting into the bootloader...")
		return a.detector.Reboot(ctx)
	}
	a.console.Println("Enter the bootloader by hand:")
	a.console.Println("1. Power the device off.")
	a.console.Println("2. Hold volume down and power.")
	a.console.Println("3. Release once the bootloader screen shows.")
	_, err = a.console.Prompt("Press Enter when done...")
	return err
}

func (a *app) bootloader(ctx context.Context) error {
	a.console.Section("Bootloader unlock")
	a.console.Println("Detecting device mode...")

	m, err := a.detector.PrepareBootloader(ctx, a.transition)
	if errors.Is(err, mode.ErrLowLevelLoader) {
		a.console.Warn("The device is in low-level loader (9008/EDL) mode. The bootloader cannot be unlocked from here.")
		a.console.Println("Leave the mode first: hold power for 10 seconds, or unplug and power on again.")
		return nil
	} else if err != nil {
		return err
	}
	a.console.Success("Device mode: " + m.Label())

	a.console.Println()
	a.console.Warn("WARNING: unlocking erases all data, may brick the device and may void the warranty.")
	ok, err := a.console.Confirm("Unlock the bootloader? (yes/no): ", "yes")
	if err != nil {
		return err
	}
	if !ok {
		a.console.Println("Cancelled.")
		return nil
	}
	code, err := a.console.Required("Unlock code: ", "", nil)
	if err != nil {
		return err
	}

	// dry run: the unlock command is shown, never sent
	steps := []string{
		"Checking bootloader connection",
		"Checking unlock code",
		"Unlock command (not sent): fastboot oem unlock " + code,
		"Wiping user data (skipped)",
	}
	for _, s := range steps {
		a.console.Printf("[%s] %s\n", a.now().Format("15:04:05"), s)
	}
	a.console.Success("Dry run complete. No unlock command was sent.")

	reboot, err := a.console.Confirm("Reboot the device to the system? (y/n): ", "y")
	if err != nil || !reboot {
		return err
	}
	res := a.runner.Run(ctx, runner.LocalHost, "fastboot reboot")
	if res.Outcome != runner.Success && res.Outcome != runner.Empty {
		return fmt.Errorf("reboot: %s", res.Message())
	}
	a.console.Success("Reboot requested.")
	return nil
}

func (a *app) switchBackend(ctx context.Context) error {
	b, err := a.selectBackend(ctx)
	if err != nil {
		return err
	}
	a.session.SetBackend(b)
	a.console.Success("Backend: " + b.String())
	return nil
}
