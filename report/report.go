// Package report writes scan reports and unlock token records as UTF-8
// text files.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/micromdm/nanoprobe/probe"
	"github.com/micromdm/nanoprobe/scan"
	"github.com/micromdm/nanoprobe/token"
)

// stamp is the timestamp layout of report filenames.
const stamp = "20060102_150405"

// File name prefixes.
const (
	ScanPrefix   = "device_scan_"
	UnlockPrefix = "unlock_code_"
)

var rule = strings.Repeat("=", 60)

var funcs = template.FuncMap{
	"label": scan.Label,
	"rule":  func() string { return rule },
	"time":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"inc":   func(i int) int { return i + 1 },

	"unavailable": func() string { return probe.Unavailable },
}

var scanTmpl = template.Must(template.New("scan").Funcs(funcs).Parse(`{{rule}}
Device scan report
{{rule}}
Scan ID:      {{.ID}}
Scanned at:   {{time .Started}}
Backend:      {{.Backend}}
------------------------------------------------------------

[Key identifiers]
----------------------------------------
{{label .Key.Model.Name}}: {{.Key.Model.Value}}
{{label .Key.Serial.Name}}: {{.Key.Serial.Value}}
{{range $i, $r := .Key.IMEI}}IMEI{{inc $i}}: {{$r.Value}}
{{end}}{{label .Key.BuildDate.Name}}: {{.Key.BuildDate.Value}}
Manufacture date (inferred): {{.Manufacture}}

[System information]
----------------------------------------
{{range .System}}{{label .Name}}: {{.Value}}
{{end}}
{{rule}}
Notes:
1. The manufacture date is inferred from the serial number or build date and is not authoritative.
2. IMEI and serial number identify this device. Keep them private.
3. Values marked "{{unavailable}}" could not be read from the device.
`))

var unlockTmpl = template.Must(template.New("unlock").Funcs(funcs).Parse(`{{rule}}
Unlock token record
{{rule}}
Generated at: {{time .Now}}
IMEI:          {{.Fields.IMEI}}
Serial number: {{.Fields.Serial}}
Model:         {{.Fields.Model}}
Purchase date: {{.Fields.PurchaseDate}}
Token:         {{.Token}}
{{rule}}
Notes:
1. This token is computed locally for demonstration. It is not a vendor unlock code.
2. Unlocking a bootloader erases all user data and may void the warranty.
3. Keep this file private.
`))

// Filename returns the file name for prefix at now.
func Filename(prefix string, now time.Time) string {
	return prefix + now.Format(stamp) + ".txt"
}

func write(dir, name string, tmpl *template.Template, data interface{}) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}
	if err = tmpl.Execute(f, data); err != nil {
		f.Close()
		return path, fmt.Errorf("writing report: %w", err)
	}
	if err = f.Close(); err != nil {
		return path, fmt.Errorf("closing report: %w", err)
	}
	return path, nil
}

// WriteScan writes r into dir and returns the path written.
func WriteScan(dir string, r *scan.Report, now time.Time) (string, error) {
	if r == nil {
		return "", errors.New("writing report: no scan")
	}
	return write(dir, Filename(ScanPrefix, now), scanTmpl, r)
}

// WriteUnlock writes the token record into dir and returns the path written.
func WriteUnlock(dir string, f token.Fields, tok string, now time.Time) (string, error) {
	return write(dir, Filename(UnlockPrefix, now), unlockTmpl, struct {
		Now    time.Time
		Fields token.Fields
		Token  string
	}{now, f, tok})
}
