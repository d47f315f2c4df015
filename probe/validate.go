package probe

import (
	"regexp"
	"strconv"
	"strings"
)

// Validator decides whether a normalized probe output is an acceptable
// value for an attribute and returns the value to commit.
type Validator func(normalized string) (value string, ok bool)

var (
	digitRun    = regexp.MustCompile(`\d+`)
	serialShape = regexp.MustCompile(`^[A-Za-z0-9]{6,}$`)
)

// placeholders are values property stores report when they have nothing real.
var placeholders = map[string]bool{
	"unknown":                true,
	"none":                   true,
	"null":                   true,
	"n/a":                    true,
	"0123456789":             true,
	"0123456789abcdef":       true,
	"to be filled by o.e.m.": true,
	"system serial number":   true,
}

func isPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}

// IMEI accepts the first run of exactly 15 digits found in s.
// An all-zero IMEI is what radios without a SIM slot report.
func IMEI(s string) (string, bool) {
	for _, run := range digitRun.FindAllString(s, -1) {
		if len(run) != 15 {
			continue
		}
		if strings.Trim(run, "0") == "" {
			continue
		}
		return run, true
	}
	return "", false
}

// Serial accepts six or more alphanumerics after trimming leading
// "label value" and "key=value" decorations.
func Serial(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[len(fields)-1]
	}
	if i := strings.LastIndex(s, "="); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if !serialShape.MatchString(s) || isPlaceholder(s) {
		return "", false
	}
	return s, true
}

// Text accepts any value longer than two characters that is not a
// known placeholder.
func Text(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) <= 2 || isPlaceholder(s) {
		return "", false
	}
	return s, true
}

// Percent accepts a whole number from 0 to 100, such as a battery level,
// and renders it with a percent sign.
func Percent(s string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil || n < 0 || n > 100 {
		return "", false
	}
	return strconv.Itoa(n) + "%", true
}

// ParcelString decodes the UTF-16 string carried in a "service call"
// parcel dump. The dump prints each 16 bytes as hex words followed by a
// quoted ASCII rendering, where the string's characters appear separated
// by dots:
//
//	Result: Parcel(
//	  0x00000000: 00000000 0000000f 00350033 00380035 '........3.5.8.5.'
//	  0x00000010: 00320030 00300030 00350039 00360031 '0.2.0.0.9.5.1.6.'
//
// Anything that does not look like a parcel dump is returned unchanged.
func ParcelString(s string) string {
	if !strings.Contains(s, "Parcel(") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		start := strings.Index(line, "'")
		end := strings.LastIndex(line, "'")
		if start < 0 || end <= start {
			continue
		}
		for _, c := range line[start+1 : end] {
			if c != '.' && c != ' ' {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}
