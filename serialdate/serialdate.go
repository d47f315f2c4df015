// Package serialdate infers a manufacture date from a device serial number.
//
// The decoding is a best-effort heuristic for one vendor's 17-character
// serial scheme: the year, month and day of manufacture sit at fixed
// offsets. Nothing documents the scheme, so every result is an inference
// and is labelled as such.
package serialdate

import (
	"fmt"
	"regexp"
	"strconv"
)

// SerialLength is the only serial length the offset scheme applies to.
const SerialLength = 17

const (
	yearOffset  = 6
	monthOffset = 7
	dayOffset   = 8
)

// yearCodes maps the year code character to a calendar year.
var yearCodes = map[byte]int{
	'8': 2018, '9': 2019, '0': 2020,
	'1': 2021, '2': 2022, '3': 2023,
	'4': 2024, '5': 2025, '6': 2026,
	'7': 2027,
}

// buildDate matches build timestamps like "Mon Jan 15 10:30:00 CST 2024".
var buildDate = regexp.MustCompile(`\w{3}\s+\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\w{3,5}\s+(\d{4})`)

// Precision is how much of a Date could be inferred.
type Precision int

const (
	Undeterminable Precision = iota
	// ApproxYear is a year taken from the build timestamp, not the serial.
	ApproxYear
	Year
	YearMonth
	Full
)

func (p Precision) String() string {
	switch p {
	case Full:
		return "full"
	case YearMonth:
		return "year-month"
	case Year:
		return "year"
	case ApproxYear:
		return "approximate-year"
	}
	return "undeterminable"
}

// Date is an inferred manufacture date. Only the fields implied by
// Precision are meaningful.
type Date struct {
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	Day       int       `json:"day,omitempty"`
	Precision Precision `json:"precision"`
}

// Known reports whether anything could be inferred.
func (d Date) Known() bool {
	return d.Precision != Undeterminable
}

func (d Date) String() string {
	switch d.Precision {
	case Full:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	case YearMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case Year:
		return fmt.Sprintf("%04d", d.Year)
	case ApproxYear:
		return fmt.Sprintf("~%04d (approx.)", d.Year)
	}
	return "undeterminable"
}

// Decode infers a manufacture date from serial, falling back to the year
// of buildDateText. It never fails: unparseable input degrades to the
// next weaker result and finally to Undeterminable.
func Decode(serial, buildDateText string) Date {
	if d := fromSerial(serial); d.Known() {
		return d
	}
	return fromBuildDate(buildDateText)
}

func fromSerial(serial string) Date {
	if len(serial) != SerialLength {
		return Date{}
	}
	year, ok := yearCodes[serial[yearOffset]]
	if !ok {
		return Date{}
	}
	month, err := strconv.Atoi(serial[monthOffset : monthOffset+1])
	if err != nil || month < 1 || month > 12 {
		return Date{Year: year, Precision: Year}
	}
	day, err := strconv.Atoi(serial[dayOffset : dayOffset+2])
	if err != nil || day < 1 || day > 31 {
		return Date{Year: year, Month: month, Precision: YearMonth}
	}
	return Date{Year: year, Month: month, Day: day, Precision: Full}
}

func fromBuildDate(text string) Date {
	m := buildDate.FindStringSubmatch(text)
	if len(m) < 2 {
		return Date{}
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Date{}
	}
	return Date{Year: year, Precision: ApproxYear}
}
