// Package logkeys defines some static logging keys for consistent structured logging output.
// Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	// the session backend, i.e. "adb" or "local".
	Backend = "backend"

	// in cases where we might need to log multiple device IDs but only
	// want to log the first (to avoid massive lists in logs).
	FirstID = "id_first"

	// an attribute being resolved, e.g. "serial_number".
	Attribute = "attribute"

	// index of a probe within its probe list.
	ProbeIndex = "probe"

	Command = "command"
	// the process actually started for a command.
	Invocation = "invocation"
	Outcome    = "outcome"

	ScanID = "scan_id"
	Mode   = "mode"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)
