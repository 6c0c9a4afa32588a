package errcode

// Code is a stable identifier for how a bootloader session ended.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Normal ends.
	Quit    Code = "quit"    // host sent the QUIT sentinel
	Timeout Code = "timeout" // no host before the inactivity alarm

	// Configuration errors: no session runs.
	MissingCapability Code = "missing_capability"
	InvalidConfig     Code = "invalid_config"

	// Protocol violations: session aborted.
	Checksum           Code = "checksum"
	UnsupportedCommand Code = "unsupported_command"

	Cancelled Code = "cancelled"

	Error Code = "error" // generic fallback
)

// Normal reports whether a session that ended with c counts as a normal end.
func Normal(c Code) bool {
	switch c {
	case OK, Quit, Timeout:
		return true
	}
	return false
}

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
