package errcode

import "errors"

// Code is a stable, user-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Schema validation. Raised before any collaborator is called.
	MissingRequiredField Code = "missing_required_field"
	TypeMismatch         Code = "type_mismatch"
	InvalidSensorConfig  Code = "invalid_sensor_config"
	InvalidValue         Code = "invalid_value"
	UnknownKey           Code = "unknown_key"

	// Apply. Raised by a collaborator and passed through unchanged in meaning.
	ConstructFailed Code = "construct_failed"
	RegisterFailed  Code = "register_failed"
	SensorFailed    Code = "sensor_failed"
	DuplicateID     Code = "duplicate_id"

	// Runtime resources.
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
	Timeout    Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps a code together with the configuration key it concerns and a cause.
type E struct {
	C   Code
	Key string // dotted path, e.g. "power.accuracy_decimals"
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Key != "" {
		s += ": " + e.Key
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New returns an *E for key with a message.
func New(c Code, key, msg string) *E { return &E{C: c, Key: key, Msg: msg} }

// Wrap returns an *E for key carrying err as the cause.
func Wrap(c Code, key string, err error) *E { return &E{C: c, Key: key, Err: err} }

// Of extracts a Code from an error chain, defaulting to Error.
// The outermost coded error wins.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	for e := err; e != nil; e = errors.Unwrap(e) {
		if c, ok := e.(Code); ok {
			return c
		}
		if x, ok := e.(coder); ok {
			return x.Code()
		}
	}
	return Error
}

// KeyOf returns the configuration key carried by the first *E in the chain.
func KeyOf(err error) string {
	var e *E
	if errors.As(err, &e) {
		return e.Key
	}
	return ""
}
