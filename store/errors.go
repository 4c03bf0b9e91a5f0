package store

import "fmt"

// Code identifies a class of persistence failure.
type Code string

const (
	CodeNotFound Code = "NotFound"
	CodeConflict Code = "Conflict"
	CodeCorrupt  Code = "Corrupt"
	CodeInternal Code = "Internal"
)

// Error is the structured error type for this package.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// IsConflict reports whether err is a store.Error carrying CodeConflict,
// the signal a CAS-style update uses to report a lost race.
func IsConflict(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeConflict
}

// IsNotFound reports whether err is a store.Error carrying CodeNotFound.
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeNotFound
}
