package settlement

import "fmt"

// Code identifies a class of settlement failure.
type Code string

const (
	CodeNotFound Code = "NotFound"
	CodeBackend  Code = "Backend"
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
