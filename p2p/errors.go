package p2p

import "fmt"

// Code identifies a class of p2p-layer failure.
type Code string

const (
	CodeHandshake    Code = "Handshake"
	CodeRateLimited  Code = "RateLimited"
	CodeUnknownPeer  Code = "UnknownPeer"
	CodeInternal     Code = "Internal"
)

// Error is this package's structured error type.
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
