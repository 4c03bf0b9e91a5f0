package crypto

import "fmt"

// Code identifies a class of cryptographic failure, per spec §4.1.
type Code string

const (
	InvalidKeyLength           Code = "InvalidKeyLength"
	InvalidPeerIdFormat        Code = "InvalidPeerIdFormat"
	InvalidPeerIdPrefix        Code = "InvalidPeerIdPrefix"
	InvalidBase58               Code = "InvalidBase58"
	SignatureVerificationFailed Code = "SignatureVerificationFailed"
)

// Error is the structured error type for every fallible operation in this
// package. Callers that need to branch on failure kind should use
// errors.As and inspect Code.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}
