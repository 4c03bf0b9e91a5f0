package query

import "fmt"

// Code identifies a class of query-protocol failure, mirroring the wire
// ErrorCode values a peer reports back to a requester (spec.md §4.6, §7).
type Code string

const (
	CodeNotFound     Code = "NotFound"
	CodeChannelState Code = "ChannelState"
	CodeConservation Code = "Conservation"
	CodePriceMismatch Code = "InsufficientBalance"
	CodeBadSignature Code = "BadSignature"
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
