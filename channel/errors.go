package channel

import "fmt"

// Code identifies a class of channel state-machine failure, matching the
// ErrorCode values a peer can report on the wire (spec.md §4.2, §7).
type Code string

const (
	CodeNotFound      Code = "NotFound"
	CodeNonce         Code = "ChannelNonce"
	CodeState         Code = "ChannelState"
	CodeConservation  Code = "Conservation"
	CodeInsufficient  Code = "InsufficientBalance"
	CodeBadSignature  Code = "BadSignature"
	CodeInternal      Code = "Internal"
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
