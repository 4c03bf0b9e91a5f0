package wire

import "fmt"

// Code identifies a class of wire-decoding failure (spec.md §4.2, §7).
type Code string

const (
	ErrUnknownMagic       Code = "UnknownMagic"
	ErrUnsupportedVersion Code = "UnsupportedVersion"
	ErrLengthMismatch     Code = "LengthMismatch"
	ErrTruncatedPayload   Code = "TruncatedPayload"
	ErrTimestampSkew      Code = "TimestampSkew"
	ErrSignatureFailed    Code = "SignatureFailed"
	ErrNonCanonicalCBOR   Code = "NonCanonicalCBOR"
	ErrOversizeFrame      Code = "OversizeFrame"
	ErrUndersizeFrame     Code = "UndersizeFrame"
)

// FormatError is returned for any frame that MUST be rejected per spec.md
// §4.2. Decoding errors of this kind drop the frame; they never panic.
type FormatError struct {
	Code Code
	Msg  string
}

func (e *FormatError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func fmterr(code Code, msg string) error {
	return &FormatError{Code: code, Msg: msg}
}
