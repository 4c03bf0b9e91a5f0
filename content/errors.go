package content

// Code enumerates the content package's error categories.
type Code string

const (
	// CodeNotFound covers both "no such manifest" and "visibility denies
	// this requester" — the two must be indistinguishable to callers so
	// that a private manifest's existence is never leaked (spec.md §7).
	CodeNotFound     Code = "not_found"
	CodeInvalid      Code = "invalid"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// Error is the content package's structured error type.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// IsNotFound reports whether err is a content.Error with CodeNotFound.
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeNotFound
}
