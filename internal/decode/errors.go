package decode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danferreira/gannounce/internal/bencode"
)

// Kinds of decoding failure. Every error returned by this package, and by
// the decoders built on it, matches exactly one of these with errors.Is.
var (
	ErrMissingField    = errors.New("missing field")
	ErrNotADict        = errors.New("not a dict")
	ErrNotAList        = errors.New("not a list")
	ErrNotANumber      = errors.New("not a number")
	ErrNotAString      = errors.New("not a string")
	ErrInvalidValue    = errors.New("invalid value")
	ErrIO              = errors.New("io error")
	ErrParse           = errors.New("parse error")
	ErrUnsupportedMode = errors.New("unsupported mode")
)

// Error is a decoding failure. Field is the dotted path of the offending
// node relative to the document root, e.g. "info.files[1].path".
type Error struct {
	Field  string
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Errorf builds an error of the given kind with a formatted detail.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Invalid reports a well-typed field whose value breaks a constraint.
func Invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Kind: ErrInvalidValue, Detail: fmt.Sprintf(format, args...)}
}

// IO maps a failure to read the document into the taxonomy.
func IO(err error) *Error {
	return &Error{Kind: ErrIO, Err: err}
}

// At prefixes the field path of err with name. Errors from outside the
// taxonomy are classified as invalid values.
func At(name string, err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if !errors.As(err, &de) {
		return &Error{Field: name, Kind: ErrInvalidValue, Err: err}
	}

	cp := *de
	cp.Field = join(name, de.Field)

	return &cp
}

func join(parent, child string) string {
	switch {
	case child == "":
		return parent
	case parent == "":
		return child
	case strings.HasPrefix(child, "["):
		return parent + child
	}

	return parent + "." + child
}

func mismatch(kind error, v *bencode.Value) *Error {
	if v == nil {
		return &Error{Kind: kind, Detail: "got nothing"}
	}

	return &Error{Kind: kind, Detail: "got " + v.Kind.String()}
}
