package config

import (
	"errors"
	"fmt"
)

// ErrorKind classifies document validation failures.
type ErrorKind uint8

const (
	KindDocument ErrorKind = iota
	KindMissingField
	KindConflict
	KindType
	KindUnknownField
	KindUpstreamURL
	KindTLSValue
)

func (k ErrorKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindMissingField:
		return "missing_field"
	case KindConflict:
		return "conflict"
	case KindType:
		return "type"
	case KindUnknownField:
		return "unknown_field"
	case KindUpstreamURL:
		return "upstream_url"
	case KindTLSValue:
		return "tls_value"
	default:
		return "unknown"
	}
}

// Error is a user-facing validation failure. Field is the dotted path of the
// offending value (e.g. "servers.app.static_files[1].spa").
type Error struct {
	Kind  ErrorKind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Msg
}

func errorf(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
