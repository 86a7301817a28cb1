package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies pipeline failures
type ErrorType string

const (
	TypeRetrieval        ErrorType = "retrieval"
	TypeAmbiguousArchive ErrorType = "ambiguous_archive"
	TypeDecode           ErrorType = "decode"
	TypeParse            ErrorType = "parse"
	TypeSchema           ErrorType = "schema"
	TypeTransform        ErrorType = "transform"
	TypePersistence      ErrorType = "persistence"
	TypeConfig           ErrorType = "config"
)

// Error is the typed error carried through the pipeline. Retrieval, archive,
// decode and parse errors stop a dataset; the rest are reported through a
// result status.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Type))
	b.WriteString("] ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error of the same type, so sentinel values such as
// ErrSchema work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Type == e.Type && (t.Op == "" || t.Op == e.Op)
}

// WithDetail attaches a detail and returns the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is checks by type
var (
	ErrRetrieval        = &Error{Type: TypeRetrieval}
	ErrAmbiguousArchive = &Error{Type: TypeAmbiguousArchive}
	ErrDecode           = &Error{Type: TypeDecode}
	ErrParse            = &Error{Type: TypeParse}
	ErrSchema           = &Error{Type: TypeSchema}
	ErrTransform        = &Error{Type: TypeTransform}
	ErrPersistence      = &Error{Type: TypePersistence}
	ErrConfig           = &Error{Type: TypeConfig}
)

// New creates a typed error
func New(errType ErrorType, op, message string, cause error) *Error {
	return &Error{Type: errType, Op: op, Message: message, Cause: cause}
}

// NewRetrievalError wraps the final transport failure after all attempts
func NewRetrievalError(url string, attempts int, cause error) *Error {
	return New(TypeRetrieval, "fetch", fmt.Sprintf("GET %s failed after %d attempt(s)", url, attempts), cause).
		WithDetail("url", url).
		WithDetail("attempts", attempts)
}

// NewAmbiguousArchiveError reports an archive without exactly one data file
func NewAmbiguousArchiveError(candidates []string) *Error {
	names := append([]string(nil), candidates...)
	sort.Strings(names)
	msg := "archive contains no qualifying .csv entry"
	if len(names) > 0 {
		msg = fmt.Sprintf("archive contains %d qualifying .csv entries: %s", len(names), strings.Join(names, ", "))
	}
	return New(TypeAmbiguousArchive, "fetch", msg, nil).WithDetail("candidates", names)
}

// NewDecodeError reports a payload that is not valid text or not a readable archive
func NewDecodeError(message string, cause error) *Error {
	return New(TypeDecode, "fetch", message, cause)
}

// NewParseError reports malformed tabular text
func NewParseError(message string, cause error) *Error {
	return New(TypeParse, "parse", message, cause)
}

// NewSchemaError reports columns missing from a table
func NewSchemaError(op string, missing []string) *Error {
	return New(TypeSchema, op, fmt.Sprintf("columns not found: %s", strings.Join(missing, ", ")), nil).
		WithDetail("missing", missing)
}

// NewTransformError reports a failure inside a transform
func NewTransformError(op, message string, cause error) *Error {
	return New(TypeTransform, op, message, cause)
}

// NewPersistenceError reports a failed write
func NewPersistenceError(path, message string, cause error) *Error {
	return New(TypePersistence, "save", message, cause).WithDetail("path", path)
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// IsFatal reports whether the error stops a dataset run
func IsFatal(err error) bool {
	t, ok := TypeOf(err)
	if !ok {
		return err != nil
	}
	switch t {
	case TypeRetrieval, TypeAmbiguousArchive, TypeDecode, TypeParse, TypeConfig:
		return true
	default:
		return false
	}
}
