// Package convert holds the error taxonomy shared by the export and import
// engines and the table codec.
//
// Every fatal condition is reported as a *Error carrying a Kind and, where
// known, the table file, the 1-based line, and the feature or column the
// failure is about. Callers classify with KindOf or errors.As:
//
//	var cerr *convert.Error
//	if errors.As(err, &cerr) && cerr.Kind == convert.KindIdentity {
//	    fmt.Println(cerr.File, cerr.Line)
//	}
package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies conversion failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a bad delimiter, quote character, charset or line separator.
	KindConfig
	// KindFileName is a table whose name does not map to a known type.
	KindFileName
	// KindParse is a malformed or unreadable table.
	KindParse
	// KindIdentity is an identifier that is malformed or cannot be resolved.
	KindIdentity
	// KindType is a cell that cannot be coerced to the feature type.
	KindType
	// KindUnknownFeature is a column with no matching feature.
	KindUnknownFeature
	// KindIO is a filesystem failure.
	KindIO
	// KindConflict is an expected output name already taken by something else.
	KindConflict
	// KindCanceled is an operator cancellation.
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindConfig:         "config",
	KindFileName:       "file-name",
	KindParse:          "parse",
	KindIdentity:       "identity",
	KindType:           "type",
	KindUnknownFeature: "unknown-feature",
	KindIO:             "io",
	KindConflict:       "conflict",
	KindCanceled:       "canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Sentinel errors.
var (
	// ErrCanceled is returned when the operator cancels a running conversion.
	ErrCanceled = errors.New("operation canceled")

	// ErrNoRoot is returned when the node handed to an engine is not
	// attached to any root.
	ErrNoRoot = errors.New("node is not attached to a root")
)

// Error is a classified conversion failure.
type Error struct {
	Kind Kind

	File     string
	Line     int
	Feature  string
	Column   string
	Expected string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			b.WriteString(" (line ")
			b.WriteString(strconv.Itoa(e.Line))
			b.WriteString(")")
		}
		b.WriteString(": ")
	}
	if e.Column != "" {
		b.WriteString("column ")
		b.WriteString(e.Column)
		b.WriteString(": ")
	}
	if e.Feature != "" {
		b.WriteString("feature ")
		b.WriteString(e.Feature)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String() + " error")
	}
	if e.Expected != "" {
		b.WriteString(" (expected ")
		b.WriteString(e.Expected)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates an Error of the given kind with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. An err that is already a *Error keeps its kind and
// only gains missing context.
func Wrap(kind Kind, err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	return &Error{Kind: kind, Err: err}
}

// At fills in the file and line if they are not already set.
func (e *Error) At(file string, line int) *Error {
	if e.File == "" {
		e.File = file
	}
	if e.Line == 0 {
		e.Line = line
	}
	return e
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCanceled) {
		return KindCanceled
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

// IsCanceled reports whether err stems from an operator cancellation.
func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled
}

// IsFatal reports whether err must abort a conversion. Cancellation is a
// clean abort and is not fatal.
func IsFatal(err error) bool {
	return err != nil && !IsCanceled(err)
}

// IsUserError reports whether err is caused by table content or settings
// the operator can fix, as opposed to the environment.
func IsUserError(err error) bool {
	switch KindOf(err) {
	case KindConfig, KindFileName, KindParse, KindIdentity, KindType, KindUnknownFeature:
		return true
	}
	return false
}
