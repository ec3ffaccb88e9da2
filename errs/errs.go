// Package errs defines the structured error kinds raised by every
// library package. The CLI layer (cmd/tacl) maps a Kind to an exit code
// and a one-line stderr message; it does not print a Go stack trace,
// with or without --verbose.
package errs

import "fmt"

// Kind identifies one of the error categories a caller must be able to
// distinguish programmatically (e.g. to decide an exit code).
type Kind int

const (
	// KindConfiguration covers invalid flag combinations, missing
	// required files and unreadable catalogues.
	KindConfiguration Kind = iota
	// KindCorpusValidation means DataStore contents do not match the
	// corpus currently on disk.
	KindCorpusValidation
	// KindMalformedResults means an input results CSV is missing a
	// required column or carries a non-integer count/size.
	KindMalformedResults
	// KindCatalogueConflict means a catalogue file lists the same work
	// twice with inconsistent labels.
	KindCatalogueConflict
	// KindBadSizeRange means an n-gram size is below 1 or max < min.
	KindBadSizeRange
	// KindIO covers file/database access failures.
	KindIO
	// KindInternal means an invariant the code relies on was violated.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindCorpusValidation:
		return "CorpusValidationError"
	case KindMalformedResults:
		return "MalformedResults"
	case KindCatalogueConflict:
		return "CatalogueConflict"
	case KindBadSizeRange:
		return "BadSizeRange"
	case KindIO:
		return "IOError"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Error is the structured error type carried across package boundaries.
// Context is a Kind-dependent free-form detail (a path, a column name, a
// violated invariant's name) that the CLI appends to its one-line
// message.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Context == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
		}
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

func Configuration(context string) *Error { return newError(KindConfiguration, context, nil) }

func CorpusValidation(path string) *Error { return newError(KindCorpusValidation, path, nil) }

func MalformedResults(column string) *Error { return newError(KindMalformedResults, column, nil) }

func CatalogueConflict(work string) *Error { return newError(KindCatalogueConflict, work, nil) }

func BadSizeRange(context string) *Error { return newError(KindBadSizeRange, context, nil) }

func IO(path string, cause error) *Error { return newError(KindIO, path, cause) }

// Internal wraps a violated invariant's name (e.g. "I2") so callers and
// bug reports can cite it directly.
func Internal(invariant string) *Error { return newError(KindInternal, invariant, nil) }

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if v, ok := err.(*Error); ok {
			e = v
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
