// Package errs defines the error kinds shared by ingestion and question answering.
// Errors keep their kind while they travel up the stack; only the outermost caller
// turns them into text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration is a missing credential or a missing vector store directory.
	KindConfiguration
	// KindExtraction is a document that could not be decoded or parsed.
	KindExtraction
	// KindProvider is a failed embedding or language model call, including malformed responses.
	KindProvider
	// KindValidation is a bad request, e.g. an empty question.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindExtraction:
		return "extraction"
	case KindProvider:
		return "provider"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a kinded error. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E wraps err with a kind and operation. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with a formatted message.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the innermost description without the op prefixes.
func (e *Error) Message() string {
	var inner *Error
	if errors.As(e.Err, &inner) {
		return inner.Message()
	}
	return e.Err.Error()
}

// KindOf returns the kind of the outermost kinded error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
