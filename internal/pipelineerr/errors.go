// Package pipelineerr unifies the error taxonomy every pipeline stage uses
// (spec.md §7). Per-file failures are values, not panics or thrown
// exceptions: a stage returns one of these alongside a nil result, logs it,
// and emits a matching event; only a handful of fatal conditions propagate
// past the orchestrator.
package pipelineerr

import "fmt"

// Code identifies which taxonomy entry an Error belongs to.
type Code int

const (
	CodeAccessDenied Code = iota
	CodeNotFound
	CodeUnsupportedMedia
	CodeDecodeFailure
	CodeIndexConflict
	CodeAtomicWriteFailed
	CodeTransactionNotFound
	CodeIncompleteTransaction
	CodeStateMismatch
	CodeManagedLibraryRefusal
	CodeCancelled
	CodeInsufficientSpace
)

func (c Code) String() string {
	switch c {
	case CodeAccessDenied:
		return "AccessDenied"
	case CodeNotFound:
		return "NotFound"
	case CodeUnsupportedMedia:
		return "UnsupportedMedia"
	case CodeDecodeFailure:
		return "DecodeFailure"
	case CodeIndexConflict:
		return "IndexConflict"
	case CodeAtomicWriteFailed:
		return "AtomicWriteFailed"
	case CodeTransactionNotFound:
		return "TransactionNotFound"
	case CodeIncompleteTransaction:
		return "IncompleteTransaction"
	case CodeStateMismatch:
		return "StateMismatch"
	case CodeManagedLibraryRefusal:
		return "ManagedLibraryRefusal"
	case CodeCancelled:
		return "Cancelled"
	case CodeInsufficientSpace:
		return "InsufficientSpace"
	default:
		return "Unknown"
	}
}

// Error is a structured pipeline error. Path and Stage are optional context;
// Retryable is set on IndexConflict errors; fileindex's retry loop detects
// conflicts from the driver's error text and does not read this field.
type Error struct {
	Code      Code
	Path      string
	Stage     string
	Guidance  string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Guidance != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Guidance)
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func AccessDenied(path string, err error) *Error {
	return &Error{Code: CodeAccessDenied, Path: path, Err: err}
}

func NotFound(path string) *Error {
	return &Error{Code: CodeNotFound, Path: path}
}

func UnsupportedMedia(path string) *Error {
	return &Error{Code: CodeUnsupportedMedia, Path: path}
}

func DecodeFailure(path, stage string, err error) *Error {
	return &Error{Code: CodeDecodeFailure, Path: path, Stage: stage, Err: err}
}

func IndexConflict(err error) *Error {
	return &Error{Code: CodeIndexConflict, Retryable: true, Err: err}
}

func AtomicWriteFailed(path string, err error) *Error {
	return &Error{Code: CodeAtomicWriteFailed, Path: path, Err: err}
}

func TransactionNotFound() *Error {
	return &Error{Code: CodeTransactionNotFound}
}

func IncompleteTransaction(reason string) *Error {
	return &Error{Code: CodeIncompleteTransaction, Guidance: reason}
}

func StateMismatch(reason string) *Error {
	return &Error{Code: CodeStateMismatch, Guidance: reason}
}

func ManagedLibraryRefusal(path, guidance string) *Error {
	return &Error{Code: CodeManagedLibraryRefusal, Path: path, Guidance: guidance}
}

func Cancelled() *Error {
	return &Error{Code: CodeCancelled}
}

func InsufficientSpace(path string, err error) *Error {
	return &Error{Code: CodeInsufficientSpace, Path: path, Err: err}
}

// Is reports whether err is a pipelineerr.Error of the given code, so callers
// can branch without importing sentinel values (errors.As-friendly).
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if pe, ok := err.(*Error); ok {
			e = pe
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == code
}
