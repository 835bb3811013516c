// Package dagerr implements the structured error taxonomy of §7: kinds
// propagated as typed values rather than ad hoc strings, so tool-visible
// failures convert cleanly to a {error_kind, message} tool message and the
// engine can tell a caller mistake from a programming-error panic.
package dagerr

import (
	"errors"
	"fmt"
)

// Kind groups the error families named in §7.
type Kind string

const (
	KindPath     Kind = "PathError"
	KindEdit     Kind = "EditError"
	KindBackend  Kind = "BackendError"
	KindTool     Kind = "ToolError"
	KindSubAgent Kind = "SubAgentError"
	KindModel    Kind = "ModelError"
	KindState    Kind = "StateError"
)

// Code is a specific reason within a Kind.
type Code string

const (
	// PathError
	CodeNotAbsolute    Code = "NotAbsolute"
	CodeTraversal      Code = "Traversal"
	CodeOutsideRoot    Code = "PathOutsideRoot"
	CodeNotFound       Code = "NotFound"
	CodeIsDirectory    Code = "IsDirectory"
	CodeNotDirectory   Code = "NotDirectory"

	// EditError
	CodeOldNotFound    Code = "OldNotFound"
	CodeOldNotUnique   Code = "OldNotUnique"
	CodeEmptyOldString Code = "EmptyOldString"
	CodeNoChange       Code = "NoChange"

	// BackendError
	CodeIOError               Code = "IOError"
	CodePermissionDenied      Code = "PermissionDenied"
	CodeCapabilityUnavailable Code = "CapabilityUnavailable"

	// ToolError
	CodeUnknownTool  Code = "UnknownTool"
	CodeBadArguments Code = "BadArguments"
	CodeTimeout      Code = "Timeout"
	CodeCancelled    Code = "Cancelled"
	CodeRejected     Code = "Rejected"

	// SubAgentError
	CodeUnknownSubAgent   Code = "UnknownSubAgent"
	CodeCompilationFailed Code = "CompilationFailed"
	CodeChildFailed       Code = "ChildFailed"

	// ModelError
	CodeTransport       Code = "Transport"
	CodeRateLimited     Code = "RateLimited"
	CodeInvalidResponse Code = "InvalidResponse"

	// StateError
	CodeDanglingToolCall Code = "DanglingToolCall"
)

// Error is the common structured error value every taxonomy member wraps.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s.%s: %s", e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s", e.Kind, e.Code, e.Err.Error())
	}
	return fmt.Sprintf("%s.%s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a taxonomy error.
func New(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind/code to an underlying error.
func Wrap(kind Kind, code Code, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// As reports whether err is a dagerr.Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is a dagerr.Error of the given kind and code.
func Is(err error, kind Kind, code Code) bool {
	e, ok := As(err)
	return ok && e.Kind == kind && e.Code == code
}
