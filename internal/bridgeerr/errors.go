// Package bridgeerr defines the error taxonomy shared by the module binding
// and the method router.
//
// Every failure that can reach a caller carries a Kind. The router turns the
// Kind into a machine-readable response code and the rest of the error into
// the human-readable message:
//
//	err := bridgeerr.ExportNotFound("SearchSpotify", cause)
//	errors.Is(err, bridgeerr.ErrExportNotFound) // true
//	bridgeerr.KindOf(err).Code()                // "EXPORT_NOT_FOUND"
package bridgeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a bridge failure.
type Kind string

const (
	KindModuleLoad         Kind = "module_load_failure" // module absent or incompatible
	KindExportNotFound     Kind = "export_not_found"    // symbol missing from a loaded module
	KindBackendUnavailable Kind = "backend_unavailable" // module never loaded or already unloaded
	KindInvalidArgument    Kind = "invalid_argument"    // call payload has the wrong shape
	KindNativeFailure      Kind = "native_failure"      // failure raised on the native call path
)

// Code returns the response code reported to callers, e.g. "EXPORT_NOT_FOUND".
func (k Kind) Code() string {
	return strings.ToUpper(string(k))
}

// Error is the structured error type used throughout the bridge.
type Error struct {
	Cause  error
	Kind   Kind
	Export string
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message()
}

// Message returns the error text without the kind prefix.
func (e *Error) Message() string {
	var b strings.Builder
	b.WriteString(e.Detail)
	if e.Cause != nil {
		if b.Len() > 0 {
			b.WriteString(" (caused by: ")
			b.WriteString(e.Cause.Error())
			b.WriteByte(')')
		} else {
			b.WriteString(e.Cause.Error())
		}
	}
	if b.Len() == 0 {
		return string(e.Kind)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrModuleLoad         = &Error{Kind: KindModuleLoad}
	ErrExportNotFound     = &Error{Kind: KindExportNotFound}
	ErrBackendUnavailable = &Error{Kind: KindBackendUnavailable}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrNativeFailure      = &Error{Kind: KindNativeFailure}
)

// ModuleLoad reports that the module at path could not be loaded.
func ModuleLoad(path string, cause error) *Error {
	return &Error{
		Kind:   KindModuleLoad,
		Detail: fmt.Sprintf("failed to load native module %s", path),
		Cause:  cause,
	}
}

// ExportNotFound reports that export is missing from the loaded module.
func ExportNotFound(export string, cause error) *Error {
	return &Error{
		Kind:   KindExportNotFound,
		Export: export,
		Detail: "function not found: " + export,
		Cause:  cause,
	}
}

// Unavailable reports a call against a module that is not loaded. cause is
// the underlying load failure, if any.
func Unavailable(export string, cause error) *Error {
	return &Error{
		Kind:   KindBackendUnavailable,
		Export: export,
		Detail: "native module not loaded",
		Cause:  cause,
	}
}

// InvalidArgument reports a call whose payload does not fit its method.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{
		Kind:   KindInvalidArgument,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Native reports a failure raised while invoking export.
func Native(export string, cause error) *Error {
	return &Error{
		Kind:   KindNativeFailure,
		Export: export,
		Detail: "native call " + export + " failed",
		Cause:  cause,
	}
}

// KindOf returns the Kind of err. Errors outside the taxonomy are native
// failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNativeFailure
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
