// Package errors provides the unified error type and factory functions for
// AdsorpNET. Every layer of the application (domain, intelligence,
// infrastructure, interfaces) uses AppError as the single carrier for
// structured error information, enabling consistent CLI output, HTTP
// responses, gRPC statuses and logging.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stack capture
// ─────────────────────────────────────────────────────────────────────────────

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout AdsorpNET.
// It satisfies the standard error interface and supports error wrapping so
// that errors.Is / errors.As / errors.Unwrap work across all layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeArtifactNotFound, "unknown model key").WithDetail("key=" + key)
//	return errors.Wrap(err, errors.ErrCodeArtifactLoad, "failed to decode scaler")
//	return errors.FeatureMissing("Т.син., °С")
type AppError struct {
	// Code is the typed error code that identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (artifact keys, column names, etc.).
	Detail string

	// Cause is the underlying error that triggered this AppError.
	Cause error

	// Stack contains the call stack captured at creation. It is not part of
	// Error() output.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(e.Code.String())
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError carrying the same code. This lets
// package-level sentinels built with New be matched with errors.Is even after
// WithDetail produced a copy.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fluent builder methods
// ─────────────────────────────────────────────────────────────────────────────

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.
// If err is nil, Wrap returns nil.
//
// When err is already an *AppError and code is CodeUnknown the original code is
// preserved, so adding context never loses the domain classification.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			if ae.Code == code {
				return true
			}
			err = ae.Cause
			continue
		}
		return false
	}
	return false
}

// IsNotFound reports whether err's chain carries a not-found style code.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) || IsCode(err, ErrCodeArtifactNotFound) || IsCode(err, ErrCodePredictionNotFound)
}

// IsValidation reports whether err is a raw-input validation failure.
func IsValidation(err error) bool { return IsCode(err, ErrCodeValidation) }

// IsFeatureMissing reports whether err is a missing stage feature.
func IsFeatureMissing(err error) bool { return IsCode(err, ErrCodeFeatureMissing) }

// IsUnknownSubstance reports whether err is a molar-mass lookup miss.
func IsUnknownSubstance(err error) bool { return IsCode(err, ErrCodeUnknownSubstance) }

// IsArtifactNotFound reports whether err is an unknown artifact key.
func IsArtifactNotFound(err error) bool { return IsCode(err, ErrCodeArtifactNotFound) }

// IsArtifactLoad reports whether err is a missing or corrupt artifact file.
func IsArtifactLoad(err error) bool {
	return IsCode(err, ErrCodeArtifactLoad) || IsCode(err, ErrCodeArtifactShape)
}

// GetCode extracts the ErrorCode from the first *AppError found in err's chain.
// If no *AppError is present, CodeUnknown is returned.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience factory functions
// ─────────────────────────────────────────────────────────────────────────────

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Stack: captureStack(1)}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}

// NewInvalidInputError is the constructor the batch and config layers use for
// caller mistakes.
func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Stack: captureStack(1)}
}

// ValidationError reports raw measurements outside their declared range.
func ValidationError(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Stack: captureStack(1)}
}

// FeatureMissing reports a stage input column that is absent or null.
func FeatureMissing(stage, column string) *AppError {
	return &AppError{
		Code:    ErrCodeFeatureMissing,
		Message: "required feature missing",
		Detail:  fmt.Sprintf("stage=%s column=%q", stage, column),
		Stack:   captureStack(1),
	}
}

// UnknownSubstance reports a molar-mass lookup miss.
func UnknownSubstance(kind, name string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownSubstance,
		Message: "unknown substance",
		Detail:  fmt.Sprintf("%s=%q", kind, name),
		Stack:   captureStack(1),
	}
}

// ArtifactNotFound reports an unrecognised artifact key.
func ArtifactNotFound(kind, key string) *AppError {
	return &AppError{
		Code:    ErrCodeArtifactNotFound,
		Message: "artifact not registered",
		Detail:  fmt.Sprintf("%s=%q", kind, key),
		Stack:   captureStack(1),
	}
}

// ArtifactLoad wraps a failure to read or decode an artifact file.
func ArtifactLoad(err error, kind, key string) *AppError {
	return &AppError{
		Code:    ErrCodeArtifactLoad,
		Message: "artifact load failed",
		Detail:  fmt.Sprintf("%s=%q", kind, key),
		Cause:   err,
		Stack:   captureStack(1),
	}
}
