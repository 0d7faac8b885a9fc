package gpu

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNoPlatformAvailable
	KindNoDeviceAvailable
	KindContextCreationFailed
	KindSourceUnavailable
	KindBuildError
	KindAllocationError
	KindTransferError
	KindInvalidWorkSize
	KindDispatchError
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoPlatformAvailable:
		return "NoPlatformAvailable"
	case KindNoDeviceAvailable:
		return "NoDeviceAvailable"
	case KindContextCreationFailed:
		return "ContextCreationFailed"
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindBuildError:
		return "BuildError"
	case KindAllocationError:
		return "AllocationError"
	case KindTransferError:
		return "TransferError"
	case KindInvalidWorkSize:
		return "InvalidWorkSize"
	case KindDispatchError:
		return "DispatchError"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNoPlatformAvailable   = &Error{Kind: KindNoPlatformAvailable}
	ErrNoDeviceAvailable     = &Error{Kind: KindNoDeviceAvailable}
	ErrContextCreationFailed = &Error{Kind: KindContextCreationFailed}
	ErrSourceUnavailable     = &Error{Kind: KindSourceUnavailable}
	ErrBuild                 = &Error{Kind: KindBuildError}
	ErrAllocation            = &Error{Kind: KindAllocationError}
	ErrTransfer              = &Error{Kind: KindTransferError}
	ErrInvalidWorkSize       = &Error{Kind: KindInvalidWorkSize}
	ErrDispatch              = &Error{Kind: KindDispatchError}
)

// Error is the single error type returned by every pipeline stage.
type Error struct {
	Kind ErrorKind

	// Op names the operation that failed, e.g. "allocate" or "dispatch".
	Op string

	// Log holds the compiler diagnostics of a BuildError.
	Log string

	// Err is the underlying backend error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// BuildLog returns the build log carried by err, if any.
func BuildLog(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindBuildError && e.Log != "" {
		return e.Log, true
	}
	return "", false
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
