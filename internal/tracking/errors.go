package tracking

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the provider-side failure code.
type ErrorCode int

const (
	CodePermissionDenied    ErrorCode = 1
	CodePositionUnavailable ErrorCode = 2
	CodeTimeout             ErrorCode = 3
)

const (
	MsgPermissionDenied    = "Location access denied. Please allow location access in your browser settings."
	MsgPositionUnavailable = "Location information is unavailable. Please check your device settings."
	MsgTimeout             = "Location request timed out. Please try again."
	MsgUnsupported         = "Geolocation is not supported by your browser"
	MsgUnknown             = "An unknown error occurred while retrieving your location."
)

// ErrPermissionQueryUnsupported is returned by a PermissionProvider that cannot report
// permission state. The monitor treats it as "never emits".
var ErrPermissionQueryUnsupported = errors.New("permission query not supported")

// PositionError is what providers return (or pass to watch callbacks) when a reading fails.
type PositionError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *PositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("position error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

func (e *PositionError) Unwrap() error { return e.Err }

// NewPositionError builds a PositionError wrapping cause (which may be nil).
func NewPositionError(code ErrorCode, cause error) *PositionError {
	return &PositionError{Code: code, Message: codeMessage(code), Err: cause}
}

func codeMessage(code ErrorCode) string {
	switch code {
	case CodePermissionDenied:
		return "permission denied"
	case CodePositionUnavailable:
		return "position unavailable"
	case CodeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Classify maps any provider failure onto the tracker's error taxonomy. It never returns
// ErrorNone for a non-nil err; unknown failures become PositionUnavailable with MsgUnknown.
func Classify(err error) (ErrorKind, string) {
	var pe *PositionError
	switch {
	case err == nil:
		return ErrorNone, ""
	case errors.As(err, &pe):
		switch pe.Code {
		case CodePermissionDenied:
			return ErrorPermissionDenied, MsgPermissionDenied
		case CodePositionUnavailable:
			return ErrorPositionUnavailable, MsgPositionUnavailable
		case CodeTimeout:
			return ErrorTimeout, MsgTimeout
		}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout, MsgTimeout
	}
	return ErrorPositionUnavailable, MsgUnknown
}
