// Package oserr maps failures to the Win32 error codes fsptool exits with.
package oserr

import (
	"errors"
	"fmt"
)

// Code is a Win32 error code.
type Code uint32

const (
	ErrorSuccess            Code = 0
	ErrorAccessDenied       Code = 5
	ErrorNotSupported       Code = 50
	ErrorInvalidParameter   Code = 87
	ErrorInsufficientBuffer Code = 122
	ErrorNoneMapped         Code = 1332
	ErrorNoSystemResources  Code = 1450
)

func (c Code) Error() string {
	return fmt.Sprintf("win32 error %d", uint32(c))
}

var (
	ErrBufferTooSmall        = errors.New("buffer too small")
	ErrInsufficientResources = errors.New("insufficient system resources")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrNotSupported          = errors.New("not supported on this platform")
	ErrNotImplemented        = errors.New("not implemented")
)

// ExitCode returns the process exit code for err. Native OS errors keep
// their own code; sentinels map to the code the equivalent OS failure
// would carry. Anything else exits with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if c, ok := platformCode(err); ok {
		return int(c)
	}

	var code Code
	if errors.As(err, &code) {
		return int(code)
	}

	switch {
	case errors.Is(err, ErrInsufficientResources):
		return int(ErrorNoSystemResources)
	case errors.Is(err, ErrInvalidParameter):
		return int(ErrorInvalidParameter)
	case errors.Is(err, ErrBufferTooSmall):
		return int(ErrorInsufficientBuffer)
	case errors.Is(err, ErrNotSupported):
		return int(ErrorNotSupported)
	}

	return 1
}
