//go:build windows

package oserr

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

func platformCode(err error) (Code, bool) {
	var status windows.NTStatus
	if errors.As(err, &status) {
		return Code(status.Errno()), true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return Code(errno), true
	}

	return 0, false
}

// NTSuccess reports whether status is a success or informational status.
func NTSuccess(status windows.NTStatus) bool {
	return int32(status) >= 0
}

// FromStatus turns a failing NTSTATUS into an error. STATUS_BUFFER_TOO_SMALL
// also matches ErrBufferTooSmall.
func FromStatus(status windows.NTStatus) error {
	if NTSuccess(status) {
		return nil
	}
	if status == windows.STATUS_BUFFER_TOO_SMALL {
		return fmt.Errorf("%w: %w", ErrBufferTooSmall, status)
	}
	return status
}

// FromErrno classifies a Win32 call failure. ERROR_INSUFFICIENT_BUFFER and
// ERROR_MORE_DATA also match ErrBufferTooSmall.
func FromErrno(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) || errors.Is(err, windows.ERROR_MORE_DATA) {
		return fmt.Errorf("%w: %w", ErrBufferTooSmall, err)
	}
	return err
}
