package socketcan

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is so each
// kind can drive a distinct recovery (reconnect on ErrInvalidSocket,
// surface ErrIO as a transient bus error, and so on).
var (
	// ErrInit covers every connection setup step and filter installation,
	// which uses the identical mechanism.
	ErrInit = errors.New("socketcan: init failed")
	// ErrClose covers a failing close syscall and teardown of a descriptor
	// that was never opened or is already closed.
	ErrClose = errors.New("socketcan: close failed")
	// ErrInvalidSocket covers I/O or filter use while unbound.
	ErrInvalidSocket = errors.New("socketcan: invalid socket")
	// ErrIO covers read/write syscall failures and over-length payloads.
	ErrIO = errors.New("socketcan: i/o failed")
)

// DriverError carries the failing descriptor and the underlying OS error
// alongside its kind. errors.Is matches the kind sentinel; errors.Unwrap
// yields the OS error (typically a unix.Errno).
type DriverError struct {
	kind error
	FD   int
	msg  string
	err  error
}

func (e *DriverError) Error() string {
	s := fmt.Sprintf("%v: %s (fd %d)", e.kind, e.msg, e.FD)
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *DriverError) Unwrap() error { return e.err }

func (e *DriverError) Is(target error) bool { return target == e.kind }

func initErr(fd int, msg string, err error) error {
	return &DriverError{kind: ErrInit, FD: fd, msg: msg, err: err}
}

func closeErr(fd int, msg string, err error) error {
	return &DriverError{kind: ErrClose, FD: fd, msg: msg, err: err}
}

func invalidSocketErr(fd int) error {
	return &DriverError{kind: ErrInvalidSocket, FD: fd, msg: "socket not bound"}
}

func ioErr(fd int, msg string, err error) error {
	return &DriverError{kind: ErrIO, FD: fd, msg: msg, err: err}
}
