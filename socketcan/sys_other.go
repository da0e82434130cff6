//go:build !linux

package socketcan

import (
	"errors"
	"time"
)

// Raw CAN sockets need the linux SocketCAN subsystem. These placeholders
// keep dependent code compiling on other platforms; Open fails at the first
// setup step. Tests substitute fakes, so the driver test suite still runs.
var errUnsupported = errors.New("socketcan requires linux")

var (
	sysSocket = func(proto int) (int, error) { return -1, errUnsupported }

	sysClose = func(fd int) error { return errUnsupported }
	sysRead  = func(fd int, p []byte) (int, error) { return 0, errUnsupported }
	sysWrite = func(fd int, p []byte) (int, error) { return 0, errUnsupported }

	sysSetNonblock = func(fd int) error { return errUnsupported }

	sysBind = func(fd, ifindex int) error { return errUnsupported }

	sysSetFilter = func(fd int, id, mask uint32) error { return errUnsupported }

	sysSelectRead = func(fd int, timeout time.Duration) (int, error) { return -1, errUnsupported }

	resolveInterface = func(name string) (int, error) { return 0, errUnsupported }
)
