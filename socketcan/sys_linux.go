//go:build linux

package socketcan

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Syscall seams. Package-level vars so unit tests can substitute fakes.
var (
	sysSocket = func(proto int) (int, error) {
		return unix.Socket(unix.AF_CAN, unix.SOCK_RAW, proto)
	}

	sysClose = unix.Close
	sysRead  = unix.Read
	sysWrite = unix.Write

	sysSetNonblock = func(fd int) error { return unix.SetNonblock(fd, true) }

	sysBind = func(fd, ifindex int) error {
		return unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifindex})
	}

	sysSetFilter = func(fd int, id, mask uint32) error {
		flt := []unix.CanFilter{{Id: id, Mask: mask}}
		return unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, flt)
	}

	// sysSelectRead polls the single descriptor for readability. The
	// timeout is decomposed into whole seconds and leftover microseconds
	// as select(2) requires.
	sysSelectRead = func(fd int, timeout time.Duration) (int, error) {
		var fds unix.FdSet
		fds.Zero()
		fds.Set(fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		return unix.Select(fd+1, &fds, nil, nil, &tv)
	}

	resolveInterface = func(name string) (int, error) {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return 0, err
		}
		return ifi.Index, nil
	}
)
