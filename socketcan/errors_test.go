package socketcan

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestDriverError_KindMatching(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{initErr(-1, "socket(PF_CAN)", unix.EINVAL), ErrInit},
		{closeErr(3, "close", unix.EBADF), ErrClose},
		{invalidSocketErr(-1), ErrInvalidSocket},
		{ioErr(3, "read", unix.EAGAIN), ErrIO},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.kind) {
			t.Errorf("%v should match kind %v", c.err, c.kind)
		}
		for _, other := range []error{ErrInit, ErrClose, ErrInvalidSocket, ErrIO} {
			if other != c.kind && errors.Is(c.err, other) {
				t.Errorf("%v must not match kind %v", c.err, other)
			}
		}
	}
}

func TestDriverError_CarriesDescriptorAndErrno(t *testing.T) {
	err := ioErr(7, "write", unix.ENOBUFS)
	var de *DriverError
	if !errors.As(err, &de) {
		t.Fatal("expected *DriverError")
	}
	if de.FD != 7 {
		t.Fatalf("FD = %d, want 7", de.FD)
	}
	if !errors.Is(err, unix.ENOBUFS) {
		t.Fatal("underlying errno lost")
	}
	if !strings.Contains(err.Error(), "fd 7") {
		t.Fatalf("message %q missing descriptor", err.Error())
	}
}

func TestDriverError_InitCarriesInterfaceName(t *testing.T) {
	err := initErr(3, `resolve interface "can0"`, unix.ENODEV)
	if !strings.Contains(err.Error(), "can0") {
		t.Fatalf("message %q missing interface name", err.Error())
	}
}
