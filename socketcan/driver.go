// Package socketcan is a thin driver for one raw CAN socket bound to one
// bus interface. It owns the descriptor lifecycle and mediates all I/O
// through it: setup/teardown, readiness wait with timeout, single and
// batched frame send/receive, and identifier filtering.
//
// The receive path (wait, reads, filter, teardown) and the send path are
// guarded by two independent mutexes, so a send never serializes against a
// receive. Same-direction operations are mutually exclusive. The driver
// relies on the kernel to make interleaved read/write on one descriptor
// safe; closing the descriptor while another goroutine is blocked on it is
// the caller's responsibility to avoid.
package socketcan

import (
	"fmt"
	"sync"
	"time"

	"github.com/kstaniek/go-can-driver/can"
)

// Raw-socket protocol numbers (linux/can.h).
const (
	ProtocolRaw   = 1 // CAN_RAW
	ProtocolJ1939 = 7 // CAN_J1939
)

// unboundFD marks a driver whose socket is not (or no longer) open.
const unboundFD = -1

// Driver owns one raw CAN socket descriptor. The zero value is not usable;
// construct with Open.
type Driver struct {
	iface string
	proto int

	// recvMu guards fd teardown, the receive syscalls, filter state and the
	// pending count. sendMu guards the send syscalls only. No operation
	// takes both.
	recvMu sync.Mutex
	sendMu sync.Mutex

	fd         int
	filterMask uint32
	filterID   can.Identifier
	defaultID  can.Identifier
	pending    int
}

// Option configures a Driver before connection setup runs.
type Option func(*Driver)

// WithProtocol selects the raw-socket protocol number (default ProtocolRaw).
func WithProtocol(proto int) Option { return func(d *Driver) { d.proto = proto } }

// WithFilter sets the initial filter mask installed during setup. The
// matched identifier is the default sender id.
func WithFilter(mask uint32) Option { return func(d *Driver) { d.filterMask = mask } }

// WithDefaultSender sets the identifier used when filter configuration is
// given a zero id.
func WithDefaultSender(id can.Identifier) Option { return func(d *Driver) { d.defaultID = id } }

// Open performs the full connection setup against the named bus interface:
// raw socket creation, interface index resolution, non-blocking mode,
// filter installation and bind. Any failing step returns ErrInit and no
// usable Driver.
func Open(iface string, opts ...Option) (*Driver, error) {
	d := &Driver{iface: iface, proto: ProtocolRaw, fd: unboundFD}
	for _, o := range opts {
		o(d)
	}
	fd, err := sysSocket(d.proto)
	if err != nil {
		return nil, initErr(unboundFD, "socket(PF_CAN)", err)
	}
	d.fd = fd
	ifindex, err := resolveInterface(iface)
	if err != nil {
		_ = sysClose(fd)
		return nil, initErr(fd, fmt.Sprintf("resolve interface %q", iface), err)
	}
	if err := sysSetNonblock(fd); err != nil {
		_ = sysClose(fd)
		return nil, initErr(fd, "set non-blocking", err)
	}
	if err := d.applyFilter(d.filterMask, d.defaultID); err != nil {
		_ = sysClose(fd)
		return nil, err
	}
	if err := sysBind(fd, ifindex); err != nil {
		_ = sysClose(fd)
		return nil, initErr(fd, fmt.Sprintf("bind(can@%s)", iface), err)
	}
	return d, nil
}

// Close tears the socket down. Calling it on an already-closed (or never
// bound) driver returns ErrClose; after a successful Close the driver must
// not be used again.
func (d *Driver) Close() error {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	if d.fd < 0 {
		return closeErr(d.fd, "already closed", nil)
	}
	if err := sysClose(d.fd); err != nil {
		return closeErr(d.fd, "close", err)
	}
	d.fd = unboundFD
	return nil
}

// WaitForFrames blocks until the socket is readable or the timeout expires.
// The ready count reported by the poll is recorded as the pending count and
// later bounds ReadBatch; interleaving other receive-path calls between a
// wait and its batch read makes that count stale.
func (d *Driver) WaitForFrames(timeout time.Duration) (bool, error) {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	if d.fd < 0 {
		return false, invalidSocketErr(d.fd)
	}
	n, err := sysSelectRead(d.fd, timeout)
	if err != nil {
		d.pending = 0
		return false, ioErr(d.fd, "select", err)
	}
	d.pending = n
	return n > 0, nil
}

// ReadFrame reads exactly one frame from the socket.
func (d *Driver) ReadFrame() (can.Frame, error) {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	if d.fd < 0 {
		return can.Frame{}, invalidSocketErr(d.fd)
	}
	return d.readFrame()
}

// readFrame is ReadFrame without the lock, for batch reads that already
// hold it.
func (d *Driver) readFrame() (can.Frame, error) {
	var buf [can.FrameSize]byte
	n, err := sysRead(d.fd, buf[:])
	if err != nil {
		return can.Frame{}, ioErr(d.fd, "read", err)
	}
	if n < can.FrameSize {
		return can.Frame{}, ioErr(d.fd, fmt.Sprintf("short read: %d", n), nil)
	}
	fr, err := can.Unmarshal(buf[:])
	if err != nil {
		return can.Frame{}, ioErr(d.fd, "decode", err)
	}
	return fr, nil
}

// ReadBatch reads n frames under a single receive-lock acquisition and
// returns them oldest first. n <= 0 means "the pending count recorded by
// the last WaitForFrames". If fewer frames are actually available the
// underlying reads fail (or block) per the single-read contract; the frames
// obtained so far are returned alongside the error.
func (d *Driver) ReadBatch(n int) ([]can.Frame, error) {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	if d.fd < 0 {
		return nil, invalidSocketErr(d.fd)
	}
	if n <= 0 {
		n = d.pending
	}
	var frames []can.Frame
	for i := 0; i < n; i++ {
		fr, err := d.readFrame()
		if err != nil {
			return frames, err
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

// SendFrame writes one frame and returns the number of bytes written.
// Payloads longer than can.MaxDataLen are rejected with ErrIO before
// anything is written. The extended-address bit is forced on the wire when
// forceExtended is set or the identifier exceeds the standard 11-bit range.
func (d *Driver) SendFrame(f can.Frame, forceExtended bool) (int, error) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if d.fd < 0 {
		return 0, invalidSocketErr(d.fd)
	}
	if f.Len > can.MaxDataLen {
		return 0, ioErr(d.fd, fmt.Sprintf("payload length %d exceeds %d", f.Len, can.MaxDataLen), nil)
	}
	wire := f.Marshal(forceExtended)
	n, err := sysWrite(d.fd, wire[:])
	if err != nil {
		return 0, ioErr(d.fd, "write", err)
	}
	return n, nil
}

// SendBatch sends the frames strictly in order via SendFrame, re-acquiring
// the send lock per frame; there is no batch-level atomicity, so a failure
// mid-batch leaves a prefix delivered. It returns the total bytes written.
// A positive delay sleeps between consecutive sends but not after the last.
func (d *Driver) SendBatch(frames []can.Frame, delay time.Duration, forceExtended bool) (int, error) {
	total := 0
	for i, f := range frames {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}
		n, err := d.SendFrame(f, forceExtended)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SetFilter installs mask+id on the socket. A zero id falls back to the
// default sender id. On syscall failure the in-memory filter state keeps
// its previous value and the error has the ErrInit kind, since filter
// changes use the identical mechanism as setup.
func (d *Driver) SetFilter(mask uint32, id can.Identifier) error {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	if d.fd < 0 {
		return invalidSocketErr(d.fd)
	}
	return d.applyFilter(mask, id)
}

// applyFilter runs the setsockopt and stores the new state only on success.
// Callers hold recvMu (or, during Open, exclusive access).
func (d *Driver) applyFilter(mask uint32, id can.Identifier) error {
	if id == 0 {
		id = d.defaultID
	}
	if err := sysSetFilter(d.fd, uint32(id), mask); err != nil {
		return initErr(d.fd, fmt.Sprintf("set filter mask %#x id %s", mask, id), err)
	}
	d.filterMask = mask
	d.filterID = id
	return nil
}

// Interface returns the bus interface name the driver was opened against.
func (d *Driver) Interface() string { return d.iface }

// FD returns the socket descriptor, or -1 when unbound.
func (d *Driver) FD() int {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	return d.fd
}

// Pending returns the ready count recorded by the last WaitForFrames.
func (d *Driver) Pending() int {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	return d.pending
}

// FilterMask returns the last successfully applied filter mask.
func (d *Driver) FilterMask() uint32 {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	return d.filterMask
}

// DefaultSender returns the default sender identifier.
func (d *Driver) DefaultSender() can.Identifier {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	return d.defaultID
}

// SetDefaultSender replaces the default sender identifier used by filter
// configuration when given a zero id.
func (d *Driver) SetDefaultSender(id can.Identifier) {
	d.recvMu.Lock()
	defer d.recvMu.Unlock()
	d.defaultID = id
}
