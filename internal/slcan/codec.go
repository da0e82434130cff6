package slcan

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/metrics"
)

// Codec translates between can.Frame and Lawicel serial-line CAN records:
//
//	tIIIL<data>\r   standard data frame (3 hex id digits, length digit, hex data)
//	TIIIIIIIIL<data>\r  extended data frame (8 hex id digits)
//	rIIIL\r / RIIIIIIIIL\r  remote request frames
//
// Anything else up to the next carriage return is counted as malformed and
// skipped, which doubles as resync after line noise.
type Codec struct{}

// maxPendingGarbage bounds accumulation when no record terminator shows up
// (e.g. a disconnected adapter streaming junk).
const maxPendingGarbage = 4096

// Encode renders one frame as an slcan record including the terminator.
func (Codec) Encode(f can.Frame) []byte {
	ext := f.Extended || f.ID.Extended()
	dlc := f.Len
	if dlc > can.MaxDataLen {
		dlc = can.MaxDataLen
	}
	var b bytes.Buffer
	switch {
	case ext && f.Remote:
		fmt.Fprintf(&b, "R%08X%d", uint32(f.ID)&can.CAN_EFF_MASK, dlc)
	case ext:
		fmt.Fprintf(&b, "T%08X%d", uint32(f.ID)&can.CAN_EFF_MASK, dlc)
	case f.Remote:
		fmt.Fprintf(&b, "r%03X%d", uint32(f.ID)&can.CAN_SFF_MASK, dlc)
	default:
		fmt.Fprintf(&b, "t%03X%d", uint32(f.ID)&can.CAN_SFF_MASK, dlc)
	}
	if !f.Remote {
		fmt.Fprintf(&b, "%X", f.Data[:dlc])
	}
	b.WriteByte('\r')
	return b.Bytes()
}

// DecodeStream drains complete records from in and emits decoded frames via
// out. Partial trailing records stay buffered for the next read.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	for {
		data := in.Bytes()
		i := bytes.IndexByte(data, '\r')
		if i < 0 {
			if len(data) > maxPendingGarbage {
				metrics.IncMalformed()
				in.Reset()
			}
			return nil
		}
		rec := data[:i]
		if f, ok := parseRecord(rec); ok {
			out(f)
			metrics.IncSlcanRx()
		} else if len(rec) > 0 {
			metrics.IncMalformed()
		}
		in.Next(i + 1)
	}
}

func parseRecord(rec []byte) (can.Frame, bool) {
	if len(rec) == 0 {
		return can.Frame{}, false
	}
	var (
		idDigits int
		ext      bool
		remote   bool
	)
	switch rec[0] {
	case 't':
		idDigits = 3
	case 'T':
		idDigits, ext = 8, true
	case 'r':
		idDigits, remote = 3, true
	case 'R':
		idDigits, ext, remote = 8, true, true
	default:
		return can.Frame{}, false
	}
	if len(rec) < 1+idDigits+1 {
		return can.Frame{}, false
	}
	id, err := strconv.ParseUint(string(rec[1:1+idDigits]), 16, 32)
	if err != nil {
		return can.Frame{}, false
	}
	dlc := int(rec[1+idDigits] - '0')
	if dlc < 0 || dlc > can.MaxDataLen {
		return can.Frame{}, false
	}
	f := can.Frame{ID: can.Identifier(id), Extended: ext, Remote: remote, Len: uint8(dlc)}
	if ext {
		f.ID &= can.CAN_EFF_MASK
	} else {
		f.ID &= can.CAN_SFF_MASK
	}
	if remote {
		return f, len(rec) == 1+idDigits+1
	}
	if len(rec) != 1+idDigits+1+2*dlc {
		return can.Frame{}, false
	}
	payload, err := hex.DecodeString(string(rec[1+idDigits+1:]))
	if err != nil {
		return can.Frame{}, false
	}
	copy(f.Data[:], payload)
	return f, true
}
