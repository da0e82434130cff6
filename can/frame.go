package can

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxDataLen is the classic CAN payload limit.
	MaxDataLen = 8
	// FrameSize is the size of the Linux struct can_frame wire layout.
	FrameSize = 16
)

// Frame is one classic CAN message: identifier, up to 8 payload bytes and
// the EFF/RTR/ERR flags. It is a value type with no shared state.
//
// Len may exceed MaxDataLen when a frame was built from an over-length
// payload; only the first MaxDataLen bytes are retained and transmission
// rejects such frames. Construction stays cheap and validation happens at
// the send call site.
type Frame struct {
	ID       Identifier
	Len      uint8
	Extended bool // 29-bit addressing on the wire
	Remote   bool // remote transmission request
	Err      bool // error frame
	Data     [MaxDataLen]byte
}

// New builds a data frame for id with the given payload. The extended flag
// is derived from the identifier range. Payloads longer than MaxDataLen are
// truncated in Data but keep their requested length in Len so the send path
// can reject them.
func New(id Identifier, payload []byte) Frame {
	f := Frame{ID: id, Extended: id.Extended(), Len: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f
}

// Marshal encodes the frame into the struct can_frame layout:
//
//	can_id  u32   [0:4]  (EFF/RTR/ERR flags in the upper bits)
//	can_dlc u8    [4]
//	pad     3B    [5:8]
//	data    [8]   [8:16]
//
// Fields are host byte order; on the Linux targets this code runs on that
// is little-endian, matching the kernel view of the raw socket.
//
// The EFF bit is set when forceExtended is true, when the frame is flagged
// extended, or when the identifier exceeds the standard 11-bit range.
func (f Frame) Marshal(forceExtended bool) [FrameSize]byte {
	id := uint32(f.ID) & CAN_EFF_MASK
	if forceExtended || f.Extended || f.ID.Extended() {
		id |= CAN_EFF_FLAG
	}
	if f.Remote {
		id |= CAN_RTR_FLAG
	}
	if f.Err {
		id |= CAN_ERR_FLAG
	}
	dlc := f.Len
	if dlc > MaxDataLen {
		dlc = MaxDataLen
	}
	var buf [FrameSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = dlc
	copy(buf[8:], f.Data[:dlc])
	return buf
}

// Unmarshal decodes one struct can_frame buffer. The identifier is masked
// to 29 or 11 bits depending on the EFF bit, dropping reserved bits; the
// dlc is clamped to MaxDataLen and exactly that many payload bytes are
// copied.
func Unmarshal(buf []byte) (Frame, error) {
	if len(buf) < FrameSize {
		return Frame{}, fmt.Errorf("can: need %d bytes, got %d", FrameSize, len(buf))
	}
	raw := binary.LittleEndian.Uint32(buf[0:4])
	var f Frame
	f.Extended = raw&CAN_EFF_FLAG != 0
	f.Remote = raw&CAN_RTR_FLAG != 0
	f.Err = raw&CAN_ERR_FLAG != 0
	if f.Extended {
		f.ID = Identifier(raw & CAN_EFF_MASK)
	} else {
		f.ID = Identifier(raw & CAN_SFF_MASK)
	}
	f.Len = buf[4]
	if f.Len > MaxDataLen {
		f.Len = MaxDataLen
	}
	copy(f.Data[:f.Len], buf[8:8+f.Len])
	return f, nil
}

// Payload returns the valid portion of the data buffer.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > MaxDataLen {
		n = MaxDataLen
	}
	return f.Data[:n]
}
