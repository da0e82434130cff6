package can

import "fmt"

// SocketCAN bit constants for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// Identifier is a CAN arbitration identifier: 11-bit standard or 29-bit
// extended. It is a plain numeric value; ordering and equality follow the
// underlying integer. The upper flag bits (EFF/RTR/ERR) are never part of
// an Identifier; codecs strip them.
type Identifier uint32

// Extended reports whether the identifier needs extended (29-bit)
// addressing, i.e. it does not fit in the standard 11-bit range.
func (id Identifier) Extended() bool { return id > CAN_SFF_MASK }

// Valid reports whether the identifier fits the 29-bit extended range.
// Validation is advisory: tolerant hardware passes through reserved bits,
// so out-of-range values are representable, just not valid.
func (id Identifier) Valid() bool { return id <= CAN_EFF_MASK }

func (id Identifier) String() string { return fmt.Sprintf("0x%X", uint32(id)) }
