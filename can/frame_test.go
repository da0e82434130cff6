package can

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func mkFrame(id Identifier, n int) Frame {
	var payload [MaxDataLen]byte
	if n > MaxDataLen {
		n = MaxDataLen
	}
	rand.Read(payload[:n])
	return New(id, payload[:n])
}

func TestFrame_RoundTripAllLengths(t *testing.T) {
	for n := 0; n <= MaxDataLen; n++ {
		in := mkFrame(0x1E5A0, n)
		wire := in.Marshal(false)
		out, err := Unmarshal(wire[:])
		if err != nil {
			t.Fatalf("len %d: unmarshal: %v", n, err)
		}
		if out.ID != in.ID {
			t.Fatalf("len %d: id %s, want %s", n, out.ID, in.ID)
		}
		if out.Len != in.Len {
			t.Fatalf("len %d: dlc %d, want %d", n, out.Len, in.Len)
		}
		if !bytes.Equal(out.Payload(), in.Payload()) {
			t.Fatalf("len %d: payload mismatch", n)
		}
	}
}

func TestFrame_MaxStandardIDStaysStandard(t *testing.T) {
	wire := New(0x7FF, []byte{0x01}).Marshal(false)
	raw := uint32(wire[0]) | uint32(wire[1])<<8 | uint32(wire[2])<<16 | uint32(wire[3])<<24
	if raw&CAN_EFF_FLAG != 0 {
		t.Fatalf("EFF bit set for standard id 0x7FF (can_id %#x)", raw)
	}
}

func TestFrame_ExtendedIDSetsEFFWithoutForce(t *testing.T) {
	wire := New(0x1FFFFFFF, nil).Marshal(false)
	raw := uint32(wire[0]) | uint32(wire[1])<<8 | uint32(wire[2])<<16 | uint32(wire[3])<<24
	if raw&CAN_EFF_FLAG == 0 {
		t.Fatalf("EFF bit not set for 29-bit id (can_id %#x)", raw)
	}
	if raw&CAN_EFF_MASK != 0x1FFFFFFF {
		t.Fatalf("id bits %#x, want 0x1FFFFFFF", raw&CAN_EFF_MASK)
	}
}

func TestFrame_ForceExtended(t *testing.T) {
	wire := New(0x123, []byte{0xAA}).Marshal(true)
	out, err := Unmarshal(wire[:])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Extended {
		t.Fatal("forced frame not flagged extended after decode")
	}
	if out.ID != 0x123 {
		t.Fatalf("id %s, want 0x123", out.ID)
	}
}

func TestFrame_FlagBits(t *testing.T) {
	f := New(0x100, nil)
	f.Remote = true
	f.Err = true
	wire := f.Marshal(false)
	out, err := Unmarshal(wire[:])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Remote || !out.Err {
		t.Fatalf("flags lost: remote=%v err=%v", out.Remote, out.Err)
	}
}

func TestUnmarshal_MasksReservedBits(t *testing.T) {
	// Standard frame whose raw can_id carries junk above bit 10.
	var buf [FrameSize]byte
	raw := uint32(0x123) | 0x00FFF800 // reserved bits, no EFF flag
	buf[0] = byte(raw)
	buf[1] = byte(raw >> 8)
	buf[2] = byte(raw >> 16)
	buf[3] = byte(raw >> 24)
	out, err := Unmarshal(buf[:])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != 0x123 {
		t.Fatalf("id %s, want 0x123 after masking", out.ID)
	}
}

func TestUnmarshal_ClampsDLC(t *testing.T) {
	var buf [FrameSize]byte
	buf[4] = 15
	out, err := Unmarshal(buf[:])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Len != MaxDataLen {
		t.Fatalf("dlc %d, want clamp to %d", out.Len, MaxDataLen)
	}
}

func TestUnmarshal_ShortBuffer(t *testing.T) {
	if _, err := Unmarshal(make([]byte, FrameSize-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestNew_OverLengthPayloadKeepsRequestedLen(t *testing.T) {
	f := New(0x10, make([]byte, 12))
	if f.Len != 12 {
		t.Fatalf("Len %d, want 12 (validated at send time)", f.Len)
	}
	if len(f.Payload()) != MaxDataLen {
		t.Fatalf("payload view %d, want %d", len(f.Payload()), MaxDataLen)
	}
}

// FuzzUnmarshal ensures the decoder never panics on arbitrary input and that
// whatever decodes cleanly survives a re-encode of its identifier bits.
func FuzzUnmarshal(f *testing.F) {
	seed := mkFrame(0x1ABCDE, 8).Marshal(false)
	f.Add(seed[:])
	f.Add(make([]byte, FrameSize))
	f.Fuzz(func(t *testing.T, data []byte) {
		fr, err := Unmarshal(data)
		if err != nil {
			return
		}
		wire := fr.Marshal(false)
		back, err := Unmarshal(wire[:])
		if err != nil {
			t.Fatalf("re-decode: %v", err)
		}
		if back.ID != fr.ID || back.Len != fr.Len {
			t.Fatalf("re-decode drift: %v vs %v", back, fr)
		}
	})
}
