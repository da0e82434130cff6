package can

import "testing"

func TestIdentifier_Extended(t *testing.T) {
	cases := []struct {
		id   Identifier
		want bool
	}{
		{0x000, false},
		{0x123, false},
		{0x7FF, false},
		{0x800, true},
		{0x1FFFFFFF, true},
	}
	for _, c := range cases {
		if got := c.id.Extended(); got != c.want {
			t.Errorf("%s: Extended() = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestIdentifier_Valid(t *testing.T) {
	if !Identifier(0x1FFFFFFF).Valid() {
		t.Error("max extended id should be valid")
	}
	if Identifier(0x20000000).Valid() {
		t.Error("id above 29 bits should be invalid")
	}
}

func TestIdentifier_Ordering(t *testing.T) {
	a, b := Identifier(0x100), Identifier(0x200)
	if !(a < b) || a == b {
		t.Fatalf("ordering broken: %s vs %s", a, b)
	}
}

func TestIdentifier_String(t *testing.T) {
	if s := Identifier(0x1AB).String(); s != "0x1AB" {
		t.Fatalf("String() = %q", s)
	}
}
