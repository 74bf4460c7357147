package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/duet/pkg/asm"
)

func TestRegistersDefaultZero(t *testing.T) {
	var rs Registers
	for r := asm.Register('a'); r <= 'z'; r++ {
		if v := rs.Get(r); v != 0 {
			t.Errorf("Get(%s) = %d, want 0", r, v)
		}
	}
}

func TestRegistersValue(t *testing.T) {
	var rs Registers
	rs.Set('a', 5)

	if got := rs.Value(asm.Lit(10)); got != 10 {
		t.Errorf("Value(10) = %d, want 10", got)
	}
	if got := rs.Value(asm.Reg('a')); got != 5 {
		t.Errorf("Value(a) = %d, want 5", got)
	}
	if got := rs.Value(asm.Reg('b')); got != 0 {
		t.Errorf("Value(b) = %d, want 0", got)
	}
}

func TestRegistersSnapshot(t *testing.T) {
	var rs Registers
	rs.Set('a', 3)
	rs.Set('p', -1)
	rs.Set('z', 0)

	want := map[string]int64{"a": 3, "p": -1}
	if diff := cmp.Diff(want, rs.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}
