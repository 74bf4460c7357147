package duet

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/duet/pkg/asm"
)

func TestRecover(t *testing.T) {
	prog := asm.MustParse(`set a 1
add a 2
mul a a
mod a 5
snd a
set a 0
rcv a
jgz a -1
set a 1
jgz a -2`, asm.Duet)

	got, err := Recover(context.Background(), prog)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if got != 4 {
		t.Errorf("Recover() = %d, want 4", got)
	}
}

func TestRecoverSkipsZeroRegister(t *testing.T) {
	prog := asm.MustParse("snd 3\nrcv a\nsnd 8\nset a 1\nrcv a", asm.Duet)
	got, err := Recover(context.Background(), prog)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if got != 8 {
		t.Errorf("Recover() = %d, want 8 (rcv on zero must do nothing)", got)
	}
}

func TestRecoverNothing(t *testing.T) {
	prog := asm.MustParse("snd 3\nrcv a", asm.Duet)
	_, err := Recover(context.Background(), prog)
	if !errors.Is(err, ErrNothingRecovered) {
		t.Errorf("Recover error = %v, want ErrNothingRecovered", err)
	}
}

func TestRecoverCancelled(t *testing.T) {
	prog := asm.MustParse("jgz 1 0", asm.Duet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Recover(ctx, prog); !errors.Is(err, context.Canceled) {
		t.Errorf("Recover error = %v, want context.Canceled", err)
	}
}

func TestSoundIO(t *testing.T) {
	s := &SoundIO{}
	s.Send(5)
	if v, ok := s.Receive(0); !ok || v != 0 {
		t.Errorf("Receive(0) = %d, %v; want 0, true", v, ok)
	}
	if _, ok := s.Recovered(); ok {
		t.Error("Receive(0) should not recover")
	}
	if v, ok := s.Receive(2); !ok || v != 5 {
		t.Errorf("Receive(2) = %d, %v; want 5, true", v, ok)
	}
	if v, ok := s.Recovered(); !ok || v != 5 {
		t.Errorf("Recovered() = %d, %v; want 5, true", v, ok)
	}
}
