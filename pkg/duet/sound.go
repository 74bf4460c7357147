package duet

import (
	"context"
	"errors"

	"github.com/chazu/duet/pkg/asm"
	"github.com/chazu/duet/vm"
)

// ErrNothingRecovered is returned by Recover when the program terminates or
// blocks before any rcv recovers a frequency.
var ErrNothingRecovered = errors.New("duet: no frequency recovered")

// SoundIO implements the sound dialect: snd plays a frequency and rcv
// recovers the last played frequency when its register is non-zero.
type SoundIO struct {
	last      int64
	recovered bool
	value     int64
}

func (s *SoundIO) Send(v int64) {
	s.last = v
}

func (s *SoundIO) Receive(current int64) (int64, bool) {
	if current == 0 {
		return current, true
	}
	s.recovered = true
	s.value = s.last
	return s.last, true
}

// Recovered returns the first recovered frequency, if any.
func (s *SoundIO) Recovered() (int64, bool) {
	return s.value, s.recovered
}

// Recover runs prog with sound semantics and returns the frequency recovered
// by the first rcv whose register is non-zero.
func Recover(ctx context.Context, prog *asm.Program, opts ...vm.Option) (int64, error) {
	sound := &SoundIO{}
	m := vm.NewMachine(0, prog, sound, opts...)
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if m.Step() != vm.Running {
			return 0, ErrNothingRecovered
		}
		if v, ok := sound.Recovered(); ok {
			return v, nil
		}
	}
}
