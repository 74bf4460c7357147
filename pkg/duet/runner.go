package duet

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/duet/pkg/asm"
	"github.com/chazu/duet/vm"
)

// ErrRoundLimit is returned when a run exceeds Options.MaxRounds.
var ErrRoundLimit = errors.New("duet: round limit reached")

const ctxCheckInterval = 4096

// DefaultIDRegister holds each program's id at start.
const DefaultIDRegister asm.Register = 'p'

// Halt says why a run stopped.
type Halt int

const (
	// HaltFinished means both programs ran off their program.
	HaltFinished Halt = iota + 1
	// HaltDeadlock means both programs wait on an empty channel.
	HaltDeadlock
	// HaltStalled means one program finished and the other waits on a
	// channel that can never be fed again.
	HaltStalled
)

func (h Halt) String() string {
	switch h {
	case HaltFinished:
		return "finished"
	case HaltDeadlock:
		return "deadlock"
	case HaltStalled:
		return "stalled"
	default:
		return fmt.Sprintf("Halt(%d)", int(h))
	}
}

// Outcome is the result of a dual run. Deadlock is an ordinary outcome.
type Outcome struct {
	Halt   Halt
	States [2]vm.Status
	Sent   [2]int
	Steps  [2]int
	Rounds int
}

// Answer returns the number of values program 1 sent.
func (o Outcome) Answer() int {
	return o.Sent[1]
}

// Deadlocked reports whether both programs ended blocked on each other.
func (o Outcome) Deadlocked() bool {
	return o.Halt == HaltDeadlock
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s after %d rounds (program 0 %s, sent %d; program 1 %s, sent %d)",
		o.Halt, o.Rounds, o.States[0], o.Sent[0], o.States[1], o.Sent[1])
}

// Options configures a Runner.
type Options struct {
	// IDRegister receives the program id before the first step. Zero means
	// DefaultIDRegister.
	IDRegister asm.Register
	// MaxRounds stops a run with ErrRoundLimit. Zero means unlimited.
	MaxRounds int
	// Trace logs every executed instruction.
	Trace bool
}

// Runner drives two instances of one program that talk through a pair of
// channels.
type Runner struct {
	machines [2]*vm.Machine
	// channels[i] carries the values machine i sends.
	channels [2]*vm.Channel
	opts     Options
	log      commonlog.Logger
}

// NewRunner prepares programs 0 and 1 for prog.
func NewRunner(prog *asm.Program, opts Options) *Runner {
	if opts.IDRegister == 0 {
		opts.IDRegister = DefaultIDRegister
	}
	r := &Runner{
		channels: [2]*vm.Channel{vm.NewChannel(), vm.NewChannel()},
		opts:     opts,
		log:      commonlog.GetLogger("duet.runner"),
	}
	for id := range r.machines {
		io := vm.ChannelIO{In: r.channels[1-id], Out: r.channels[id]}
		machineOpts := []vm.Option{vm.WithRegister(opts.IDRegister, int64(id))}
		if opts.Trace {
			machineOpts = append(machineOpts, vm.WithTrace(commonlog.GetLogger("duet.vm")))
		}
		r.machines[id] = vm.NewMachine(id, prog, io, machineOpts...)
	}
	return r
}

// Machine returns program id's machine.
func (r *Runner) Machine(id int) *vm.Machine {
	return r.machines[id]
}

// Channel returns the channel carrying program id's sends.
func (r *Runner) Channel(id int) *vm.Channel {
	return r.channels[id]
}

// Run steps both programs round by round until neither can make progress.
//
// A round steps program 0 and then program 1. Only a round in which neither
// executed an instruction ends the run: a program that is blocked while its
// peer still works is never mistaken for a deadlock, because the peer's
// progress keeps the run going until its send is observed.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	rounds := 0
	for {
		if r.opts.MaxRounds > 0 && rounds >= r.opts.MaxRounds {
			return r.outcome(0, rounds), fmt.Errorf("%w: %d rounds", ErrRoundLimit, rounds)
		}
		if rounds%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return r.outcome(0, rounds), err
			}
		}

		s0 := r.machines[0].Step()
		s1 := r.machines[1].Step()
		rounds++

		if s0 == vm.Running || s1 == vm.Running {
			continue
		}

		var halt Halt
		switch {
		case s0 == vm.Terminated && s1 == vm.Terminated:
			halt = HaltFinished
		case s0 == vm.Blocked && s1 == vm.Blocked:
			halt = HaltDeadlock
		default:
			halt = HaltStalled
		}
		out := r.outcome(halt, rounds)
		r.log.Infof("halted: %s", out)
		return out, nil
	}
}

func (r *Runner) outcome(halt Halt, rounds int) Outcome {
	out := Outcome{Halt: halt, Rounds: rounds}
	for id, m := range r.machines {
		out.States[id] = m.Status()
		out.Sent[id] = m.Sent()
		out.Steps[id] = m.Steps()
	}
	return out
}

// Solve runs two instances of prog and returns the outcome.
func Solve(ctx context.Context, prog *asm.Program, opts Options) (Outcome, error) {
	return NewRunner(prog, opts).Run(ctx)
}
