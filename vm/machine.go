package vm

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/duet/pkg/asm"
)

// Status is the execution state of a machine.
type Status int

const (
	// Running means the last step executed an instruction.
	Running Status = iota
	// Blocked means the machine is at a rcv with nothing to receive.
	Blocked
	// Terminated means the program counter left the program.
	Terminated
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ctxCheckInterval is how many steps Run executes between context checks.
const ctxCheckInterval = 4096

// Machine executes one program. Its registers, program counter and counters
// are private; the only way to exchange data with another machine is through
// its IO.
type Machine struct {
	id      int
	program *asm.Program
	regs    Registers
	pc      int
	io      IO

	sent     int
	steps    int
	blocked  bool
	executed [asm.NumOpcodes]int

	trace commonlog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithRegister presets a register before the first step.
func WithRegister(r asm.Register, v int64) Option {
	return func(m *Machine) {
		m.regs.Set(r, v)
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(log commonlog.Logger) Option {
	return func(m *Machine) {
		m.trace = log
	}
}

// NewMachine creates a machine for prog. A nil io behaves like Discard.
func NewMachine(id int, prog *asm.Program, io IO, opts ...Option) *Machine {
	if io == nil {
		io = Discard{}
	}
	m := &Machine{
		id:      id,
		program: prog,
		io:      io,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the machine's id.
func (m *Machine) ID() int { return m.id }

// PC returns the program counter.
func (m *Machine) PC() int { return m.pc }

// Sent returns how many snd instructions executed.
func (m *Machine) Sent() int { return m.sent }

// Steps returns how many instructions executed.
func (m *Machine) Steps() int { return m.steps }

// Registers returns a copy of the register bank.
func (m *Machine) Registers() Registers { return m.regs }

// Register returns the value of a single register.
func (m *Machine) Register(r asm.Register) int64 { return m.regs.Get(r) }

// Executed returns how many times op executed.
func (m *Machine) Executed(op asm.Opcode) int {
	if int(op) >= len(m.executed) {
		return 0
	}
	return m.executed[op]
}

func (m *Machine) terminated() bool {
	return m.pc < 0 || m.pc >= m.program.Len()
}

// Status returns the current state without stepping.
func (m *Machine) Status() Status {
	switch {
	case m.terminated():
		return Terminated
	case m.blocked:
		return Blocked
	default:
		return Running
	}
}

// Step executes at most one instruction.
//
// It returns Running if an instruction executed, Blocked if the instruction
// is a rcv that could not receive, and Terminated if the program counter is
// outside the program. Blocked and Terminated steps change nothing, so
// repeating them is harmless.
func (m *Machine) Step() Status {
	if m.terminated() {
		return Terminated
	}

	in := m.program.At(m.pc)
	x, y := in.X(), in.Y()
	next := m.pc + 1

	switch in.Op {
	case asm.OpSet:
		m.regs.Set(x.Register, m.regs.Value(y))

	case asm.OpAdd:
		m.regs.Set(x.Register, m.regs.Get(x.Register)+m.regs.Value(y))

	case asm.OpSub:
		m.regs.Set(x.Register, m.regs.Get(x.Register)-m.regs.Value(y))

	case asm.OpMul:
		m.regs.Set(x.Register, m.regs.Get(x.Register)*m.regs.Value(y))

	case asm.OpMod:
		// Modulo by zero leaves the register as it was.
		if d := m.regs.Value(y); d != 0 {
			m.regs.Set(x.Register, m.regs.Get(x.Register)%d)
		}

	case asm.OpSnd:
		m.io.Send(m.regs.Value(x))
		m.sent++

	case asm.OpRcv:
		v, ok := m.io.Receive(m.regs.Get(x.Register))
		if !ok {
			m.blocked = true
			return Blocked
		}
		m.regs.Set(x.Register, v)

	case asm.OpJgz:
		if m.regs.Value(x) > 0 {
			next = m.pc + int(m.regs.Value(y))
		}

	case asm.OpJnz:
		if m.regs.Value(x) != 0 {
			next = m.pc + int(m.regs.Value(y))
		}

	default:
		panic(fmt.Sprintf("vm: machine %d: unhandled opcode %s at %d", m.id, in.Op, m.pc))
	}

	if m.trace != nil {
		m.trace.Debugf("[%d] %04d %-12s -> %04d %v", m.id, m.pc, in, next, m.regs.Snapshot())
	}

	m.blocked = false
	m.executed[in.Op]++
	m.steps++
	m.pc = next
	return Running
}

// Run steps until the machine blocks or terminates, and returns that status.
// A cancelled context stops the run with ctx.Err().
func (m *Machine) Run(ctx context.Context) (Status, error) {
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return m.Status(), err
			}
		}
		if s := m.Step(); s != Running {
			return s, nil
		}
	}
}
