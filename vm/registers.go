package vm

import "github.com/chazu/duet/pkg/asm"

// Registers is a machine's private register bank. Every register starts at
// zero; reading a register that was never written is not an error.
type Registers [asm.NumRegisters]int64

// Get returns the value of r.
func (rs *Registers) Get(r asm.Register) int64 {
	return rs[r.Index()]
}

// Set stores v in r.
func (rs *Registers) Set(r asm.Register, v int64) {
	rs[r.Index()] = v
}

// Value resolves an operand: literals stand for themselves, registers for
// their current contents.
func (rs *Registers) Value(o asm.Operand) int64 {
	if o.IsRegister() {
		return rs.Get(o.Register)
	}
	return o.Literal
}

// Snapshot returns the non-zero registers keyed by name.
func (rs *Registers) Snapshot() map[string]int64 {
	m := make(map[string]int64)
	for i, v := range rs {
		if v != 0 {
			m[asm.Register('a'+i).String()] = v
		}
	}
	return m
}
