// Package asm decodes the textual assembly of the register-machine puzzles
// into typed instructions.
//
// Two instruction sets share one opcode table:
//
//   - Duet: snd, set, add, mul, mod, rcv, jgz. Used by the sound recovery
//     puzzle and by the two-program duet.
//
//   - Coprocessor: set, sub, mul, jnz. Used by the coprocessor puzzle.
//
// Every source line has the form
//
//	<op> <operand> [<operand>]
//
// where an operand is either a signed integer literal or a single lowercase
// ASCII letter naming a register. The distinction is kept in Operand.Kind;
// a literal is never treated as a register name or the other way round.
//
// # Errors
//
// Parse stops at the first malformed line and returns a *ParseError carrying
// the 1-based source line. The underlying cause is one of ErrUnknownOpcode,
// ErrNotInSet, ErrOperandCount or ErrOperandShape and can be matched with
// errors.Is.
//
// # Rendering
//
// Instruction.String renders the canonical text of an instruction. Decoding
// that text yields an equal Instruction, which is what the program images in
// pkg/image hash and what the disassembler prints.
package asm
