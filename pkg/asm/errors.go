package asm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is returned for a mnemonic that no instruction set defines.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrNotInSet is returned for a known opcode outside the requested instruction set.
	ErrNotInSet = errors.New("opcode not in instruction set")

	// ErrOperandCount is returned when a line has the wrong number of operands.
	ErrOperandCount = errors.New("wrong operand count")

	// ErrOperandShape is returned for an operand that is neither an integer
	// nor a register name, or a literal where a register is required.
	ErrOperandShape = errors.New("malformed operand")
)

// ParseError reports the first malformed line of a program.
type ParseError struct {
	Line int    // 1-based source line
	Text string // the offending line
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
