package asm

import (
	"fmt"
	"strconv"
)

// Register names one of the 26 registers a..z.
type Register byte

// NumRegisters is the size of a register bank.
const NumRegisters = 26

// IsValid reports whether r is a lowercase ASCII letter.
func (r Register) IsValid() bool {
	return r >= 'a' && r <= 'z'
}

// Index returns the slot of r in a register bank.
func (r Register) Index() int {
	return int(r - 'a')
}

func (r Register) String() string {
	return string(rune(r))
}

// ParseRegister parses a single lowercase letter.
func ParseRegister(s string) (Register, error) {
	if len(s) != 1 || !Register(s[0]).IsValid() {
		return 0, fmt.Errorf("%w: %q is not a register name", ErrOperandShape, s)
	}
	return Register(s[0]), nil
}

// OperandKind tags an Operand.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandLiteral
	OperandRegister
)

func (k OperandKind) String() string {
	switch k {
	case OperandNone:
		return "none"
	case OperandLiteral:
		return "literal"
	case OperandRegister:
		return "register"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// Operand is either an integer literal or a register reference.
// Only the field selected by Kind is meaningful.
type Operand struct {
	Kind     OperandKind `cbor:"1,keyasint"`
	Literal  int64       `cbor:"2,keyasint,omitempty"`
	Register Register    `cbor:"3,keyasint,omitempty"`
}

// Lit returns a literal operand.
func Lit(v int64) Operand {
	return Operand{Kind: OperandLiteral, Literal: v}
}

// Reg returns a register operand.
func Reg(r Register) Operand {
	return Operand{Kind: OperandRegister, Register: r}
}

// IsRegister reports whether the operand names a register.
func (o Operand) IsRegister() bool {
	return o.Kind == OperandRegister
}

// IsLiteral reports whether the operand is an integer literal.
func (o Operand) IsLiteral() bool {
	return o.Kind == OperandLiteral
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandLiteral:
		return strconv.FormatInt(o.Literal, 10)
	case OperandRegister:
		return o.Register.String()
	default:
		return ""
	}
}

// ParseOperand parses a signed integer literal or a single lowercase letter.
func ParseOperand(s string) (Operand, error) {
	if s == "" {
		return Operand{}, fmt.Errorf("%w: empty operand", ErrOperandShape)
	}
	if len(s) == 1 && Register(s[0]).IsValid() {
		return Reg(Register(s[0])), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Operand{}, fmt.Errorf("%w: %q is neither an integer nor a register", ErrOperandShape, s)
	}
	return Lit(v), nil
}
