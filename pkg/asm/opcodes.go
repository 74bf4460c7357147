package asm

import (
	"fmt"
	"sort"
)

// Opcode identifies an instruction kind.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Data movement and arithmetic
	OpSet // set X Y: X = Y
	OpAdd // add X Y: X = X + Y
	OpSub // sub X Y: X = X - Y
	OpMul // mul X Y: X = X * Y
	OpMod // mod X Y: X = X % Y

	// Communication
	OpSnd // snd X: send (or play) X
	OpRcv // rcv X: receive into (or recover through) X

	// Control flow
	OpJgz // jgz X Y: jump by Y if X > 0
	OpJnz // jnz X Y: jump by Y if X != 0
)

// NumOpcodes bounds the opcode values, for tables indexed by Opcode.
const NumOpcodes = int(OpJnz) + 1

// Shape constrains what kind of operand may appear in a position.
type Shape uint8

const (
	// ShapeRegister accepts only a register name.
	ShapeRegister Shape = iota + 1
	// ShapeValue accepts a register name or an integer literal.
	ShapeValue
)

func (s Shape) String() string {
	switch s {
	case ShapeRegister:
		return "register"
	case ShapeValue:
		return "value"
	default:
		return fmt.Sprintf("Shape(%d)", s)
	}
}

// InstructionSet is a bit mask of the dialects an opcode belongs to.
type InstructionSet uint8

const (
	// Duet is the instruction set of the sound and duet puzzles.
	Duet InstructionSet = 1 << iota
	// Coprocessor is the instruction set of the coprocessor puzzle.
	Coprocessor
)

// Has reports whether every dialect in o is also in s.
func (s InstructionSet) Has(o InstructionSet) bool {
	return s&o == o
}

func (s InstructionSet) String() string {
	switch s {
	case Duet:
		return "duet"
	case Coprocessor:
		return "coprocessor"
	case Duet | Coprocessor:
		return "duet|coprocessor"
	default:
		return fmt.Sprintf("InstructionSet(0x%02X)", uint8(s))
	}
}

// ParseInstructionSet maps a dialect name to its InstructionSet.
func ParseInstructionSet(name string) (InstructionSet, error) {
	switch name {
	case "duet", "sound":
		return Duet, nil
	case "coprocessor":
		return Coprocessor, nil
	default:
		return 0, fmt.Errorf("unknown instruction set %q", name)
	}
}

// OpcodeInfo describes an opcode for the decoder, disassembler and editor
// tooling.
type OpcodeInfo struct {
	Name   string
	Shapes []Shape
	Sets   InstructionSet
	Doc    string
}

// Arity returns the number of operands the opcode takes.
func (i OpcodeInfo) Arity() int {
	return len(i.Shapes)
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpSet: {"set", []Shape{ShapeRegister, ShapeValue}, Duet | Coprocessor, "sets register X to the value of Y"},
	OpAdd: {"add", []Shape{ShapeRegister, ShapeValue}, Duet, "increases register X by the value of Y"},
	OpSub: {"sub", []Shape{ShapeRegister, ShapeValue}, Coprocessor, "decreases register X by the value of Y"},
	OpMul: {"mul", []Shape{ShapeRegister, ShapeValue}, Duet | Coprocessor, "sets register X to X times the value of Y"},
	OpMod: {"mod", []Shape{ShapeRegister, ShapeValue}, Duet, "sets register X to the remainder of X divided by the value of Y"},

	OpSnd: {"snd", []Shape{ShapeValue}, Duet, "sends the value of X to the other program (plays a sound of frequency X in the sound dialect)"},
	OpRcv: {"rcv", []Shape{ShapeRegister}, Duet, "receives the next value into register X, waiting while none is queued (recovers the last sound when X is not zero in the sound dialect)"},

	OpJgz: {"jgz", []Shape{ShapeValue, ShapeValue}, Duet, "jumps by the value of Y if the value of X is greater than zero"},
	OpJnz: {"jnz", []Shape{ShapeValue, ShapeValue}, Coprocessor, "jumps by the value of Y if the value of X is not zero"},
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(n)" if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", uint8(op))}
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump reports whether the opcode may move the program counter by more
// than one.
func (op Opcode) IsJump() bool {
	return op == OpJgz || op == OpJnz
}

// Opcodes returns the opcodes of an instruction set sorted by mnemonic.
func Opcodes(set InstructionSet) []Opcode {
	var ops []Opcode
	for op, info := range opcodeInfoTable {
		if info.Sets&set != 0 {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].String() < ops[j].String()
	})
	return ops
}
