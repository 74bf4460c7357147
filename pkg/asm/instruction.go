package asm

import (
	"fmt"
	"strings"
)

// Instruction is one decoded operation. Args beyond the opcode's arity are
// OperandNone.
type Instruction struct {
	Op   Opcode     `cbor:"1,keyasint"`
	Args [2]Operand `cbor:"2,keyasint"`
}

// X returns the first operand.
func (in Instruction) X() Operand {
	return in.Args[0]
}

// Y returns the second operand.
func (in Instruction) Y() Operand {
	return in.Args[1]
}

// String renders the canonical source text of the instruction.
func (in Instruction) String() string {
	info := GetOpcodeInfo(in.Op)
	var sb strings.Builder
	sb.WriteString(info.Name)
	for i := 0; i < info.Arity(); i++ {
		sb.WriteByte(' ')
		sb.WriteString(in.Args[i].String())
	}
	return sb.String()
}

// Validate checks that the instruction's operands match its opcode's shapes.
func (in Instruction) Validate() error {
	info, ok := opcodeInfoTable[in.Op]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOpcode, uint8(in.Op))
	}
	for i := range in.Args {
		arg := in.Args[i]
		if i >= info.Arity() {
			if arg.Kind != OperandNone {
				return fmt.Errorf("%w: %s takes %d", ErrOperandCount, info.Name, info.Arity())
			}
			continue
		}
		switch arg.Kind {
		case OperandRegister:
			if !arg.Register.IsValid() {
				return fmt.Errorf("%w: register %q", ErrOperandShape, byte(arg.Register))
			}
		case OperandLiteral:
			if info.Shapes[i] == ShapeRegister {
				return fmt.Errorf("%w: %s operand %d must be a register, got %d",
					ErrOperandShape, info.Name, i+1, arg.Literal)
			}
		default:
			return fmt.Errorf("%w: %s takes %d", ErrOperandCount, info.Name, info.Arity())
		}
	}
	return nil
}

// Decode parses a single source line under the given instruction set.
func Decode(line string, set InstructionSet) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, fmt.Errorf("%w: empty line", ErrOperandCount)
	}

	op, ok := LookupOpcode(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnknownOpcode, fields[0])
	}
	info := opcodeInfoTable[op]
	if info.Sets&set == 0 {
		return Instruction{}, fmt.Errorf("%w: %s is not a %s instruction", ErrNotInSet, info.Name, set)
	}

	operands := fields[1:]
	if len(operands) != info.Arity() {
		return Instruction{}, fmt.Errorf("%w: %s takes %d, got %d",
			ErrOperandCount, info.Name, info.Arity(), len(operands))
	}

	in := Instruction{Op: op}
	for i, text := range operands {
		arg, err := ParseOperand(text)
		if err != nil {
			return Instruction{}, err
		}
		if info.Shapes[i] == ShapeRegister && !arg.IsRegister() {
			return Instruction{}, fmt.Errorf("%w: %s operand %d must be a register, got %q",
				ErrOperandShape, info.Name, i+1, text)
		}
		in.Args[i] = arg
	}
	return in, nil
}
