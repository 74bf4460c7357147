package asm

import (
	"fmt"
	"strings"
)

// Program is a decoded instruction sequence. It is read-only after Parse;
// machines index into it but never modify it.
type Program struct {
	Set          InstructionSet
	Instructions []Instruction
	Lines        []int // source line of each instruction, 1-based
}

// Parse decodes a newline-separated program. Blank lines are skipped. The
// first malformed line aborts decoding with a *ParseError.
func Parse(src string, set InstructionSet) (*Program, error) {
	p := &Program{Set: set}
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		in, err := Decode(line, set)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Text: line, Err: err}
		}
		p.Instructions = append(p.Instructions, in)
		p.Lines = append(p.Lines, i+1)
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(src string, set InstructionSet) *Program {
	p, err := Parse(src, set)
	if err != nil {
		panic(fmt.Sprintf("asm: %v", err))
	}
	return p
}

// New builds a program from already decoded instructions, validating each
// against the set. Lines are numbered consecutively.
func New(set InstructionSet, instructions []Instruction) (*Program, error) {
	p := &Program{
		Set:          set,
		Instructions: make([]Instruction, len(instructions)),
		Lines:        make([]int, len(instructions)),
	}
	for i, in := range instructions {
		if err := in.Validate(); err != nil {
			return nil, &ParseError{Line: i + 1, Text: in.String(), Err: err}
		}
		if GetOpcodeInfo(in.Op).Sets&set == 0 {
			return nil, &ParseError{Line: i + 1, Text: in.String(),
				Err: fmt.Errorf("%w: %s is not a %s instruction", ErrNotInSet, in.Op, set)}
		}
		p.Instructions[i] = in
		p.Lines[i] = i + 1
	}
	return p, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instructions)
}

// At returns the instruction at index pc.
func (p *Program) At(pc int) Instruction {
	return p.Instructions[pc]
}

// String renders the canonical source of the program, one instruction per
// line.
func (p *Program) String() string {
	var sb strings.Builder
	for _, in := range p.Instructions {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
