package asm

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Instruction set: %s\n", p.Set))
	sb.WriteString(fmt.Sprintf("; Instructions: %d\n", p.Len()))
	if regs := p.RegistersUsed(); len(regs) > 0 {
		names := make([]string, len(regs))
		for i, r := range regs {
			names[i] = r.String()
		}
		sb.WriteString(fmt.Sprintf("; Registers: %s\n", strings.Join(names, ", ")))
	}
	sb.WriteString("\n; Code:\n")

	for pc := range p.Instructions {
		line := p.disassembleInstruction(pc)
		if pc < len(p.Lines) {
			sb.WriteString(fmt.Sprintf("%04d  %-30s ; line %d\n", pc, line, p.Lines[pc]))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", pc, line))
		}
	}
	return sb.String()
}

// disassembleInstruction formats the instruction at pc, annotating jumps
// whose offset is a literal with their target.
func (p *Program) disassembleInstruction(pc int) string {
	in := p.Instructions[pc]
	info := GetOpcodeInfo(in.Op)

	operands := make([]string, info.Arity())
	for i := range operands {
		operands[i] = in.Args[i].String()
	}
	text := fmt.Sprintf("%-4s %s", strings.ToUpper(info.Name), strings.Join(operands, " "))

	if in.Op.IsJump() && in.Y().IsLiteral() {
		target := pc + int(in.Y().Literal)
		if target < 0 || target >= p.Len() {
			return text + "  -> exit"
		}
		return fmt.Sprintf("%s  -> %04d", text, target)
	}
	return text
}

// RegistersUsed returns the registers referenced anywhere in the program,
// sorted by name.
func (p *Program) RegistersUsed() []Register {
	seen := make(map[Register]bool)
	for _, in := range p.Instructions {
		for _, arg := range in.Args {
			if arg.IsRegister() {
				seen[arg.Register] = true
			}
		}
	}
	regs := make([]Register, 0, len(seen))
	for r := range seen {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
	return regs
}
