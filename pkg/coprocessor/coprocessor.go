// Package coprocessor solves the coprocessor puzzle: a set/sub/mul/jnz
// program that is first profiled and then understood.
package coprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/duet/pkg/asm"
	"github.com/chazu/duet/vm"
)

// ErrNoSeed is returned by Seed when a program does not start with a
// literal "set b N".
var ErrNoSeed = errors.New("coprocessor: program does not start with set b <literal>")

// Profile runs prog with every register at zero until it terminates and
// returns how many times mul executed.
func Profile(ctx context.Context, prog *asm.Program, opts ...vm.Option) (int, error) {
	if !asm.Coprocessor.Has(prog.Set) {
		return 0, fmt.Errorf("coprocessor: program decoded as %s", prog.Set)
	}
	m := vm.NewMachine(0, prog, vm.Discard{}, opts...)
	status, err := m.Run(ctx)
	if err != nil {
		return m.Executed(asm.OpMul), err
	}
	if status != vm.Terminated {
		return m.Executed(asm.OpMul), fmt.Errorf("coprocessor: machine %s at %d", status, m.PC())
	}
	return m.Executed(asm.OpMul), nil
}

// Seed returns N from a leading "set b N".
func Seed(prog *asm.Program) (int, error) {
	if prog.Len() == 0 {
		return 0, ErrNoSeed
	}
	first := prog.At(0)
	if first.Op != asm.OpSet || first.X().Register != 'b' || !first.Y().IsLiteral() {
		return 0, ErrNoSeed
	}
	return int(first.Y().Literal), nil
}

// CountComposites is what the puzzle program computes when started with
// a=1: the number of composite values among seed*100+100000,
// seed*100+100017, ... up to seed*100+117000.
func CountComposites(seed int) int {
	start := seed*100 + 100_000
	end := start + 17_000
	count := 0
	for n := start; n <= end; n += 17 {
		if !isPrime(n) {
			count++
		}
	}
	return count
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := 3; d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
