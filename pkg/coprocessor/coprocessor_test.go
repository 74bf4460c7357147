package coprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/duet/pkg/asm"
)

// puzzleProgram is the structure of the coprocessor puzzle input.
const puzzleProgram = `set b 57
set c b
jnz a 2
jnz 1 5
mul b 100
sub b -100000
set c b
sub c -17000
set f 1
set d 2
set e 2
set g d
mul g e
sub g b
jnz g 2
set f 0
sub e -1
set g e
sub g b
jnz g -8
sub d -1
set g d
sub g b
jnz g -13
jnz f 2
sub h -1
set g b
sub g c
jnz g 2
jnz 1 3
sub b -17
jnz 1 -23`

func TestProfile(t *testing.T) {
	prog := asm.MustParse(puzzleProgram, asm.Coprocessor)
	got, err := Profile(context.Background(), prog)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	// With a=0 only b=57 is tested: d and e each range over [2, 57).
	if want := 55 * 55; got != want {
		t.Errorf("Profile() = %d, want %d", got, want)
	}
}

func TestProfileRejectsDuetProgram(t *testing.T) {
	prog := asm.MustParse("snd 1", asm.Duet)
	if _, err := Profile(context.Background(), prog); err == nil {
		t.Error("Profile should reject a duet program")
	}
}

func TestProfileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prog := asm.MustParse("jnz 1 0", asm.Coprocessor)
	if _, err := Profile(ctx, prog); !errors.Is(err, context.Canceled) {
		t.Errorf("Profile error = %v, want context.Canceled", err)
	}
}

func TestSeed(t *testing.T) {
	seed, err := Seed(asm.MustParse(puzzleProgram, asm.Coprocessor))
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed != 57 {
		t.Errorf("Seed() = %d, want 57", seed)
	}

	for _, src := range []string{"", "set a 57", "set b c", "mul b 2"} {
		if _, err := Seed(asm.MustParse(src, asm.Coprocessor)); !errors.Is(err, ErrNoSeed) {
			t.Errorf("Seed(%q) error = %v, want ErrNoSeed", src, err)
		}
	}
}

func TestCountComposites(t *testing.T) {
	// Brute force over the same range as the original translation.
	brute := func(seed int) int {
		count := 0
		for n := seed*100 + 100_000; n <= seed*100+117_000; n += 17 {
			for d := 2; d < n-1; d++ {
				if n%d == 0 {
					count++
					break
				}
			}
		}
		return count
	}

	for _, seed := range []int{57, 65, 81} {
		if got, want := CountComposites(seed), brute(seed); got != want {
			t.Errorf("CountComposites(%d) = %d, want %d", seed, got, want)
		}
	}
}

func TestIsPrime(t *testing.T) {
	primes := []int{2, 3, 5, 7, 11, 105701}
	for _, n := range primes {
		if !isPrime(n) {
			t.Errorf("isPrime(%d) = false", n)
		}
	}
	for _, n := range []int{0, 1, 4, 9, 105700, 105703} {
		if isPrime(n) {
			t.Errorf("isPrime(%d) = true", n)
		}
	}
}
