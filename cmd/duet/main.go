// duet CLI - runs, inspects and assembles duet and coprocessor programs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/duet/journal"
	"github.com/chazu/duet/manifest"
	"github.com/chazu/duet/pkg/asm"
	"github.com/chazu/duet/pkg/coprocessor"
	"github.com/chazu/duet/pkg/duet"
	"github.com/chazu/duet/pkg/image"
	"github.com/chazu/duet/server"
	"github.com/chazu/duet/vm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// usageError is reported with exit status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type options struct {
	configDir string
	verbose   bool
	verbosity int
	trace     bool
	maxRounds int
	journal   string
	variant   string
	output    string
	set       string
	limit     int
}

// env is everything a command needs.
type env struct {
	opts     options
	manifest *manifest.Manifest
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	log      commonlog.Logger
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("duet", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configDir, "config", "", "Directory containing duet.toml (default: search upward from the working directory)")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.IntVar(&opts.verbosity, "verbosity", 0, "Log verbosity (overrides [log] verbosity)")
	fs.BoolVar(&opts.trace, "trace", false, "Log every executed instruction")
	fs.IntVar(&opts.maxRounds, "max-rounds", 0, "Stop a duet run after this many rounds (0 = unlimited)")
	fs.StringVar(&opts.journal, "journal", "", "Record runs in this SQLite journal")
	fs.StringVar(&opts.variant, "variant", "simple", "Coprocessor variant: simple or complex")
	fs.StringVar(&opts.output, "o", "", "Output path for assemble (default: input with .dimg extension)")
	fs.StringVar(&opts.set, "set", "", "Instruction set for disasm, assemble and lsp: duet or coprocessor")
	fs.IntVar(&opts.limit, "n", 20, "Number of entries shown by history")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: duet [options] <command> [input]\n\n")
		fmt.Fprintf(stderr, "Input is a program file, a .dimg image, or stdin when omitted.\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  sound         Recover the first frequency (sound dialect)\n")
		fmt.Fprintf(stderr, "  duet          Run two programs until deadlock and count program 1's sends\n")
		fmt.Fprintf(stderr, "  coprocessor   Count mul instructions, or with -variant complex, composites\n")
		fmt.Fprintf(stderr, "  disasm        Print a listing of the program\n")
		fmt.Fprintf(stderr, "  assemble      Write a CBOR program image\n")
		fmt.Fprintf(stderr, "  history       Show journaled runs (optional puzzle filter)\n")
		fmt.Fprintf(stderr, "  lsp           Run the language server on stdio\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  duet duet input.txt                    # Part two answer\n")
		fmt.Fprintf(stderr, "  duet -v -max-rounds 1000000 duet in.txt # Print the halt reason too\n")
		fmt.Fprintf(stderr, "  duet -o prog.dimg assemble input.txt   # Assemble, then run with: duet sound prog.dimg\n")
		fmt.Fprintf(stderr, "  duet -variant complex coprocessor 57   # Composites for seed 57\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	m, err := loadManifest(opts.configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags override duet.toml.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbosity":
			m.Log.Verbosity = opts.verbosity
		case "trace":
			m.Run.Trace = opts.trace
		case "max-rounds":
			m.Run.MaxRounds = opts.maxRounds
		case "journal":
			m.Journal.Enabled = true
			if abs, err := filepath.Abs(opts.journal); err == nil {
				m.Journal.Path = abs
			}
		}
	})
	if m.Run.Trace && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}
	commonlog.Configure(m.Log.Verbosity, m.LogFile())

	e := &env{
		opts:     opts,
		manifest: m,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		log:      commonlog.GetLogger("duet"),
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if err := e.dispatch(ctx, cmd, rest); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func (e *env) dispatch(ctx context.Context, cmd string, args []string) error {
	if len(args) > 1 {
		return usagef("%s: expected at most one input, got %d", cmd, len(args))
	}
	input := ""
	if len(args) == 1 {
		input = args[0]
	}

	switch cmd {
	case "sound":
		return e.sound(ctx, input)
	case "duet":
		return e.duet(ctx, input)
	case "coprocessor":
		return e.coprocessor(ctx, input)
	case "disasm":
		return e.disasm(input)
	case "assemble":
		return e.assemble(input)
	case "history":
		return e.history(ctx, input)
	case "lsp":
		return e.lsp()
	default:
		return usagef("unknown command %q", cmd)
	}
}

// --- Commands ---

func (e *env) sound(ctx context.Context, input string) error {
	prog, err := e.readProgram(input, asm.Duet)
	if err != nil {
		return err
	}
	start := time.Now()
	freq, err := duet.Recover(ctx, prog, e.machineOptions()...)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, freq)
	return e.record(ctx, journal.Entry{
		Puzzle:    "sound",
		InputHash: hashOf(prog),
		Answer:    freq,
		Duration:  time.Since(start),
	})
}

func (e *env) duet(ctx context.Context, input string) error {
	prog, err := e.readProgram(input, asm.Duet)
	if err != nil {
		return err
	}
	start := time.Now()
	out, err := duet.Solve(ctx, prog, duet.Options{
		IDRegister: e.manifest.IDRegister(),
		MaxRounds:  e.manifest.Run.MaxRounds,
		Trace:      e.manifest.Run.Trace,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, out.Answer())
	if e.opts.verbose {
		fmt.Fprintln(e.stderr, out)
	}
	return e.record(ctx, journal.Entry{
		Puzzle:    "duet",
		InputHash: hashOf(prog),
		Answer:    int64(out.Answer()),
		Halt:      out.Halt.String(),
		Rounds:    out.Rounds,
		Duration:  time.Since(start),
	})
}

func (e *env) coprocessor(ctx context.Context, input string) error {
	start := time.Now()
	switch e.opts.variant {
	case "simple":
		prog, err := e.readProgram(input, asm.Coprocessor)
		if err != nil {
			return err
		}
		muls, err := coprocessor.Profile(ctx, prog, e.machineOptions()...)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, muls)
		return e.record(ctx, journal.Entry{
			Puzzle:    "coprocessor",
			InputHash: hashOf(prog),
			Answer:    int64(muls),
			Duration:  time.Since(start),
		})

	case "complex":
		seed, hash, err := e.readSeed(input)
		if err != nil {
			return err
		}
		n := coprocessor.CountComposites(seed)
		fmt.Fprintln(e.stdout, n)
		return e.record(ctx, journal.Entry{
			Puzzle:    "coprocessor-complex",
			InputHash: hash,
			Answer:    int64(n),
			Duration:  time.Since(start),
		})

	default:
		return usagef("unknown coprocessor variant %q (want simple or complex)", e.opts.variant)
	}
}

func (e *env) disasm(input string) error {
	set, err := e.instructionSet(asm.Duet)
	if err != nil {
		return err
	}
	prog, err := e.readProgram(input, set)
	if err != nil {
		return err
	}
	name := input
	if name == "" {
		name = "stdin"
	}
	fmt.Fprint(e.stdout, prog.DisassembleWithName(filepath.Base(name)))
	return nil
}

func (e *env) assemble(input string) error {
	set, err := e.instructionSet(asm.Duet)
	if err != nil {
		return err
	}
	out := e.opts.output
	if out == "" {
		if input == "" {
			return usagef("assemble: -o is required when reading stdin")
		}
		out = strings.TrimSuffix(input, filepath.Ext(input)) + image.Ext
	}
	prog, err := e.readProgram(input, set)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(out), image.Ext)
	img, err := image.WriteFile(out, name, prog)
	if err != nil {
		return err
	}
	if e.opts.verbose {
		fmt.Fprintf(e.stdout, "Wrote %s (%d instructions, %s)\n", out, len(img.Instructions), img.HashString())
	}
	return nil
}

func (e *env) history(ctx context.Context, puzzle string) error {
	j, err := journal.Open(ctx, e.manifest.JournalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(ctx, puzzle, e.opts.limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		hash := entry.InputHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(e.stdout, "%s  %-20s %-12s %12d  %-9s %s\n",
			entry.CreatedAt.Local().Format(time.DateTime), entry.Puzzle, hash,
			entry.Answer, entry.Halt, entry.Duration.Round(time.Microsecond))
	}
	return nil
}

func (e *env) lsp() error {
	var set asm.InstructionSet
	if e.opts.set != "" {
		var err error
		if set, err = asm.ParseInstructionSet(e.opts.set); err != nil {
			return usagef("%v", err)
		}
	}
	return server.NewLSP(set).Run()
}

// --- Helpers ---

func (e *env) machineOptions() []vm.Option {
	if !e.manifest.Run.Trace {
		return nil
	}
	return []vm.Option{vm.WithTrace(commonlog.GetLogger("duet.vm"))}
}

func (e *env) instructionSet(fallback asm.InstructionSet) (asm.InstructionSet, error) {
	if e.opts.set == "" {
		return fallback, nil
	}
	set, err := asm.ParseInstructionSet(e.opts.set)
	if err != nil {
		return 0, usagef("%v", err)
	}
	return set, nil
}

// readProgram decodes input, a source file, an image or stdin when empty.
func (e *env) readProgram(input string, set asm.InstructionSet) (*asm.Program, error) {
	if filepath.Ext(input) == image.Ext {
		prog, err := image.Load(input)
		if err != nil {
			return nil, err
		}
		if prog.Set != set {
			return nil, fmt.Errorf("%s: image holds a %s program, want %s", input, prog.Set, set)
		}
		e.log.Debugf("loaded image %s", input)
		return prog, nil
	}

	src, err := e.readInput(input)
	if err != nil {
		return nil, err
	}
	prog, err := asm.Parse(src, set)
	if err != nil {
		if input != "" {
			return nil, fmt.Errorf("%s: %w", input, err)
		}
		return nil, err
	}
	e.log.Debugf("decoded %d instructions", prog.Len())
	return prog, nil
}

func (e *env) readInput(input string) (string, error) {
	var (
		data []byte
		err  error
	)
	if input == "" || input == "-" {
		data, err = io.ReadAll(e.stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readSeed accepts a seed integer or a coprocessor program starting with
// set b <seed>.
func (e *env) readSeed(input string) (int, string, error) {
	if n, err := strconv.Atoi(input); err == nil {
		return n, "seed:" + input, nil
	}
	prog, err := e.readProgram(input, asm.Coprocessor)
	if err != nil {
		return 0, "", err
	}
	seed, err := coprocessor.Seed(prog)
	if err != nil {
		return 0, "", err
	}
	return seed, hashOf(prog), nil
}

func (e *env) record(ctx context.Context, entry journal.Entry) error {
	if !e.manifest.Journal.Enabled {
		return nil
	}
	j, err := journal.Open(ctx, e.manifest.JournalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	prev, ok, err := j.Lookup(ctx, entry.Puzzle, entry.InputHash)
	if err != nil {
		return err
	}
	if ok && prev.Answer != entry.Answer {
		e.log.Warningf("%s answer changed from %d (run %s) to %d", entry.Puzzle, prev.Answer, prev.ID, entry.Answer)
	}

	entry, err = j.Record(ctx, entry)
	if err != nil {
		return err
	}
	e.log.Infof("journaled %s run %s", entry.Puzzle, entry.ID)
	return nil
}

func hashOf(prog *asm.Program) string {
	return fmt.Sprintf("%x", image.HashProgram(prog))
}
