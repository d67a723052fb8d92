package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"wasmstack/internal/config"
	"wasmstack/pkg/color"
	"wasmstack/pkg/interpreter"
	"wasmstack/pkg/lexer"
	"wasmstack/pkg/parser"
	"wasmstack/pkg/stack"
)

type Runner struct {
	Help           bool     // Show help message
	Verbose        bool     // Enable verbose output
	NoColor        bool     // Disable colored output
	Dump           bool     // Print the stack as YAML when a trap occurs
	Trace          bool     // Print every executed instruction
	Invoke         string   // Exported function to call
	MaxCallDepth   int      // Activation limit (0 = unlimited)
	MaxStackHeight int      // Frame limit (0 = unlimited)
	MaxSteps       int      // Instruction limit (0 = unlimited)
	ConfigFile     string   // Path to an optional YAML config file
	SourceFile     string   // Path to the source file
	Args           []string // Arguments of the invoked function

	Out io.Writer // Program output, os.Stdout when nil
}

// Configure takes every setting that was not given as a flag from cfg
func (opts *Runner) Configure(cfg config.Config, isSet func(flag string) bool) {
	if !isSet("i") {
		opts.Invoke = cfg.Invoke
	}
	if !isSet("d") {
		opts.MaxCallDepth = cfg.MaxCallDepth
	}
	if !isSet("s") {
		opts.MaxStackHeight = cfg.MaxStackHeight
	}
	if !isSet("m") {
		opts.MaxSteps = cfg.MaxSteps
	}
	if len(opts.Args) == 0 {
		opts.Args = cfg.Args
	}
}

// Run parses the source file, invokes the selected export and prints its
// results, or the trap that ended it.
func (opts *Runner) Run() error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	log.Info("Processing file", "file", opts.SourceFile)

	input, err := os.ReadFile(opts.SourceFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.SourceFile, err)
	}

	p := parser.NewParser(lexer.NewLexer(string(input)))
	mod, err := p.Parse()
	if err != nil {
		fmt.Fprintln(out, color.BrightRedText("=== Syntax Errors ==="))
		for _, msg := range p.Errors() {
			fmt.Fprintln(out, msg)
		}
		return fmt.Errorf("parsing failed: %w", err)
	}

	if opts.Verbose {
		printModule(out, mod)
	}

	_, f, ok := mod.Export(opts.Invoke)
	if !ok {
		return fmt.Errorf("%w: %q (exports: %s)", interpreter.ErrExportNotFound, opts.Invoke, strings.Join(mod.ExportNames(), ", "))
	}
	args, err := parseArgs(f.Params, opts.Args)
	if err != nil {
		return err
	}

	iopts := []interpreter.Option{
		interpreter.WithMaxCallDepth(opts.MaxCallDepth),
		interpreter.WithMaxStackHeight(opts.MaxStackHeight),
		interpreter.WithMaxSteps(opts.MaxSteps),
	}
	if opts.Trace {
		iopts = append(iopts, interpreter.WithWriter(out))
	}
	it := interpreter.NewInterpreter(mod, iopts...)

	log.Info("Invoking", "func", opts.Invoke, "args", args)
	results, err := it.Invoke(opts.Invoke, args...)
	if err != nil {
		var trap *interpreter.Trap
		if errors.As(err, &trap) {
			fmt.Fprintln(out, color.Trap(trap.Error()))
			if opts.Dump {
				if derr := dumpStack(out, trap, it); derr != nil {
					log.Error("Failed to dump stack", "error", derr)
				}
			}
		}
		return fmt.Errorf("execution failed: %w", err)
	}
	log.Debug("Finished", "func", opts.Invoke, "steps", it.Steps())

	fmt.Fprintln(out, color.GreenText("=== Results ==="))
	if len(results) == 0 {
		fmt.Fprintln(out, color.GrayText("No results."))
	}
	for _, v := range results {
		fmt.Fprintln(out, color.Result(v.Type().String(), formatValue(v)))
	}
	return nil
}

// parseArgs converts command line literals to values of the parameter types
func parseArgs(params []stack.ValueType, raw []string) ([]stack.Value, error) {
	if len(raw) != len(params) {
		return nil, fmt.Errorf("%w: want %d arguments, have %d", interpreter.ErrArgumentMismatch, len(params), len(raw))
	}
	args := make([]stack.Value, len(raw))
	for i, lit := range raw {
		v, err := parser.ParseValue(params[i], lit)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func formatValue(v stack.Value) string {
	switch v.Type() {
	case stack.ValueTypeI32:
		n, _ := v.I32()
		return strconv.FormatInt(int64(n), 10)
	case stack.ValueTypeI64:
		n, _ := v.I64()
		return strconv.FormatInt(n, 10)
	case stack.ValueTypeF32:
		f, _ := v.F32()
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case stack.ValueTypeF64:
		f, _ := v.F64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v.String()
}

type stackDump struct {
	Trap  string            `yaml:"trap"`
	Steps int               `yaml:"steps"`
	Stack []stack.FrameInfo `yaml:"stack"`
}

func dumpStack(w io.Writer, trap *interpreter.Trap, it *interpreter.Interpreter) error {
	fmt.Fprintln(w, color.YellowText("=== Stack at trap ==="))

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stackDump{Trap: trap.Err.Error(), Steps: it.Steps(), Stack: it.Snapshot()}); err != nil {
		return fmt.Errorf("encode stack: %w", err)
	}
	return enc.Close()
}

func printModule(w io.Writer, mod *parser.Module) {
	fmt.Fprintln(w, color.GreenText("=== Functions ==="))
	for idx, f := range mod.Funcs {
		fmt.Fprintf(w, "%s: %s %s -> %s\n",
			color.CyanText(strconv.Itoa(idx)),
			color.BoldText(f.Name),
			color.BlueText(typeList(f.Params)),
			color.BlueText(typeList(f.Results)))

		for pc, in := range f.Body {
			fmt.Fprintf(w, "  %s: %s\n", color.GrayText(strconv.Itoa(pc)), color.YellowText(in.String()))
		}
	}
}

func typeList(ts []stack.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return "(" + strings.Join(names, " ") + ")"
}
