package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"wasmstack/internal/config"
	"wasmstack/internal/logger"
	"wasmstack/internal/runner"
	"wasmstack/pkg/color"
	"wasmstack/pkg/stack"
)

// Main entry point for the wasmstack interpreter.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.Dump, "dump", false, "Dump the stack as YAML on trap")
	flag.BoolVar(&options.Trace, "t", false, "Trace executed instructions")
	flag.StringVar(&options.Invoke, "i", "main", "Exported function to invoke")
	flag.IntVar(&options.MaxCallDepth, "d", stack.DefaultMaxCallDepth, "Maximum call depth (0 = unlimited)")
	flag.IntVar(&options.MaxStackHeight, "s", stack.DefaultMaxHeight, "Maximum stack height in frames (0 = unlimited)")
	flag.IntVar(&options.MaxSteps, "m", 0, "Maximum executed instructions (0 = unlimited)")
	flag.StringVar(&options.ConfigFile, "config", "", "YAML config file")

	flag.Parse()
	args := flag.Args()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] <file.wat> [args...]\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.SourceFile = args[0]
	options.Args = args[1:]

	if options.ConfigFile != "" {
		cfg, err := config.Load(options.ConfigFile)
		if err != nil {
			log.Fatal("Failed to load config", "error", err)
		}

		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		options.Configure(cfg, func(name string) bool { return set[name] })
	}

	err := options.Run()
	if err != nil {
		log.Fatal("Execution failed", "error", err)
	}
}
