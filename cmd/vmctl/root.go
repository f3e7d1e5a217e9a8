package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/vmcore/internal/logger"
	"github.com/joshuapare/vmcore/pkg/config"
	"github.com/joshuapare/vmcore/vm"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
	logDir     string
)

var rootCmd = &cobra.Command{
	Use:   "vmctl",
	Short: "Boot a simulated machine and exercise its memory system",
	Long: `vmctl boots a simulated single-CPU MIPS machine and drives its kernel
memory system: the physical frame allocator, per-process address spaces and
the TLB fault handler.

Machines are described by a JSON or YAML file (--config); without one the
default 4MB machine is used.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Machine description file (.json, .yaml)")
	rootCmd.PersistentFlags().
		StringVar(&logDir, "log-dir", "", "Write JSON debug logs to this directory")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// loadMachine returns the machine from --config, or the default machine.
func loadMachine() (config.Machine, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	printVerbose("Loading machine: %s\n", configPath)
	return config.Load(configPath)
}

// setupLogging routes kernel logs to --log-dir, or to stderr with
// --verbose, at the machine's log level.
func setupLogging(m config.Machine) error {
	level, err := logger.ParseLevel(m.LogLevel)
	if err != nil {
		return err
	}
	opts := logger.Options{Level: level}
	switch {
	case logDir != "":
		opts.Enabled = true
		opts.LogDir = logDir
	case verbose && !quiet:
		opts.Enabled = true
		opts.Writer = os.Stderr
	}
	return logger.Init(opts)
}

// bootMachine loads the machine, enables logging and bootstraps the VM.
// The caller must Close the result.
func bootMachine() (*vm.VM, error) {
	m, err := loadMachine()
	if err != nil {
		return nil, err
	}
	if err := setupLogging(m); err != nil {
		return nil, err
	}

	v, err := vm.New(m)
	if err != nil {
		return nil, err
	}
	if err := v.Bootstrap(); err != nil {
		_ = v.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return v, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
