package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Memory layout
	baseAddr  uint64
	kernelEnd uint64
	topAddr   uint64
	useHeap   bool
)

const (
	defaultKernelEnd = format.KernBase + 1<<20
)

var rootCmd = &cobra.Command{
	Use:   "pagectl",
	Short: "Boot and exercise a physical page allocator",
	Long: `pagectl boots the reference-counted physical page allocator over a
window of simulated RAM and drives it: reporting the layout, draining the pool,
running concurrent stress loops, and forking copy-on-write address spaces.

Addresses accept any Go integer literal (0x80000000, 2147483648).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().Uint64Var(&baseAddr, "base", format.KernBase, "Lowest address of simulated RAM")
	rootCmd.PersistentFlags().Uint64Var(&kernelEnd, "kernel-end", defaultKernelEnd, "End of the kernel image; pages below it are never managed")
	rootCmd.PersistentFlags().Uint64Var(&topAddr, "top", format.PhysTop, "Exclusive top of simulated RAM")
	rootCmd.PersistentFlags().BoolVar(&useHeap, "heap", false, "Back RAM with a Go slice instead of an anonymous mapping")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// machine is simulated RAM plus the allocator managing it.
type machine struct {
	mem   *phys.Memory
	alloc *kalloc.Allocator
}

func (m *machine) Close() error { return m.mem.Close() }

// boot maps RAM from the global layout flags and initializes the allocator.
func boot() (*machine, error) {
	base := phys.Addr(baseAddr).RoundDown()
	top := phys.Addr(topAddr).RoundDown()

	printVerbose("Mapping RAM %s\n", phys.Range{Start: base, End: top})
	mem, err := phys.Open(base, top, &phys.Options{Heap: useHeap})
	if err != nil {
		return nil, fmt.Errorf("failed to map RAM: %w", err)
	}

	a, err := kalloc.New(mem, phys.Addr(kernelEnd), top, &kalloc.Options{Logger: logger()})
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("failed to boot allocator: %w", err)
	}
	return &machine{mem: mem, alloc: a}, nil
}

// logger returns the allocator logger for the current flags. nil selects the
// allocator's own default.
func logger() *slog.Logger {
	if !verbose || quiet {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Helper functions for output

var printer = message.NewPrinter(language.English)

// count formats an integer with thousands separators.
func count(n any) string {
	return printer.Sprintf("%d", n)
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printStats prints the allocator counters.
func printStats(s kalloc.Stats) {
	printInfo("\nCounters:\n")
	printInfo("  Allocations:     %s (%s failed)\n", count(s.AllocCalls), count(s.AllocFailures))
	printInfo("  Frees:           %s (%s reclaimed)\n", count(s.FreeCalls), count(s.PagesReclaimed))
	printInfo("  COW copies:      %s (%s sole-owner)\n", count(s.CowCopies), count(s.CowShortcuts))
	if s.Violations > 0 {
		printInfo("  Violations:      %s\n", count(s.Violations))
	}
}
