package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/vmsim"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

var (
	cowPages  int
	cowWrites int
)

func init() {
	cmd := newCowCmd()
	cmd.Flags().IntVar(&cowPages, "pages", 16, "Pages mapped in the parent before fork")
	cmd.Flags().IntVar(&cowWrites, "writes", 8, "Pages the child writes after fork")
	rootCmd.AddCommand(cmd)
}

func newCowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cow",
		Short: "Fork an address space and drive copy-on-write faults",
		Long: `The cow command maps pages in a parent address space, forks a child that
shares them copy-on-write, and has the child write to some of them. It checks
that the parent never sees the child's writes and that tearing both spaces
down returns every page to the pool.

Example:
  pagectl cow --pages 64 --writes 32
  pagectl cow --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCow()
		},
	}
	return cmd
}

type cowReport struct {
	Pages        int          `json:"pages"`
	Writes       int          `json:"writes"`
	ChildFaults  int          `json:"child_faults"`
	ParentFaults int          `json:"parent_faults"`
	Stats        kalloc.Stats `json:"stats"`
}

func runCow() error {
	if cowPages < 1 || cowWrites < 0 || cowWrites > cowPages {
		return fmt.Errorf("need 0 <= writes <= pages and pages > 0")
	}
	m, err := boot()
	if err != nil {
		return err
	}
	defer m.Close()

	bootFree := m.alloc.FreePages()
	parent := vmsim.New(m.alloc, m.mem)
	for i := range cowPages {
		va := uint64(i * format.PageSize)
		if err := parent.Map(va); err != nil {
			return fmt.Errorf("failed to map parent page %d: %w", i, err)
		}
		if err := parent.Write(va, stamp("parent", i)); err != nil {
			return err
		}
	}

	child, err := parent.Fork()
	if err != nil {
		return fmt.Errorf("fork failed: %w", err)
	}
	printVerbose("Forked %d shared pages, %d free\n", parent.Len(), m.alloc.FreePages())

	for i := range cowWrites {
		if err := child.Write(uint64(i*format.PageSize), stamp("child", i)); err != nil {
			return fmt.Errorf("child write %d: %w", i, err)
		}
	}

	// The parent must still see its own data, and its writes to pages the
	// child already copied find it as sole owner.
	for i := range cowPages {
		va := uint64(i * format.PageSize)
		want := stamp("parent", i)
		got, err := parent.Read(va, len(want))
		if err != nil {
			return err
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("parent page %d saw child write: %q", i, got)
		}
	}
	for i := range cowWrites {
		if err := parent.Write(uint64(i*format.PageSize), stamp("parent", i)); err != nil {
			return err
		}
	}

	report := cowReport{
		Pages:        cowPages,
		Writes:       cowWrites,
		ChildFaults:  child.Faults(),
		ParentFaults: parent.Faults(),
		Stats:        m.alloc.Stats(),
	}

	if err := child.Release(); err != nil {
		return err
	}
	if err := parent.Release(); err != nil {
		return err
	}
	if free := m.alloc.FreePages(); free != bootFree {
		return fmt.Errorf("leaked %d pages after teardown", bootFree-free)
	}
	if err := m.alloc.Verify(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(report)
	}
	printInfo("\nCopy-on-write: %s pages shared, %s written by child\n", count(report.Pages), count(report.Writes))
	printInfo("  Child faults:  %s\n", count(report.ChildFaults))
	printInfo("  Parent faults: %s\n", count(report.ParentFaults))
	printStats(report.Stats)
	printInfo("\nAll %s pages returned to the pool\n", count(bootFree))
	return nil
}

func stamp(who string, i int) []byte {
	return []byte(fmt.Sprintf("%s page %d", who, i))
}
