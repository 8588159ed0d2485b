package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

var (
	drainRelease bool
)

func init() {
	cmd := newDrainCmd()
	cmd.Flags().BoolVar(&drainRelease, "release", false, "Free every page again and check the pool is whole")
	rootCmd.AddCommand(cmd)
}

func newDrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Allocate pages until the pool is empty",
		Long: `The drain command allocates pages until the allocator reports that none
are left, then reports how much memory it obtained. With --release every page
is freed again and the allocator state is verified.

Example:
  pagectl drain
  pagectl drain --release --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain()
		},
	}
	return cmd
}

type drainReport struct {
	Pages    int          `json:"pages"`
	KiB      int          `json:"kib"`
	Released bool         `json:"released"`
	Stats    kalloc.Stats `json:"stats"`
}

func runDrain() error {
	m, err := boot()
	if err != nil {
		return err
	}
	defer m.Close()

	var got []phys.Addr
	for {
		pa, ok := m.alloc.Alloc()
		if !ok {
			break
		}
		got = append(got, pa)
	}
	printVerbose("Pool empty after %d allocations\n", len(got))

	if len(got) != m.alloc.Range().Pages() {
		return fmt.Errorf("drained %d pages, allocator manages %d", len(got), m.alloc.Range().Pages())
	}

	if drainRelease {
		for _, pa := range got {
			if err := m.alloc.Free(pa); err != nil {
				return fmt.Errorf("failed to free %s: %w", pa, err)
			}
		}
		if err := m.alloc.Verify(); err != nil {
			return fmt.Errorf("allocator inconsistent after release: %w", err)
		}
	}

	report := drainReport{
		Pages:    len(got),
		KiB:      len(got) * format.PageSize / 1024,
		Released: drainRelease,
		Stats:    m.alloc.Stats(),
	}
	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nDrained %s pages (%s KiB)\n", count(report.Pages), count(report.KiB))
	if drainRelease {
		printInfo("Released all pages, %s free\n", count(report.Stats.FreePages))
	}
	printStats(report.Stats)
	return nil
}
