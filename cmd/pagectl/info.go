package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/mmfile"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Boot the allocator and report the memory layout",
		Long: `The info command maps simulated RAM, boots the allocator and reports the
managed range, the size of the reference-count table and the number of pages
in the free pool.

Example:
  pagectl info
  pagectl info --top 0x81000000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

type infoReport struct {
	RAMStart     string `json:"ram_start"`
	RAMEnd       string `json:"ram_end"`
	KernelEnd    string `json:"kernel_end"`
	ManagedStart string `json:"managed_start"`
	ManagedEnd   string `json:"managed_end"`
	PageSize     int    `json:"page_size"`
	HostPageSize int    `json:"host_page_size"`
	Pages        int    `json:"pages"`
	FreePages    int    `json:"free_pages"`
	TableBytes   int    `json:"table_bytes"`
	Backing      string `json:"backing"`
}

func runInfo() error {
	m, err := boot()
	if err != nil {
		return err
	}
	defer m.Close()

	ram := m.mem.Bounds()
	managed := m.alloc.Range()
	pages := managed.Pages()
	backing := "mmap"
	if useHeap {
		backing = "heap"
	}

	report := infoReport{
		RAMStart:     ram.Start.String(),
		RAMEnd:       ram.End.String(),
		KernelEnd:    fmt.Sprintf("0x%x", kernelEnd),
		ManagedStart: managed.Start.String(),
		ManagedEnd:   managed.End.String(),
		PageSize:     format.PageSize,
		HostPageSize: mmfile.HostPageSize(),
		Pages:        pages,
		FreePages:    m.alloc.FreePages(),
		TableBytes:   pages * 4,
		Backing:      backing,
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nMemory Layout:\n")
	printInfo("  RAM:          %s (%s)\n", ram, backing)
	printInfo("  Kernel end:   %s\n", report.KernelEnd)
	printInfo("  Managed:      %s\n", managed)
	printInfo("  Page size:    %s bytes (host %s)\n", count(report.PageSize), count(report.HostPageSize))
	printInfo("\nAllocator:\n")
	printInfo("  Pages:        %s\n", count(report.Pages))
	printInfo("  Free pages:   %s\n", count(report.FreePages))
	printInfo("  Ref table:    %s bytes\n", count(report.TableBytes))
	return nil
}
