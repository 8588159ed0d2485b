package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

var (
	stressWorkers  int
	stressDuration time.Duration
	stressBatch    int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Number of concurrent workers")
	cmd.Flags().DurationVar(&stressDuration, "duration", time.Second, "How long to run")
	cmd.Flags().IntVar(&stressBatch, "batch", 8, "Pages each worker holds before freeing")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent alloc/free loops and check for duplicate pages",
		Long: `The stress command runs workers that allocate, stamp, share and free
pages concurrently. Every allocated page is recorded in an ownership registry;
a page handed out twice, or a stamp overwritten while owned, fails the run.

Example:
  pagectl stress --workers 8 --duration 5s
  pagectl stress --top 0x80100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
	return cmd
}

type stressReport struct {
	Workers     int          `json:"workers"`
	Duration    string       `json:"duration"`
	Rounds      uint64       `json:"rounds"`
	Duplicates  uint64       `json:"duplicates"`
	Corruptions uint64       `json:"corruptions"`
	Stats       kalloc.Stats `json:"stats"`
}

// stressRun tracks which worker owns each page.
type stressRun struct {
	m *machine

	owners      sync.Map // phys.Addr -> worker id
	rounds      atomic.Uint64
	duplicates  atomic.Uint64
	corruptions atomic.Uint64
}

func runStress(ctx context.Context) error {
	if stressWorkers < 1 || stressBatch < 1 {
		return fmt.Errorf("workers and batch must be positive")
	}
	m, err := boot()
	if err != nil {
		return err
	}
	defer m.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, stressDuration)
	defer cancel()

	run := &stressRun{m: m}
	var wg sync.WaitGroup
	errs := make(chan error, stressWorkers)
	for w := range stressWorkers {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if err := run.worker(ctx, id); err != nil {
				errs <- err
			}
		}(uint64(w + 1))
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}

	if err := m.alloc.Verify(); err != nil {
		return fmt.Errorf("allocator inconsistent after stress: %w", err)
	}

	report := stressReport{
		Workers:     stressWorkers,
		Duration:    stressDuration.String(),
		Rounds:      run.rounds.Load(),
		Duplicates:  run.duplicates.Load(),
		Corruptions: run.corruptions.Load(),
		Stats:       m.alloc.Stats(),
	}
	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printInfo("\nStress: %d workers for %s\n", report.Workers, report.Duration)
		printInfo("  Rounds:       %s\n", count(report.Rounds))
		printInfo("  Duplicates:   %s\n", count(report.Duplicates))
		printInfo("  Corruptions:  %s\n", count(report.Corruptions))
		printStats(report.Stats)
	}

	if report.Duplicates > 0 || report.Corruptions > 0 {
		return fmt.Errorf("allocator handed out shared pages: %d duplicates, %d corruptions",
			report.Duplicates, report.Corruptions)
	}
	return nil
}

// worker repeatedly fills a batch, takes and drops an extra reference on
// each page, checks its stamps and frees the batch.
func (r *stressRun) worker(ctx context.Context, id uint64) error {
	held := make([]phys.Addr, 0, stressBatch)
	for ctx.Err() == nil {
		for len(held) < stressBatch {
			pa, ok := r.m.alloc.Alloc()
			if !ok {
				break
			}
			if prev, loaded := r.owners.LoadOrStore(pa, id); loaded {
				r.duplicates.Add(1)
				printVerbose("page %s owned by worker %v handed to worker %d\n", pa, prev, id)
				continue
			}
			if err := r.m.mem.WriteWord(pa, id); err != nil {
				return err
			}
			held = append(held, pa)
		}
		if len(held) == 0 {
			runtime.Gosched()
			continue
		}

		for _, pa := range held {
			if err := r.m.alloc.IncRef(pa); err != nil {
				return err
			}
			if err := r.m.alloc.Free(pa); err != nil {
				return err
			}
			if v, err := r.m.mem.ReadWord(pa); err != nil {
				return err
			} else if v != id {
				r.corruptions.Add(1)
			}
		}

		for _, pa := range held {
			r.owners.Delete(pa)
			if err := r.m.alloc.Free(pa); err != nil {
				return err
			}
		}
		held = held[:0]
		r.rounds.Add(1)
	}
	return nil
}
