package kalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
)

const ramBase = phys.Addr(format.KernBase)

// kernelEnd sits part-way into the first page, like a linker-provided end symbol.
const kernelEnd = ramBase + 0x123

// newTestAllocator creates an allocator managing exactly pages pages, with the
// first page of RAM standing in for the kernel image.
func newTestAllocator(t testing.TB, pages int, opts *Options) (*Allocator, *phys.Memory) {
	t.Helper()
	top := ramBase + phys.Addr((pages+1)*format.PageSize)
	mem, err := phys.Open(ramBase, top, &phys.Options{Heap: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	a, err := New(mem, kernelEnd, top, opts)
	require.NoError(t, err)
	return a, mem
}

// fatalRecorder is a FatalHandler that records instead of halting.
type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *fatalRecorder) handle(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *fatalRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *fatalRecorder) last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

// pageAt returns the n-th managed page.
func pageAt(a *Allocator, n int) phys.Addr {
	return a.Range().Start + phys.Addr(n*format.PageSize)
}

func mustPage(t testing.TB, mem *phys.Memory, pa phys.Addr) []byte {
	t.Helper()
	pg, err := mem.Page(pa)
	require.NoError(t, err)
	return pg
}
