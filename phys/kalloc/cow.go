package kalloc

import (
	"fmt"

	"github.com/joshuapare/pagekit/phys"
)

// CowAlloc returns a page the caller may write without affecting other
// sharers of pa.
//
// If the caller is the only owner, pa itself is returned and no counts change.
// Otherwise a new page is allocated, pa's contents are copied into it, and the
// caller's reference on pa is dropped. The returned page has one owner.
//
// The reference on pa goes through the normal free path, so when every sharer
// promotes at once the last one to finish returns pa to the pool.
//
// If no page is free, CowAlloc returns ErrOutOfMemory, or reports it through
// Options.Fatal when FatalOnCowOOM is set. Either way pa is left untouched.
func (a *Allocator) CowAlloc(pa phys.Addr) (phys.Addr, error) {
	n, err := a.RefCount(pa)
	if err != nil {
		return 0, err
	}
	if n <= 1 {
		a.stats.cowShortcuts.Add(1)
		return pa, nil
	}

	npa, ok := a.Alloc()
	if !ok {
		a.log.Warn("kalloc: cow out of memory", "addr", pa, "refs", n)
		if a.opts.FatalOnCowOOM {
			return 0, a.fatal("cow", pa, ErrOutOfMemory)
		}
		return 0, fmt.Errorf("kalloc: cow %s: %w", pa, ErrOutOfMemory)
	}

	if err := a.mem.Copy(npa, pa); err != nil {
		_ = a.Free(npa)
		return 0, fmt.Errorf("kalloc: cow %s: %w", pa, err)
	}
	if err := a.Free(pa); err != nil {
		_ = a.Free(npa)
		return 0, err
	}

	a.stats.cowCopies.Add(1)
	a.log.Debug("kalloc: cow copy", "from", pa, "to", npa)
	return npa, nil
}
