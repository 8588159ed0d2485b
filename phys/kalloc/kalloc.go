package kalloc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/freelist"
	"github.com/joshuapare/pagekit/phys/refcount"
)

// Memory is the page store the allocator hands out. *phys.Memory implements it.
type Memory interface {
	Bounds() phys.Range
	Page(pa phys.Addr) ([]byte, error)
	Fill(pa phys.Addr, b byte) error
	Copy(dst, src phys.Addr) error
}

// Allocator is a reference-counted physical page allocator.
type Allocator struct {
	mem     Memory
	managed phys.Range

	pool *freelist.Pool  // free pages, own lock
	refs *refcount.Table // owner counts, own lock

	opts  Options
	log   *slog.Logger
	stats allocatorStats
}

// New creates an allocator for the pages between the end of the kernel image
// and top, and seeds the pool with every one of them.
//
// Parameters:
//   - mem: the RAM the pages live in
//   - kernelEnd: first address after the kernel image; rounded up to a page
//   - top: end of usable RAM (exclusive); a trailing partial page is ignored
//   - opts: allocator options (nil for defaults)
func New(mem Memory, kernelEnd, top phys.Addr, opts *Options) (*Allocator, error) {
	o := opts.withDefaults()

	bounds := mem.Bounds()
	managed := phys.Range{Start: kernelEnd.RoundUp(), End: top.RoundDown()}
	if managed.Start < bounds.Start || managed.End > bounds.End || managed.End <= managed.Start {
		return nil, fmt.Errorf("%w: %s in memory %s", ErrBadRange, managed, bounds)
	}

	if uint64(managed.Pages()) >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: %s holds %d pages, more than a pool can index",
			ErrBadRange, managed, managed.Pages())
	}

	refs, err := refcount.New(managed)
	if err != nil {
		return nil, fmt.Errorf("kalloc: %w", err)
	}

	a := &Allocator{
		mem:     mem,
		managed: managed,
		pool:    freelist.New(refs.Len()),
		refs:    refs,
		opts:    o,
		log:     o.Logger,
	}
	if err := a.freeRange(managed.Start, managed.End); err != nil {
		return nil, err
	}

	a.log.Info("kalloc: init", "range", managed, "pages", a.pool.Len())
	return a, nil
}

// freeRange runs every page of [start, end) through the runtime free path.
func (a *Allocator) freeRange(start, end phys.Addr) error {
	for p := start; p+format.PageSize <= end; p += format.PageSize {
		// Each page starts with one implicit owner, released here.
		if err := a.refs.Set(p, 1); err != nil {
			return fmt.Errorf("kalloc: init %s: %w", p, err)
		}
		if _, err := a.release("init", p); err != nil {
			return err
		}
	}
	return nil
}

// Range returns the managed range.
func (a *Allocator) Range() phys.Range { return a.managed }

// FreePages returns the number of pages currently in the pool.
func (a *Allocator) FreePages() int { return a.pool.Len() }

// Alloc takes a page out of the pool and gives it one owner. The page holds
// AllocJunk, not zeros. ok is false when the pool is empty; the caller
// decides whether to fail, wait, or reclaim memory elsewhere.
func (a *Allocator) Alloc() (pa phys.Addr, ok bool) {
	a.stats.allocCalls.Add(1)

	idx, ok := a.pool.Pop()
	if !ok {
		a.stats.allocFailures.Add(1)
		a.log.Debug("kalloc: pool empty")
		return 0, false
	}
	pa = a.refs.Addr(int(idx))

	if err := a.mem.Fill(pa, format.AllocJunk); err != nil {
		a.unpop(idx)
		_ = a.fatal("alloc", pa, err)
		return 0, false
	}
	if err := a.refs.Set(pa, 1); err != nil {
		a.unpop(idx)
		_ = a.fatal("alloc", pa, err)
		return 0, false
	}
	return pa, true
}

// unpop returns a page that Alloc popped but could not hand out.
func (a *Allocator) unpop(idx uint32) {
	if err := a.pool.Push(idx); err != nil {
		a.log.Error("kalloc: lost page", "addr", a.refs.Addr(int(idx)), "err", err)
	}
}

// Free drops one owner of pa. When no owners remain the page is filled with
// FreeJunk and returned to the pool.
//
// A misaligned or out-of-range address, or a page with no owners, is a
// precondition violation.
func (a *Allocator) Free(pa phys.Addr) error {
	a.stats.freeCalls.Add(1)
	reclaimed, err := a.release("free", pa)
	if reclaimed {
		a.stats.pagesReclaimed.Add(1)
	}
	return err
}

// release drops one owner and pushes the page when it was the last one.
// Only the caller that takes the count to zero pushes, so a page enters the
// pool at most once per ownership cycle.
func (a *Allocator) release(op string, pa phys.Addr) (bool, error) {
	if err := a.check(op, pa); err != nil {
		return false, err
	}

	n, err := a.refs.Dec(pa)
	if err != nil {
		if errors.Is(err, refcount.ErrUnowned) {
			return false, a.fatal(op, pa, ErrDoubleFree)
		}
		return false, a.fatal(op, pa, err)
	}
	if n > 0 {
		return false, nil
	}

	// Fill with junk to catch dangling refs.
	if err := a.mem.Fill(pa, format.FreeJunk); err != nil {
		// The page never reached the pool; restore its owner.
		if rerr := a.refs.Set(pa, 1); rerr != nil {
			a.log.Error("kalloc: lost page", "addr", pa, "err", rerr)
		}
		return false, a.fatal(op, pa, err)
	}
	if err := a.pool.Push(a.slot(pa)); err != nil {
		// Only ErrAlreadyFree can get here: the page is pooled already and
		// count 0 agrees with that.
		return false, a.fatal(op, pa, err)
	}
	return true, nil
}

// IncRef adds an owner to pa, which must already have one.
func (a *Allocator) IncRef(pa phys.Addr) error {
	if err := a.check("incref", pa); err != nil {
		return err
	}
	if _, err := a.refs.Inc(pa); err != nil {
		switch {
		case errors.Is(err, refcount.ErrUnowned):
			err = ErrNotOwned
		case errors.Is(err, refcount.ErrOverflow):
			err = ErrRefOverflow
		}
		return a.fatal("incref", pa, err)
	}
	return nil
}

// DecRef drops an owner from a shared page. It never reclaims and never
// lets a count reach zero or go below it: on a page with one owner it
// reports ErrLastReference, and on a page with none ErrNotOwned, both as
// precondition violations that halt under the default handler. The last
// owner must call Free, which is the only path back to the pool.
func (a *Allocator) DecRef(pa phys.Addr) error {
	if err := a.check("decref", pa); err != nil {
		return err
	}
	_, err := a.refs.Update(pa, func(n int32) (int32, error) {
		switch {
		case n <= 0:
			return n, ErrNotOwned
		case n == 1:
			return n, ErrLastReference
		}
		return n - 1, nil
	})
	if err != nil {
		return a.fatal("decref", pa, err)
	}
	return nil
}

// RefCount returns the number of owners of pa. Free pages report zero.
func (a *Allocator) RefCount(pa phys.Addr) (int32, error) {
	if err := a.check("refcount", pa); err != nil {
		return 0, err
	}
	n, err := a.refs.Get(pa)
	if err != nil {
		return 0, a.fatal("refcount", pa, err)
	}
	return n, nil
}

// check enforces that pa names a page of the managed range.
func (a *Allocator) check(op string, pa phys.Addr) error {
	if !pa.IsAligned() {
		return a.fatal(op, pa, ErrMisaligned)
	}
	if !a.managed.Contains(pa) {
		return a.fatal(op, pa, ErrOutOfRange)
	}
	return nil
}

// slot returns the pool index of a page already validated by check.
func (a *Allocator) slot(pa phys.Addr) uint32 {
	return uint32((pa - a.managed.Start) >> format.PageShift)
}

// Verify checks that the pool and the count table agree: every pooled page
// has no owners and every page without owners is pooled. It walks both
// structures without a global lock, so only call it while the allocator is
// quiescent.
func (a *Allocator) Verify() error {
	if err := a.pool.Check(); err != nil {
		return fmt.Errorf("kalloc: %w", err)
	}
	for i := range a.refs.Len() {
		pa := a.refs.Addr(i)
		n, err := a.refs.Get(pa)
		if err != nil {
			return fmt.Errorf("kalloc: %w", err)
		}
		pooled := a.pool.Contains(uint32(i))
		switch {
		case pooled && n > 0:
			return fmt.Errorf("kalloc: page %s in pool with %d owners", pa, n)
		case !pooled && n <= 0:
			return fmt.Errorf("kalloc: page %s leaked with count %d", pa, n)
		}
	}
	return nil
}
