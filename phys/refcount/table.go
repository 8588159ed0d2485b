package refcount

import (
	"fmt"
	"math"
	"sync"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
)

// Table maps each page of a physical range to its reference count.
type Table struct {
	mu     sync.Mutex
	rng    phys.Range
	counts []int32
}

// New creates a table covering every page of r. All counts start at zero.
func New(r phys.Range) (*Table, error) {
	if !r.Start.IsAligned() || !r.End.IsAligned() || r.End <= r.Start {
		return nil, fmt.Errorf("refcount: invalid range %s", r)
	}
	return &Table{
		rng:    r,
		counts: make([]int32, r.Pages()),
	}, nil
}

// Range returns the physical range covered by the table.
func (t *Table) Range() phys.Range { return t.rng }

// Len returns the number of slots in the table.
func (t *Table) Len() int { return len(t.counts) }

// Index returns the slot for the page at a.
func (t *Table) Index(a phys.Addr) (int, error) {
	if !a.IsAligned() {
		return 0, fmt.Errorf("%w: %s", ErrMisaligned, a)
	}
	if !t.rng.Contains(a) {
		return 0, fmt.Errorf("%w: %s not in %s", ErrOutOfRange, a, t.rng)
	}
	return int((a - t.rng.Start) >> format.PageShift), nil
}

// Addr is the inverse of Index.
func (t *Table) Addr(idx int) phys.Addr {
	return t.rng.Start + phys.Addr(idx)<<format.PageShift
}

// Get returns the current count for a.
func (t *Table) Get(a phys.Addr) (int32, error) {
	idx, err := t.Index(a)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[idx], nil
}

// Set overwrites the count for a.
func (t *Table) Set(a phys.Addr, v int32) error {
	idx, err := t.Index(a)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.counts[idx] = v
	t.mu.Unlock()
	return nil
}

// Inc adds one owner to a page that already has one and returns the new
// count. An unowned page returns ErrUnowned and an increment past
// math.MaxInt32 returns ErrOverflow; either way the slot is unchanged.
func (t *Table) Inc(a phys.Addr) (int32, error) {
	idx, err := t.Index(a)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n := t.counts[idx]; {
	case n <= 0:
		return n, fmt.Errorf("%w: %s count %d", ErrUnowned, a, n)
	case n == math.MaxInt32:
		return n, fmt.Errorf("%w: %s", ErrOverflow, a)
	}
	t.counts[idx]++
	return t.counts[idx], nil
}

// Update applies fn to the count for a under the table lock. If fn returns
// an error the slot is left unchanged and the error is returned alongside the
// old count.
func (t *Table) Update(a phys.Addr, fn func(old int32) (int32, error)) (int32, error) {
	idx, err := t.Index(a)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := fn(t.counts[idx])
	if err != nil {
		return t.counts[idx], err
	}
	t.counts[idx] = v
	return v, nil
}

// Dec removes one owner from a and returns the new count. A page with no
// owners returns ErrUnowned with the slot unchanged, so counts never go
// below zero. Exactly one of any set of concurrent decrements observes the
// transition to zero.
func (t *Table) Dec(a phys.Addr) (int32, error) {
	idx, err := t.Index(a)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[idx] <= 0 {
		return t.counts[idx], fmt.Errorf("%w: %s count %d", ErrUnowned, a, t.counts[idx])
	}
	t.counts[idx]--
	return t.counts[idx], nil
}
