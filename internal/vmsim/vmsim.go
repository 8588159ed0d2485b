// Package vmsim is a minimal virtual-memory layer used to drive the page
// allocator the way a kernel would: mapping fresh pages, sharing them
// copy-on-write across fork, taking write faults, and tearing an address
// space down. It keeps a flat map of leaf entries instead of a multi-level
// page table.
package vmsim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

// Memory gives access to page contents.
type Memory interface {
	Page(pa phys.Addr) ([]byte, error)
}

// AddressSpace maps virtual pages of one process to physical pages.
type AddressSpace struct {
	alloc kalloc.PageAllocator
	mem   Memory

	mu     sync.Mutex
	ptes   map[uint64]PTE // virtual page number -> leaf entry
	faults int            // copy-on-write faults taken
}

// New creates an empty address space drawing pages from alloc.
func New(alloc kalloc.PageAllocator, mem Memory) *AddressSpace {
	return &AddressSpace{
		alloc: alloc,
		mem:   mem,
		ptes:  make(map[uint64]PTE),
	}
}

func vpn(va uint64) uint64 { return va >> format.PageShift }

// Map backs the page at va with a fresh zeroed page, readable and writable.
func (as *AddressSpace) Map(va uint64) error {
	if !format.IsPageAligned(va) {
		return fmt.Errorf("%w: 0x%x", ErrMisaligned, va)
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	if _, ok := as.ptes[vpn(va)]; ok {
		return fmt.Errorf("%w: 0x%x", ErrRemap, va)
	}
	pa, ok := as.alloc.Alloc()
	if !ok {
		return fmt.Errorf("map 0x%x: %w", va, ErrNoMemory)
	}
	pg, err := as.mem.Page(pa)
	if err != nil {
		_ = as.alloc.Free(pa)
		return fmt.Errorf("map 0x%x: %w", va, err)
	}
	clear(pg)
	as.ptes[vpn(va)] = MakePTE(pa, PTEValid|PTERead|PTEWrite|PTEUser)
	return nil
}

// Fork returns a child sharing every page with as. Writable pages become
// read-only copy-on-write in both spaces and gain one reference for the child.
func (as *AddressSpace) Fork() (*AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	child := New(as.alloc, as.mem)
	for _, v := range as.sortedVPNs() {
		pte := as.ptes[v]
		if pte.Has(PTEWrite) {
			pte = (pte &^ PTEWrite) | PTECOW
		}
		if err := as.alloc.IncRef(pte.Addr()); err != nil {
			_ = child.releaseLocked()
			return nil, fmt.Errorf("fork: %w", err)
		}
		as.ptes[v] = pte
		child.ptes[v] = pte
	}
	return child, nil
}

// Write copies p into the address space starting at va, taking a
// copy-on-write fault on each shared page it touches.
func (as *AddressSpace) Write(va uint64, p []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	for len(p) > 0 {
		pte, ok := as.ptes[vpn(va)]
		if !ok {
			return fmt.Errorf("%w: 0x%x", ErrNotMapped, va)
		}
		if !pte.Has(PTEWrite) {
			if !pte.Has(PTECOW) {
				return fmt.Errorf("%w: 0x%x", ErrReadOnly, va)
			}
			var err error
			if pte, err = as.cowFault(va, pte); err != nil {
				return err
			}
		}

		pg, err := as.mem.Page(pte.Addr())
		if err != nil {
			return err
		}
		off := int(va & format.PageMask)
		n := copy(pg[off:], p)
		p = p[n:]
		va += uint64(n)
	}
	return nil
}

// cowFault gives this space a private, writable copy of the page at va.
func (as *AddressSpace) cowFault(va uint64, pte PTE) (PTE, error) {
	npa, err := as.alloc.CowAlloc(pte.Addr())
	if err != nil {
		return 0, fmt.Errorf("cow fault at 0x%x: %w", va, err)
	}
	as.faults++
	pte = MakePTE(npa, (pte.Flags()&^PTECOW)|PTEWrite)
	as.ptes[vpn(va)] = pte
	return pte, nil
}

// Read returns n bytes starting at va.
func (as *AddressSpace) Read(va uint64, n int) ([]byte, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	out := make([]byte, 0, n)
	for len(out) < n {
		pte, ok := as.ptes[vpn(va)]
		if !ok {
			return nil, fmt.Errorf("%w: 0x%x", ErrNotMapped, va)
		}
		pg, err := as.mem.Page(pte.Addr())
		if err != nil {
			return nil, err
		}
		off := int(va & format.PageMask)
		take := min(n-len(out), format.PageSize-off)
		out = append(out, pg[off:off+take]...)
		va += uint64(take)
	}
	return out, nil
}

// Translate returns the entry mapping va.
func (as *AddressSpace) Translate(va uint64) (PTE, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	pte, ok := as.ptes[vpn(va)]
	return pte, ok
}

// Len returns the number of mapped pages.
func (as *AddressSpace) Len() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return len(as.ptes)
}

// Faults returns the number of copy-on-write faults taken.
func (as *AddressSpace) Faults() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.faults
}

// Release drops this space's reference on every mapped page and empties it.
func (as *AddressSpace) Release() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.releaseLocked()
}

func (as *AddressSpace) releaseLocked() error {
	var first error
	for _, v := range as.sortedVPNs() {
		if err := as.alloc.Free(as.ptes[v].Addr()); err != nil && first == nil {
			first = err
		}
		delete(as.ptes, v)
	}
	return first
}

func (as *AddressSpace) sortedVPNs() []uint64 {
	out := make([]uint64, 0, len(as.ptes))
	for v := range as.ptes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
