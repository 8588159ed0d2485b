package kalloc

import "github.com/joshuapare/pagekit/phys"

// PageAllocator is the interface the virtual-memory layer programs against.
//
// Implementations:
//   - Allocator: reference-counted allocator over a phys.Memory
type PageAllocator interface {
	// Alloc returns a page with one owner, or false when none are free.
	Alloc() (phys.Addr, bool)

	// Free drops one owner and reclaims the page when none remain.
	Free(pa phys.Addr) error

	// IncRef adds an owner to a page that already has one.
	IncRef(pa phys.Addr) error

	// DecRef drops an owner from a shared page without reclaiming it.
	DecRef(pa phys.Addr) error

	// RefCount reports the current number of owners.
	RefCount(pa phys.Addr) (int32, error)

	// CowAlloc returns a page the caller may write privately: pa itself when
	// the caller is the only owner, otherwise a fresh copy.
	CowAlloc(pa phys.Addr) (phys.Addr, error)
}

var _ PageAllocator = (*Allocator)(nil)
