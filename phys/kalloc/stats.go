package kalloc

import "sync/atomic"

// allocatorStats holds internal allocator counters.
type allocatorStats struct {
	allocCalls     atomic.Uint64 // Alloc() calls
	allocFailures  atomic.Uint64 // Alloc() calls that found the pool empty
	freeCalls      atomic.Uint64 // Free() calls
	pagesReclaimed atomic.Uint64 // pages pushed back to the pool, boot excluded
	cowCopies      atomic.Uint64 // CowAlloc() calls that copied
	cowShortcuts   atomic.Uint64 // CowAlloc() calls that returned the page itself
	violations     atomic.Uint64 // precondition violations reported
}

// Stats is a point-in-time snapshot of allocator activity.
type Stats struct {
	TotalPages     int    `json:"total_pages"`
	FreePages      int    `json:"free_pages"`
	AllocCalls     uint64 `json:"alloc_calls"`
	AllocFailures  uint64 `json:"alloc_failures"`
	FreeCalls      uint64 `json:"free_calls"`
	PagesReclaimed uint64 `json:"pages_reclaimed"`
	CowCopies      uint64 `json:"cow_copies"`
	CowShortcuts   uint64 `json:"cow_shortcuts"`
	Violations     uint64 `json:"violations"`
}

// Stats returns a snapshot of the allocator's counters. Counters are read
// individually, so a snapshot taken under load is not a single instant.
func (a *Allocator) Stats() Stats {
	return Stats{
		TotalPages:     a.refs.Len(),
		FreePages:      a.pool.Len(),
		AllocCalls:     a.stats.allocCalls.Load(),
		AllocFailures:  a.stats.allocFailures.Load(),
		FreeCalls:      a.stats.freeCalls.Load(),
		PagesReclaimed: a.stats.pagesReclaimed.Load(),
		CowCopies:      a.stats.cowCopies.Load(),
		CowShortcuts:   a.stats.cowShortcuts.Load(),
		Violations:     a.stats.violations.Load(),
	}
}
