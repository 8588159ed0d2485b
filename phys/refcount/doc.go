// Package refcount keeps the number of live owners of every physical page.
//
// The table is a dense array of int32 counters indexed by
// (addr - base) / PageSize and guarded by its own mutex, independent of the
// free-page pool's lock. Every method is one short critical section; callers
// that need both the table and the pool take them one after the other, never
// nested.
//
// The table only reports counts. Deciding that a count of zero means "return
// the page to the pool" is the allocator's job (see phys/kalloc).
package refcount
