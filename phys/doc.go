// Package phys models the physical address space that the page allocator
// manages.
//
// # Overview
//
// A Memory is a contiguous window of simulated RAM, [base, top), addressed by
// physical address (Addr) rather than slice offset. Callers obtain page-sized
// byte slices with Page and move whole pages with Fill and Copy. The window
// is normally backed by an anonymous mapping (see internal/mmfile) so that
// multi-megabyte RAM sizes cost nothing until pages are touched.
//
// # Usage Example
//
//	mem, err := phys.Open(format.KernBase, format.PhysTop, nil)
//	if err != nil {
//	    return err
//	}
//	defer mem.Close()
//
//	pg, err := mem.Page(format.KernBase + 0x4000)
//	if err != nil {
//	    return err
//	}
//	pg[0] = 1
//
// # Thread Safety
//
// Memory performs no locking. Distinct pages may be used concurrently; two
// goroutines touching the same page must coordinate through whoever owns it
// (normally the reference count kept by phys/kalloc).
//
// # Related Packages
//
//   - github.com/joshuapare/pagekit/phys/kalloc: page allocator over a Memory
//   - github.com/joshuapare/pagekit/phys/freelist: free-page pool
//   - github.com/joshuapare/pagekit/phys/refcount: per-page reference counts
package phys
