// Package kalloc is the physical page allocator.
//
// # Overview
//
// kalloc hands out whole pages of a phys.Memory to page tables, kernel
// stacks, pipe buffers and user memory, and takes them back when nobody
// references them any more. Pages may be shared between address spaces
// under copy-on-write, so every page carries a reference count and freeing
// a page only drops one reference.
//
// Two independently locked components do the bookkeeping:
//
//   - freelist.Pool: the stack of free pages
//   - refcount.Table: the per-page owner count
//
// No operation holds both locks at once. Each operation takes them in short
// sections one after the other, so there is no lock order to get wrong.
//
// # Page States
//
//	Free       in the pool, count 0, content FreeJunk
//	Owned(n)   not in the pool, count n >= 1
//
//	Free     -> Owned(1)    Alloc
//	Owned(n) -> Owned(n+1)  IncRef
//	Owned(n) -> Owned(n-1)  Free or DecRef, n > 1
//	Owned(1) -> Free        Free
//
// At boot every page of the managed range is given one owner and then freed
// through Free, so the fill and range checks run on the boot path too.
//
// # Usage Example
//
//	mem, err := phys.Open(format.KernBase, format.PhysTop, nil)
//	if err != nil {
//	    return err
//	}
//	ka, err := kalloc.New(mem, kernelEnd, format.PhysTop, nil)
//	if err != nil {
//	    return err
//	}
//
//	pa, ok := ka.Alloc()
//	if !ok {
//	    return errOutOfMemory
//	}
//	// Share it with a child, then give the child a private copy on write.
//	_ = ka.IncRef(pa)
//	priv, err := ka.CowAlloc(pa)
//
// # Fatal Errors
//
// Passing an address that is misaligned or outside the managed range, or
// freeing a page with no owners, is a bug in the caller. Such calls build a
// *PreconditionError and hand it to Options.Fatal. The default handler,
// Halt, panics. A handler that returns makes the operation return the error
// with allocator state unchanged.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Callers must not touch a page's
// bytes after giving up their last reference to it.
package kalloc
