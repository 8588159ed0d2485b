// Package format holds the layout constants of the simulated physical address
// space: page geometry, the default RAM window, and the fill patterns written
// into pages as they move between the pool and their owners.
package format

const (
	// PageShift is log2(PageSize).
	PageShift = 12

	// PageSize is the size of a physical page in bytes.
	PageSize = 1 << PageShift

	// PageMask selects the offset-within-page bits of an address (PageSize - 1).
	PageMask = PageSize - 1

	// WordSize is the size of a machine word stored in page memory.
	WordSize = 8
)

// Physical memory layout of the reference machine (qemu -machine virt).
//
//	80000000 -- boot ROM jumps here; kernel text and data
//	end      -- start of the page allocation area
//	PhysTop  -- end of RAM used by the kernel
const (
	// KernBase is where RAM begins and the kernel image is loaded.
	KernBase = 0x80000000

	// PhysTop is the first address past the RAM the kernel manages.
	PhysTop = KernBase + 128*1024*1024
)

// Fill patterns written over a whole page. Both are non-zero so a reader
// that forgets to initialise a page sees garbage instead of plausible zeros.
const (
	// AllocJunk is written over a page when it leaves the pool.
	AllocJunk byte = 0x05

	// FreeJunk is written over a page when it goes back to the pool, so a
	// dangling reference reads recognisable garbage.
	FreeJunk byte = 0x01
)
