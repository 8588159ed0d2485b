package vmsim

import "errors"

var (
	// ErrNotMapped indicates an access to a virtual page with no mapping.
	ErrNotMapped = errors.New("vmsim: address not mapped")

	// ErrRemap indicates a Map of a virtual page that is already mapped.
	ErrRemap = errors.New("vmsim: remap")

	// ErrReadOnly indicates a write to a page mapped without write permission
	// that is not copy-on-write.
	ErrReadOnly = errors.New("vmsim: write to read-only page")

	// ErrNoMemory indicates the allocator had no page for a new mapping.
	ErrNoMemory = errors.New("vmsim: out of memory")

	// ErrMisaligned indicates a Map of an address that does not start a page.
	ErrMisaligned = errors.New("vmsim: virtual address not page aligned")
)
