package phys

import "errors"

var (
	// ErrMisaligned indicates an address that is not a multiple of the page size
	// where a page address was required.
	ErrMisaligned = errors.New("phys: address not page aligned")

	// ErrOutOfRange indicates an address outside the memory window.
	ErrOutOfRange = errors.New("phys: address out of range")

	// ErrBadRange indicates a window whose bounds are inverted, empty, or unaligned.
	ErrBadRange = errors.New("phys: invalid address range")

	// ErrClosed indicates use of a Memory after Close.
	ErrClosed = errors.New("phys: memory closed")
)
