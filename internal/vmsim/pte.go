package vmsim

import (
	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
)

// PTE is a leaf page-table entry in the RISC-V Sv39 layout: the physical
// page number sits above bit 10, permission bits below it.
type PTE uint64

// PTE flag bits.
const (
	PTEValid PTE = 1 << 0
	PTERead  PTE = 1 << 1
	PTEWrite PTE = 1 << 2
	PTEExec  PTE = 1 << 3
	PTEUser  PTE = 1 << 4

	// PTECOW marks a page shared copy-on-write. It uses the first of the
	// two RSW bits that hardware leaves to software.
	PTECOW PTE = 1 << 8

	flagMask PTE = 1<<10 - 1
)

// MakePTE builds an entry mapping pa with the given flags.
func MakePTE(pa phys.Addr, flags PTE) PTE {
	return PTE(uint64(pa)>>format.PageShift<<10) | flags&flagMask
}

// Addr returns the physical page the entry maps.
func (p PTE) Addr() phys.Addr { return phys.Addr(uint64(p) >> 10 << format.PageShift) }

// Flags returns the permission and software bits.
func (p PTE) Flags() PTE { return p & flagMask }

// Has reports whether every bit of f is set.
func (p PTE) Has(f PTE) bool { return p&f == f }
