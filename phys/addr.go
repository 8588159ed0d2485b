package phys

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/format"
)

// Addr is a physical address.
type Addr uint64

// PageNumber returns the physical page number containing a.
func (a Addr) PageNumber() uint64 { return uint64(a) >> format.PageShift }

// IsAligned reports whether a is the first byte of a page.
func (a Addr) IsAligned() bool { return format.IsPageAligned(uint64(a)) }

// RoundUp returns a rounded up to a page boundary.
func (a Addr) RoundUp() Addr { return Addr(format.PageRoundUp(uint64(a))) }

// RoundDown returns a rounded down to a page boundary.
func (a Addr) RoundDown() Addr { return Addr(format.PageRoundDown(uint64(a))) }

func (a Addr) String() string { return fmt.Sprintf("0x%x", uint64(a)) }

// Range is the half-open interval [Start, End) of physical addresses.
type Range struct {
	Start Addr
	End   Addr
}

// Contains reports whether a lies inside r.
func (r Range) Contains(a Addr) bool { return a >= r.Start && a < r.End }

// Len returns the number of bytes in r.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

// Pages returns the number of whole pages inside r.
func (r Range) Pages() int { return format.PageCount(uint64(r.Start), uint64(r.End)) }

func (r Range) String() string { return fmt.Sprintf("[%s, %s)", r.Start, r.End) }
