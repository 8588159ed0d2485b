package phys

import (
	"fmt"
	"math"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/mmfile"
)

// Options configures how a Memory window is backed.
type Options struct {
	// Heap backs the window with an ordinary Go slice instead of an anonymous
	// mapping. Useful for small windows and for platforms without mmap.
	// Default: false (anonymous mapping)
	Heap bool
}

// Memory is a window of simulated physical RAM covering [base, top).
type Memory struct {
	bounds Range
	data   []byte
	unmap  func() error
}

// Open creates a Memory covering [base, top). Both bounds must be page
// aligned and base must be below top. opts may be nil.
func Open(base, top Addr, opts *Options) (*Memory, error) {
	if opts == nil {
		opts = &Options{}
	}
	if !base.IsAligned() || !top.IsAligned() || top <= base {
		return nil, fmt.Errorf("%w: %s", ErrBadRange, Range{Start: base, End: top})
	}
	size := uint64(top - base)
	if size > math.MaxInt {
		return nil, fmt.Errorf("%w: %d bytes does not fit in memory", ErrBadRange, size)
	}

	m := &Memory{bounds: Range{Start: base, End: top}}
	if opts.Heap {
		m.data = make([]byte, int(size))
		m.unmap = func() error { return nil }
		return m, nil
	}

	data, unmap, err := mmfile.MapAnon(int(size))
	if err != nil {
		return nil, fmt.Errorf("phys: back %s: %w", m.bounds, err)
	}
	m.data = data
	m.unmap = unmap
	return m, nil
}

// Bounds returns the window covered by m.
func (m *Memory) Bounds() Range { return m.bounds }

// Page returns the bytes of the page starting at a. The slice aliases the
// window; writes through it are visible to every other holder.
func (m *Memory) Page(a Addr) ([]byte, error) {
	off, err := m.pageOffset(a)
	if err != nil {
		return nil, err
	}
	return m.data[off : off+format.PageSize : off+format.PageSize], nil
}

// Fill overwrites the whole page at a with b.
func (m *Memory) Fill(a Addr, b byte) error {
	pg, err := m.Page(a)
	if err != nil {
		return err
	}
	format.Fill(pg, b)
	return nil
}

// Copy copies the page at src over the page at dst.
func (m *Memory) Copy(dst, src Addr) error {
	d, err := m.Page(dst)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	s, err := m.Page(src)
	if err != nil {
		return fmt.Errorf("copy from %s: %w", src, err)
	}
	copy(d, s)
	return nil
}

// ReadWord reads the 8-byte little-endian word at a, which must be word aligned.
func (m *Memory) ReadWord(a Addr) (uint64, error) {
	off, err := m.wordOffset(a)
	if err != nil {
		return 0, err
	}
	return format.ReadU64(m.data, off), nil
}

// WriteWord stores v as an 8-byte little-endian word at a, which must be word aligned.
func (m *Memory) WriteWord(a Addr, v uint64) error {
	off, err := m.wordOffset(a)
	if err != nil {
		return err
	}
	format.PutU64(m.data, off, v)
	return nil
}

// Close releases the backing storage. Further use returns ErrClosed.
func (m *Memory) Close() error {
	if m.data == nil {
		return nil
	}
	m.data = nil
	return m.unmap()
}

func (m *Memory) pageOffset(a Addr) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	if !a.IsAligned() {
		return 0, fmt.Errorf("%w: %s", ErrMisaligned, a)
	}
	if !m.bounds.Contains(a) {
		return 0, fmt.Errorf("%w: %s not in %s", ErrOutOfRange, a, m.bounds)
	}
	return int(a - m.bounds.Start), nil
}

func (m *Memory) wordOffset(a Addr) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	if a%format.WordSize != 0 {
		return 0, fmt.Errorf("%w: word address %s", ErrMisaligned, a)
	}
	if !m.bounds.Contains(a) {
		return 0, fmt.Errorf("%w: %s not in %s", ErrOutOfRange, a, m.bounds)
	}
	return int(a - m.bounds.Start), nil
}
