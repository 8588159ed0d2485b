package vmsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/phys"
	"github.com/joshuapare/pagekit/phys/kalloc"
)

const ramBase = phys.Addr(format.KernBase)

func newTestSpace(t *testing.T, pages int) (*AddressSpace, *kalloc.Allocator) {
	t.Helper()
	top := ramBase + phys.Addr((pages+1)*format.PageSize)
	mem, err := phys.Open(ramBase, top, &phys.Options{Heap: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	ka, err := kalloc.New(mem, ramBase+format.PageSize, top, nil)
	require.NoError(t, err)
	return New(ka, mem), ka
}

func refs(t *testing.T, ka *kalloc.Allocator, pa phys.Addr) int32 {
	t.Helper()
	n, err := ka.RefCount(pa)
	require.NoError(t, err)
	return n
}

func TestPTE(t *testing.T) {
	pa := ramBase + 0x5000
	pte := MakePTE(pa, PTEValid|PTERead|PTEWrite|PTECOW)
	assert.Equal(t, pa, pte.Addr())
	assert.True(t, pte.Has(PTEValid|PTERead))
	assert.True(t, pte.Has(PTECOW))
	assert.False(t, pte.Has(PTEExec))
	assert.Equal(t, PTEValid|PTERead|PTEWrite|PTECOW, pte.Flags())
	// Sv39 places the PPN at bit 10.
	assert.Equal(t, uint64(pa)>>12, uint64(pte)>>10)
}

func TestMap(t *testing.T) {
	as, ka := newTestSpace(t, 4)

	require.NoError(t, as.Map(0x1000))
	require.ErrorIs(t, as.Map(0x1000), ErrRemap)
	require.ErrorIs(t, as.Map(0x1001), ErrMisaligned)

	pte, ok := as.Translate(0x1000)
	require.True(t, ok)
	assert.True(t, pte.Has(PTEValid|PTERead|PTEWrite|PTEUser))
	assert.Equal(t, int32(1), refs(t, ka, pte.Addr()))

	data, err := as.Read(0x1000, format.PageSize)
	require.NoError(t, err)
	assert.True(t, format.IsFilled(data, 0), "mapped page must be zeroed, not allocator junk")

	_, err = as.Read(0x9000, 1)
	require.ErrorIs(t, err, ErrNotMapped)
	require.ErrorIs(t, as.Write(0x9000, []byte{1}), ErrNotMapped)
}

func TestMap_OutOfMemory(t *testing.T) {
	as, _ := newTestSpace(t, 2)
	require.NoError(t, as.Map(0))
	require.NoError(t, as.Map(format.PageSize))
	require.ErrorIs(t, as.Map(2*format.PageSize), ErrNoMemory)
	assert.Equal(t, 2, as.Len())
}

func TestWriteRead_AcrossPages(t *testing.T) {
	as, _ := newTestSpace(t, 4)
	require.NoError(t, as.Map(0))
	require.NoError(t, as.Map(format.PageSize))

	msg := []byte("straddles a page boundary")
	va := uint64(format.PageSize - 5)
	require.NoError(t, as.Write(va, msg))

	got, err := as.Read(va, len(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestFork_SharesAndCopiesOnWrite(t *testing.T) {
	as, ka := newTestSpace(t, 8)
	require.NoError(t, as.Map(0))
	require.NoError(t, as.Map(format.PageSize))
	require.NoError(t, as.Write(0, []byte("parent data")))
	free := ka.FreePages()

	child, err := as.Fork()
	require.NoError(t, err)
	assert.Equal(t, free, ka.FreePages(), "fork must not copy")

	ppte, _ := as.Translate(0)
	cpte, _ := child.Translate(0)
	assert.Equal(t, ppte, cpte)
	assert.True(t, ppte.Has(PTECOW))
	assert.False(t, ppte.Has(PTEWrite))
	assert.Equal(t, int32(2), refs(t, ka, ppte.Addr()))

	// Child writes: it gets a private copy, the parent keeps the original.
	require.NoError(t, child.Write(0, []byte("child")))
	assert.Equal(t, 1, child.Faults())
	assert.Equal(t, free-1, ka.FreePages())

	cpte, _ = child.Translate(0)
	assert.NotEqual(t, ppte.Addr(), cpte.Addr())
	assert.True(t, cpte.Has(PTEWrite))
	assert.False(t, cpte.Has(PTECOW))
	assert.Equal(t, int32(1), refs(t, ka, ppte.Addr()))
	assert.Equal(t, int32(1), refs(t, ka, cpte.Addr()))

	// The copy carries the parent's bytes past the five the child wrote.
	got, err := child.Read(0, 11)
	require.NoError(t, err)
	assert.Equal(t, "childt data", string(got))
	got, err = as.Read(0, 11)
	require.NoError(t, err)
	assert.Equal(t, "parent data", string(got))

	// Parent is now sole owner: its write fault reuses the page.
	require.NoError(t, as.Write(0, []byte("P")))
	assert.Equal(t, 1, as.Faults())
	after, _ := as.Translate(0)
	assert.Equal(t, ppte.Addr(), after.Addr())
	assert.True(t, after.Has(PTEWrite))
	assert.Equal(t, free-1, ka.FreePages())
}

func TestFork_ReleaseReturnsEveryPage(t *testing.T) {
	as, ka := newTestSpace(t, 16)
	boot := ka.FreePages()
	for i := range 4 {
		require.NoError(t, as.Map(uint64(i*format.PageSize)))
	}

	c1, err := as.Fork()
	require.NoError(t, err)
	c2, err := c1.Fork()
	require.NoError(t, err)

	pte, _ := as.Translate(0)
	assert.Equal(t, int32(3), refs(t, ka, pte.Addr()))

	require.NoError(t, c1.Write(0, []byte{1}))
	require.NoError(t, c2.Write(2*format.PageSize, []byte{2}))

	require.NoError(t, as.Release())
	require.NoError(t, c2.Release())
	require.NoError(t, c1.Release())
	assert.Zero(t, as.Len())
	assert.Equal(t, boot, ka.FreePages())
	require.NoError(t, ka.Verify())
}

func TestWrite_ReadOnly(t *testing.T) {
	as, _ := newTestSpace(t, 1)
	require.NoError(t, as.Map(0))
	as.ptes[0] &^= PTEWrite
	require.ErrorIs(t, as.Write(0, []byte{1}), ErrReadOnly)
}

func TestWrite_CowOutOfMemory(t *testing.T) {
	as, ka := newTestSpace(t, 1)
	require.NoError(t, as.Map(0))
	child, err := as.Fork()
	require.NoError(t, err)

	err = child.Write(0, []byte{1})
	require.ErrorIs(t, err, kalloc.ErrOutOfMemory)

	pte, _ := child.Translate(0)
	assert.True(t, pte.Has(PTECOW), "failed fault must leave the mapping shared")
	assert.Equal(t, int32(2), refs(t, ka, pte.Addr()))
}
