package kalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/phys"
)

func TestCowAlloc_SoleOwner(t *testing.T) {
	a, mem := newTestAllocator(t, 2, nil)
	pa, ok := a.Alloc()
	require.True(t, ok)
	copy(mustPage(t, mem, pa), "private")

	got, err := a.CowAlloc(pa)
	require.NoError(t, err)
	assert.Equal(t, pa, got)

	n, err := a.RefCount(pa)
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)
	assert.Equal(t, 1, a.FreePages(), "sole owner must not allocate")
	assert.Equal(t, uint64(1), a.Stats().CowShortcuts)
	assert.Equal(t, []byte("private"), mustPage(t, mem, pa)[:7])
}

func TestCowAlloc_SharedPage(t *testing.T) {
	a, mem := newTestAllocator(t, 2, nil)
	pa, ok := a.Alloc()
	require.True(t, ok)
	require.NoError(t, a.IncRef(pa))

	src := mustPage(t, mem, pa)
	for i := range src {
		src[i] = byte(i * 7)
	}
	want := append([]byte(nil), src...)

	npa, err := a.CowAlloc(pa)
	require.NoError(t, err)
	require.NotEqual(t, pa, npa)
	assert.Equal(t, want, mustPage(t, mem, npa), "copy must match the original at call time")

	n, err := a.RefCount(npa)
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)
	n, err = a.RefCount(pa)
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	// The copy is private: writing it leaves the other sharer's view alone.
	mustPage(t, mem, npa)[0] = 0xff
	assert.Equal(t, want[0], mustPage(t, mem, pa)[0])

	// The remaining sharer is now sole owner and keeps the original.
	again, err := a.CowAlloc(pa)
	require.NoError(t, err)
	assert.Equal(t, pa, again)

	st := a.Stats()
	assert.Equal(t, uint64(1), st.CowCopies)
	assert.Equal(t, uint64(1), st.CowShortcuts)
	require.NoError(t, a.Verify())
}

func TestCowAlloc_OutOfMemory(t *testing.T) {
	a, mem := newTestAllocator(t, 1, nil)
	pa, ok := a.Alloc()
	require.True(t, ok)
	require.NoError(t, a.IncRef(pa))
	copy(mustPage(t, mem, pa), "keep")

	_, err := a.CowAlloc(pa)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.NotErrorIs(t, err, ErrPrecondition)

	n, err := a.RefCount(pa)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n, "failed promotion must not drop the caller's reference")
	assert.Equal(t, []byte("keep"), mustPage(t, mem, pa)[:4])
}

func TestCowAlloc_OutOfMemoryFatal(t *testing.T) {
	rec := &fatalRecorder{}
	a, _ := newTestAllocator(t, 1, &Options{Fatal: rec.handle, FatalOnCowOOM: true})
	pa, ok := a.Alloc()
	require.True(t, ok)
	require.NoError(t, a.IncRef(pa))

	_, err := a.CowAlloc(pa)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, ErrPrecondition)
	require.Equal(t, 1, rec.count())

	var pe *PreconditionError
	require.ErrorAs(t, rec.last(), &pe)
	assert.Equal(t, "cow", pe.Op)
	assert.Equal(t, pa, pe.Addr)
}

func TestCowAlloc_OutOfMemoryHaltsByDefault(t *testing.T) {
	a, _ := newTestAllocator(t, 1, &Options{FatalOnCowOOM: true})
	pa, ok := a.Alloc()
	require.True(t, ok)
	require.NoError(t, a.IncRef(pa))

	assert.Panics(t, func() { _, _ = a.CowAlloc(pa) })
}

func TestCowAlloc_InvalidAddress(t *testing.T) {
	rec := &fatalRecorder{}
	a, _ := newTestAllocator(t, 1, &Options{Fatal: rec.handle})

	_, err := a.CowAlloc(a.Range().End)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 1, rec.count())
}

// Every sharer promotes at the same time. Each must end up with its own copy
// and the original must go back to the pool exactly once.
func TestCowAlloc_ConcurrentSharers(t *testing.T) {
	const sharers = 16
	a, mem := newTestAllocator(t, sharers+1, nil)

	pa, ok := a.Alloc()
	require.True(t, ok)
	copy(mustPage(t, mem, pa), "original")
	for range sharers - 1 {
		require.NoError(t, a.IncRef(pa))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		copies = make(map[phys.Addr]bool)
	)
	for range sharers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			npa, err := a.CowAlloc(pa)
			if err != nil {
				t.Errorf("CowAlloc: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if copies[npa] {
				t.Errorf("page %s handed to two sharers", npa)
			}
			copies[npa] = true
		}()
	}
	wg.Wait()

	require.Len(t, copies, sharers)
	total := 0
	for npa := range copies {
		n, err := a.RefCount(npa)
		require.NoError(t, err)
		assert.Equal(t, int32(1), n)
		total++
	}
	assert.Equal(t, sharers, total)

	// Whoever ended up with pa itself (sole owner at the time) keeps it;
	// every other page is a copy. Free them all and nothing may leak.
	for npa := range copies {
		require.NoError(t, a.Free(npa))
	}
	assert.Equal(t, sharers+1, a.FreePages())
	require.NoError(t, a.Verify())
}
