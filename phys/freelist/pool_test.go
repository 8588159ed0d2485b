package freelist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_LIFO(t *testing.T) {
	p := New(8)
	assert.Equal(t, 8, p.Cap())
	assert.Equal(t, 0, p.Len())

	_, ok := p.Pop()
	require.False(t, ok, "empty pool must not pop")

	for _, idx := range []uint32{3, 0, 7} {
		require.NoError(t, p.Push(idx))
	}
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []uint32{7, 0, 3}, p.Snapshot())
	require.NoError(t, p.Check())

	for _, want := range []uint32{7, 0, 3} {
		got, ok := p.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.False(t, p.Contains(got))
	}
	_, ok = p.Pop()
	require.False(t, ok)
	require.NoError(t, p.Check())
}

func TestPool_RejectsDuplicatePush(t *testing.T) {
	p := New(4)
	require.NoError(t, p.Push(2))
	require.ErrorIs(t, p.Push(2), ErrAlreadyFree)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []uint32{2}, p.Snapshot())

	// Once popped, the slot may be pushed again.
	_, ok := p.Pop()
	require.True(t, ok)
	require.NoError(t, p.Push(2))
}

func TestPool_RejectsBadIndex(t *testing.T) {
	p := New(4)
	require.ErrorIs(t, p.Push(4), ErrBadIndex)
	assert.False(t, p.Contains(100))
}

func TestPool_BitmapAcrossWords(t *testing.T) {
	p := New(130)
	for _, idx := range []uint32{0, 63, 64, 127, 128, 129} {
		require.NoError(t, p.Push(idx))
		assert.True(t, p.Contains(idx))
	}
	assert.False(t, p.Contains(65))
	require.NoError(t, p.Check())
}

func TestPool_ConcurrentPushPop(t *testing.T) {
	const (
		slots   = 256
		workers = 8
		rounds  = 2000
	)
	p := New(slots)
	for i := range uint32(slots) {
		require.NoError(t, p.Push(i))
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held := make([]uint32, 0, 4)
			for r := range rounds {
				if idx, ok := p.Pop(); ok {
					held = append(held, idx)
				}
				if len(held) > 0 && (r%3 == 0 || len(held) == cap(held)) {
					idx := held[len(held)-1]
					held = held[:len(held)-1]
					if err := p.Push(idx); err != nil {
						t.Errorf("Push(%d): %v", idx, err)
						return
					}
				}
			}
			for _, idx := range held {
				if err := p.Push(idx); err != nil {
					t.Errorf("Push(%d): %v", idx, err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, slots, p.Len())
	require.NoError(t, p.Check())
}
