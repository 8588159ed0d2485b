package freelist

import (
	"fmt"
	"math/bits"
	"sync"
)

// none terminates the stack.
const none = ^uint32(0)

// Pool is a LIFO stack of free page indices.
type Pool struct {
	mu    sync.Mutex
	head  uint32
	count int
	next  []uint32
	inuse []uint64 // membership bitmap, one bit per slot
}

// New creates an empty pool for slots [0, n).
func New(n int) *Pool {
	p := &Pool{
		head:  none,
		next:  make([]uint32, n),
		inuse: make([]uint64, (n+63)/64),
	}
	for i := range p.next {
		p.next[i] = none
	}
	return p
}

// Cap returns the size of the index space.
func (p *Pool) Cap() int { return len(p.next) }

// Push puts idx on top of the stack.
func (p *Pool) Push(idx uint32) error {
	if int(idx) >= len(p.next) {
		return fmt.Errorf("%w: %d >= %d", ErrBadIndex, idx, len(p.next))
	}
	word, bit := idx/64, uint64(1)<<(idx%64)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inuse[word]&bit != 0 {
		return fmt.Errorf("%w: slot %d", ErrAlreadyFree, idx)
	}
	p.inuse[word] |= bit
	p.next[idx] = p.head
	p.head = idx
	p.count++
	return nil
}

// Pop removes and returns the most recently pushed index. ok is false when
// the pool is empty.
func (p *Pool) Pop() (idx uint32, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head == none {
		return 0, false
	}
	idx = p.head
	p.head = p.next[idx]
	p.next[idx] = none
	p.inuse[idx/64] &^= uint64(1) << (idx % 64)
	p.count--
	return idx, true
}

// Len returns the number of pages in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Contains reports whether idx is currently in the pool.
func (p *Pool) Contains(idx uint32) bool {
	if int(idx) >= len(p.next) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inuse[idx/64]&(uint64(1)<<(idx%64)) != 0
}

// Snapshot walks the stack from the top and returns its indices in pop order.
func (p *Pool) Snapshot() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, 0, p.count)
	for i := p.head; i != none; i = p.next[i] {
		out = append(out, i)
	}
	return out
}

// Check verifies that the stack and the membership bitmap agree: every linked
// slot is marked, no slot is linked twice, and the count matches both.
func (p *Pool) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make([]uint64, len(p.inuse))
	walked := 0
	for i := p.head; i != none; i = p.next[i] {
		if int(i) >= len(p.next) {
			return fmt.Errorf("%w: link to %d", ErrBadIndex, i)
		}
		w, b := i/64, uint64(1)<<(i%64)
		if seen[w]&b != 0 {
			return fmt.Errorf("freelist: slot %d linked twice", i)
		}
		if p.inuse[w]&b == 0 {
			return fmt.Errorf("freelist: slot %d linked but not marked", i)
		}
		seen[w] |= b
		walked++
	}

	marked := 0
	for _, w := range p.inuse {
		marked += bits.OnesCount64(w)
	}
	if walked != p.count || marked != p.count {
		return fmt.Errorf("freelist: count %d, linked %d, marked %d", p.count, walked, marked)
	}
	return nil
}
