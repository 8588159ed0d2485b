package kalloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/pagekit/phys"
)

var (
	// ErrPrecondition matches every *PreconditionError.
	ErrPrecondition = errors.New("kalloc: precondition violated")

	// ErrMisaligned indicates an address that does not start a page.
	ErrMisaligned = errors.New("kalloc: address not page aligned")

	// ErrOutOfRange indicates an address outside the managed range.
	ErrOutOfRange = errors.New("kalloc: address outside managed range")

	// ErrDoubleFree indicates a free of a page that has no owners.
	ErrDoubleFree = errors.New("kalloc: free of unowned page")

	// ErrNotOwned indicates a reference change on a page that has no owners.
	ErrNotOwned = errors.New("kalloc: page not owned")

	// ErrLastReference indicates a DecRef that would drop the final owner;
	// the final owner must call Free.
	ErrLastReference = errors.New("kalloc: decrement of last reference")

	// ErrRefOverflow indicates a reference count at its maximum.
	ErrRefOverflow = errors.New("kalloc: reference count overflow")

	// ErrOutOfMemory indicates that copy-on-write promotion found no free page.
	ErrOutOfMemory = errors.New("kalloc: out of memory")

	// ErrBadRange indicates bounds passed to New that do not fit the memory.
	ErrBadRange = errors.New("kalloc: invalid managed range")
)

// PreconditionError reports a call that broke the allocator's contract.
type PreconditionError struct {
	Op   string    // operation that detected the violation
	Addr phys.Addr // address passed by the caller
	Err  error     // specific cause
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("kalloc: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPrecondition) true for every PreconditionError.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
