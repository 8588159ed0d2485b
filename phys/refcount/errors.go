package refcount

import "errors"

var (
	// ErrOutOfRange indicates an address outside the range the table covers.
	ErrOutOfRange = errors.New("refcount: address out of range")

	// ErrMisaligned indicates an address that does not start a page.
	ErrMisaligned = errors.New("refcount: address not page aligned")

	// ErrOverflow indicates an increment that would exceed the counter's width.
	ErrOverflow = errors.New("refcount: counter overflow")

	// ErrUnowned indicates an Inc or Dec on a page that has no owners.
	ErrUnowned = errors.New("refcount: page has no owners")
)
