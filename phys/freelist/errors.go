package freelist

import "errors"

var (
	// ErrAlreadyFree indicates a push of a page the pool already holds.
	ErrAlreadyFree = errors.New("freelist: page already in pool")

	// ErrBadIndex indicates a slot outside the pool's index space.
	ErrBadIndex = errors.New("freelist: index out of range")
)
