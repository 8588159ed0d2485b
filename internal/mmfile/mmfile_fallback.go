//go:build !unix

// Package mmfile provides platform-specific helpers for obtaining the large,
// lazily-backed byte regions that stand in for physical RAM.
package mmfile

import (
	"fmt"
	"os"
)

// MapAnon allocates size zeroed bytes on the Go heap when mmap is not available.
func MapAnon(size int) ([]byte, func() error, error) {
	if size < 0 {
		return nil, nil, fmt.Errorf("mmfile: negative mapping size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}

// HostPageSize returns the page size of the machine running the simulator.
func HostPageSize() int {
	return os.Getpagesize()
}
