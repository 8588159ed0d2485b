package format

// Alignment utilities for page-granular addresses.

// PageRoundUp returns a aligned up to the next page boundary.
//
// Example:
//
//	PageRoundUp(1)    = 4096
//	PageRoundUp(4096) = 4096
//	PageRoundUp(4097) = 8192
func PageRoundUp(a uint64) uint64 {
	return (a + PageMask) &^ PageMask
}

// PageRoundDown returns a aligned down to a page boundary.
//
// Example:
//
//	PageRoundDown(4095) = 0
//	PageRoundDown(4096) = 4096
func PageRoundDown(a uint64) uint64 {
	return a &^ PageMask
}

// IsPageAligned reports whether a sits exactly on a page boundary.
func IsPageAligned(a uint64) bool {
	return a&PageMask == 0
}

// PageCount returns how many whole pages fit in [start, end).
// Partial pages at either end are not counted.
func PageCount(start, end uint64) int {
	lo := PageRoundUp(start)
	hi := PageRoundDown(end)
	if hi <= lo {
		return 0
	}
	return int((hi - lo) >> PageShift)
}
