//go:build unix

// Package mmfile provides platform-specific helpers for obtaining the large,
// lazily-backed byte regions that stand in for physical RAM.
package mmfile
