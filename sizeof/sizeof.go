// Package sizeof estimates the heap footprint of common values.
package sizeof

import "unsafe"

// Slice returns the bytes held by the slice header and its backing array.
func Slice[T any](v []T) uint64 {
	return 24 + uint64(unsafe.Sizeof(*new(T)))*uint64(cap(v))
}

// String returns the bytes held by the string header and its contents.
func String(s string) uint64 {
	return 16 + uint64(len(s))
}
